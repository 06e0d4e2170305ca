package server

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed ui/index.html
var indexHTML []byte

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}
