package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/archive"
	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/vqa"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// writeError maps domain errors to status codes. Prompts carry their
// user-facing message verbatim.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	switch {
	case vqa.IsPrompt(err):
		return errorJSON(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, session.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	case archive.IsNotFound(err):
		return errorJSON(c, fiber.StatusNotFound, "node not found")
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return errorJSON(c, fiber.StatusUnsupportedMediaType, "Error processing image: "+err.Error())
	case errors.Is(err, imaging.ErrDecode):
		return errorJSON(c, fiber.StatusBadRequest, "Error processing image: "+err.Error())
	case errors.Is(err, imaging.ErrTooLarge):
		return errorJSON(c, fiber.StatusRequestEntityTooLarge, "Error processing image: "+err.Error())
	case errors.Is(err, vqa.ErrInvalidVoice):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, vqa.ErrNotAnswer):
		// not 404: the UI reads 404 as an expired session
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, vqa.ErrSpeechUnavailable):
		return errorJSON(c, fiber.StatusServiceUnavailable, err.Error())
	}

	s.logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return errorJSON(c, fiber.StatusInternalServerError, "internal error")
}
