package server

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/archive"
)

// HistoriesResponse lists every archived conversation.
type HistoriesResponse struct {
	Count     int                `json:"count"`
	Histories []*archive.History `json:"histories"`
}

// handleArchiveStats returns statistics about the archive.
func (s *Server) handleArchiveStats(c *fiber.Ctx) error {
	stats, err := archive.Summarize(c.Context(), s.archive)
	if err != nil {
		s.logger.Error("failed to summarize archive", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read archive")
	}
	return c.JSON(stats)
}

// handleListHistories returns one history per archived conversation branch.
func (s *Server) handleListHistories(c *fiber.Ctx) error {
	histories, err := archive.Histories(c.Context(), s.archive)
	if err != nil {
		s.logger.Error("failed to list histories", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read archive")
	}
	return c.JSON(HistoriesResponse{Count: len(histories), Histories: histories})
}

// handleGetHistory returns the conversation leading up to a node, oldest first.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	history, err := archive.BuildHistory(c.Context(), s.archive, c.Params("hash"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(history)
}
