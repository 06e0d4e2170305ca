// Package server exposes picitalk sessions over HTTP and serves the browser UI.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/archive"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/vqa"
)

// ModelInfo reports which model answers questions.
type ModelInfo interface {
	ActiveModel() string
	AdapterLoaded() bool
}

// Server is the picitalk HTTP server. Every request is handled synchronously;
// the per-session lock inside vqa.Service keeps operations on one session ordered.
type Server struct {
	config   Config
	svc      *vqa.Service
	sessions *session.Store
	archive  archive.Store
	model    ModelInfo
	logger   *zap.Logger
	app      *fiber.App
}

// New creates a Server and registers its routes.
func New(
	config Config,
	svc *vqa.Service,
	sessions *session.Store,
	store archive.Store,
	model ModelInfo,
	logger *zap.Logger,
) *Server {
	if config.BodyLimit <= 0 {
		config.BodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})
	app.Use(recover.New())

	s := &Server{
		config:   config,
		svc:      svc,
		sessions: sessions,
		archive:  store,
		model:    model,
		logger:   logger,
		app:      app,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	s.app.Get("/api/capabilities", s.handleCapabilities)

	api := s.app.Group("/api/sessions")
	api.Post("/", s.handleCreateSession)
	api.Get("/:id", s.handleGetSession)
	api.Delete("/:id", s.handleDeleteSession)
	api.Post("/:id/image", s.handleSetImage)
	api.Get("/:id/image", s.handleGetImage)
	api.Post("/:id/questions", s.handleAsk)
	api.Post("/:id/questions/voice", s.handleAskByVoice)
	api.Post("/:id/reset", s.handleReset)
	api.Put("/:id/voice", s.handleSetVoice)
	api.Post("/:id/turns/:index/speech", s.handleSpeakTurn)
	api.Get("/:id/audio", s.handleGetAudio)
	api.Get("/:id/transcript", s.handleTranscript)

	// Archive inspection endpoints
	s.app.Get("/archive/stats", s.handleArchiveStats)
	s.app.Get("/archive/history", s.handleListHistories)
	s.app.Get("/archive/history/:hash", s.handleGetHistory)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("model", s.model.ActiveModel()),
		zap.Bool("adapter_loaded", s.model.AdapterLoaded()),
		zap.Bool("tts_available", s.svc.SpeechAvailable()),
	)

	return s.app.Listen(s.config.ListenAddr)
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.app.Shutdown()
}
