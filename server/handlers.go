package server

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/tts"
)

// CapabilitiesResponse describes what the backend can do.
type CapabilitiesResponse struct {
	TTSAvailable  bool   `json:"tts_available"`
	Model         string `json:"model"`
	AdapterLoaded bool   `json:"adapter_loaded"`
}

// CreateSessionResponse is returned when a session is created.
type CreateSessionResponse struct {
	ID    string    `json:"id"`
	Voice tts.Voice `json:"voice"`
}

// AskRequest is the body of a typed question.
type AskRequest struct {
	Question string `json:"question"`
	Speak    bool   `json:"speak"`
}

// SetImageResponse describes the processed image.
type SetImageResponse struct {
	Message string             `json:"message"`
	Image   *session.ImageInfo `json:"image"`
}

func (s *Server) handleCapabilities(c *fiber.Ctx) error {
	return c.JSON(CapabilitiesResponse{
		TTSAvailable:  s.svc.SpeechAvailable(),
		Model:         s.model.ActiveModel(),
		AdapterLoaded: s.model.AdapterLoaded(),
	})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sess := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session", sess.ID))

	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{
		ID:    sess.ID,
		Voice: sess.Voice(),
	})
}

// lookup resolves the :id route parameter.
func (s *Server) lookup(c *fiber.Ctx) (*session.Session, error) {
	return s.sessions.Get(c.Params("id"))
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(sess.Snapshot())
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if !s.sessions.Delete(c.Params("id")) {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSetImage(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	// FormValue aliases the request buffer; only the constants outlive the handler.
	var source session.Source
	switch session.Source(c.FormValue("source", string(session.SourceUpload))) {
	case session.SourceUpload:
		source = session.SourceUpload
	case session.SourceCamera:
		source = session.SourceCamera
	default:
		return errorJSON(c, fiber.StatusBadRequest, "source must be \"upload\" or \"camera\"")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "multipart field \"image\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "cannot read uploaded image")
	}
	defer f.Close()

	if _, err := s.svc.SetImage(c.Context(), sess, f, source); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(SetImageResponse{
		Message: "Image ready. Ask me about it!",
		Image:   sess.Snapshot().Image,
	})
}

func (s *Server) handleGetImage(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	img := sess.Image()
	if img == nil {
		return errorJSON(c, fiber.StatusNotFound, "no image uploaded")
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(img.JPEG)
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		s.logger.Debug("failed to parse question", zap.Error(err))
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	reply, err := s.svc.Ask(c.Context(), sess, req.Question, req.Speak)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(reply)
}

func (s *Server) handleAskByVoice(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	speak := true
	if v := c.FormValue("speak"); v != "" {
		speak, err = strconv.ParseBool(v)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "speak must be a boolean")
		}
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "multipart field \"audio\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "cannot read uploaded audio")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "cannot read uploaded audio")
	}

	reply, err := s.svc.AskByVoice(c.Context(), sess, stt.Audio{Data: data, Filename: fh.Filename}, speak)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(reply)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}
	s.svc.Reset(sess)
	return c.JSON(sess.Snapshot())
}

func (s *Server) handleSetVoice(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	var voice tts.Voice
	if err := c.BodyParser(&voice); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.svc.SetVoice(sess, voice); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(sess.Voice())
}

func (s *Server) handleSpeakTurn(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "turn index must be an integer")
	}

	audio, err := s.svc.Speak(c.Context(), sess, index)
	if err != nil {
		return s.writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "audio/wav")
	return c.Send(audio)
}

func (s *Server) handleGetAudio(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	audio := sess.Audio()
	if len(audio) == 0 {
		return errorJSON(c, fiber.StatusNotFound, "no audio yet")
	}
	c.Set(fiber.HeaderContentType, "audio/wav")
	return c.Send(audio)
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return s.writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return renderTranscript(c, sess.Turns())
}
