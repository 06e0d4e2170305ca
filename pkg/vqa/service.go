// Package vqa answers questions about a session's image, typed or spoken,
// and optionally speaks the answers.
package vqa

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/archive"
	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/logger"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/tts"
)

// Reply is the outcome of one question.
type Reply struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`

	// Failed is set when the model errored and Answer is the apology.
	Failed bool `json:"failed,omitempty"`

	Audio     []byte        `json:"-"`
	AudioHTML template.HTML `json:"audio_html,omitempty"`

	// SpeechError explains why a requested spoken answer is missing.
	SpeechError string `json:"speech_error,omitempty"`

	ArchiveHead string `json:"archive_head,omitempty"`
}

// Service wires the model, transcription and speech adapters to sessions.
type Service struct {
	answerer    Answerer
	transcriber Transcriber
	synth       Synthesizer
	archive     archive.Store
	imageOpts   imaging.Options
	logger      *zap.Logger
}

// NewService creates a Service. store may be nil to disable archiving.
func NewService(
	answerer Answerer,
	transcriber Transcriber,
	synth Synthesizer,
	store archive.Store,
	imageOpts imaging.Options,
	logger *zap.Logger,
) *Service {
	return &Service{
		answerer:    answerer,
		transcriber: transcriber,
		synth:       synth,
		archive:     store,
		imageOpts:   imageOpts,
		logger:      logger,
	}
}

// SpeechAvailable reports whether answers can be spoken.
func (s *Service) SpeechAvailable() bool {
	return s.synth.Available()
}

// SetImage processes r and makes it the session's image, which starts a new conversation.
func (s *Service) SetImage(ctx context.Context, sess *session.Session, r io.Reader, source session.Source) (*imaging.Image, error) {
	img, err := imaging.Process(r, s.imageOpts)
	if err != nil {
		return nil, fmt.Errorf("process image: %w", err)
	}

	err = sess.Exclusive(func() error {
		sess.SetImage(img, source)
		sess.SetHead(s.record(ctx, "", archive.ImageEntry(img.Digest, string(source))))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("image set",
		zap.String("session", sess.ID),
		zap.String("source", string(source)),
		zap.String("digest", logger.Truncate(img.Digest, 12)),
		zap.String("mode", img.Mode),
		zap.Bool("converted", img.Converted),
		zap.Bool("resized", img.Resized),
		zap.Int("width", img.Width()),
		zap.Int("height", img.Height()),
	)
	return img, nil
}

// Ask answers a typed question about the session's image.
func (s *Service) Ask(ctx context.Context, sess *session.Session, question string, speak bool) (*Reply, error) {
	var reply *Reply
	err := sess.Exclusive(func() error {
		var err error
		reply, err = s.ask(ctx, sess, question, speak)
		return err
	})
	return reply, err
}

// AskByVoice transcribes audio and answers the spoken question. Nothing is
// added to the conversation when the audio cannot be understood.
func (s *Service) AskByVoice(ctx context.Context, sess *session.Session, audio stt.Audio, speak bool) (*Reply, error) {
	var reply *Reply
	err := sess.Exclusive(func() error {
		if !sess.HasImage() {
			return ErrNoImage
		}

		text, err := s.transcriber.Transcribe(ctx, audio)
		if err != nil {
			s.logger.Error("failed to transcribe question",
				zap.String("session", sess.ID),
				zap.Error(err),
			)
			return ErrNotUnderstood
		}
		if strings.TrimSpace(text) == "" {
			return ErrNotUnderstood
		}

		reply, err = s.ask(ctx, sess, text, speak)
		return err
	})
	return reply, err
}

func (s *Service) ask(ctx context.Context, sess *session.Session, question string, speak bool) (*Reply, error) {
	img := sess.Image()
	if img == nil {
		return nil, ErrNoImage
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	sess.Append(session.RoleUser, question)

	reply := &Reply{Question: question}
	answer, err := s.answerer.Answer(ctx, img, question)
	switch {
	case err != nil:
		s.logger.Error("failed to generate answer",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
		reply.Answer = MsgAnswerFailed
		reply.Failed = true
	case strings.TrimSpace(answer) == "":
		reply.Answer = MsgEmptyAnswer
	default:
		reply.Answer = strings.TrimSpace(answer)
	}
	sess.Append(session.RoleAssistant, reply.Answer)

	head := sess.Head()
	if head == "" {
		head = s.record(ctx, "", archive.ImageEntry(img.Digest, string(sess.ImageSource())))
	}
	head = s.record(ctx, head, archive.MessageEntry(string(session.RoleUser), question, ""))
	head = s.record(ctx, head, archive.MessageEntry(string(session.RoleAssistant), reply.Answer, s.answerer.ActiveModel()))
	sess.SetHead(head)
	reply.ArchiveHead = head

	s.logger.Info("question answered",
		zap.String("session", sess.ID),
		zap.String("question", logger.Truncate(question, 80)),
		zap.String("answer", logger.Truncate(reply.Answer, 80)),
		zap.Bool("failed", reply.Failed),
		zap.Duration("duration", time.Since(start)),
	)

	if speak {
		s.speakReply(ctx, sess, reply)
	}
	return reply, nil
}

// speakReply attaches spoken audio to reply. Speech failures never fail the question.
func (s *Service) speakReply(ctx context.Context, sess *session.Session, reply *Reply) {
	if !s.synth.Available() {
		reply.SpeechError = MsgSpeechOff
		return
	}

	audio, err := s.synth.Synthesize(ctx, reply.Answer, sess.Voice())
	if err != nil {
		s.logger.Error("failed to synthesize answer",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
		sess.SetAudio(nil)
		reply.SpeechError = "Error in text-to-speech: " + err.Error()
		return
	}
	if len(audio) == 0 {
		return
	}

	sess.SetAudio(audio)
	reply.Audio = audio
	reply.AudioHTML = tts.AutoplayHTML(audio)
}

// Speak synthesizes the assistant turn at index and keeps it as the session's last audio.
func (s *Service) Speak(ctx context.Context, sess *session.Session, index int) ([]byte, error) {
	var audio []byte
	err := sess.Exclusive(func() error {
		turn, ok := sess.Turn(index)
		if !ok || turn.Role != session.RoleAssistant {
			return ErrNotAnswer
		}
		if !s.synth.Available() {
			return ErrSpeechUnavailable
		}

		var err error
		audio, err = s.synth.Synthesize(ctx, turn.Text, sess.Voice())
		if err != nil {
			return fmt.Errorf("synthesize answer: %w", err)
		}
		sess.SetAudio(audio)
		return nil
	})
	return audio, err
}

// Reset starts a new conversation about the current image.
func (s *Service) Reset(sess *session.Session) {
	_ = sess.Exclusive(func() error {
		sess.Reset()
		return nil
	})
	s.logger.Debug("conversation reset", zap.String("session", sess.ID))
}

// SetVoice validates and applies new speech settings.
func (s *Service) SetVoice(sess *session.Session, voice tts.Voice) error {
	if err := voice.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVoice, err)
	}
	sess.SetVoice(voice)
	return nil
}

// record archives entry under parent and returns the new head. Archive
// failures are logged and leave the head unchanged.
func (s *Service) record(ctx context.Context, parent string, entry archive.Entry) string {
	if s.archive == nil {
		return parent
	}

	node := archive.NewNode(entry, parent)
	isNew, err := s.archive.Put(ctx, node)
	if err != nil {
		s.logger.Error("failed to archive entry",
			zap.String("type", string(entry.Type)),
			zap.Error(err),
		)
		return parent
	}

	s.logger.Debug("archived entry",
		zap.String("hash", logger.Truncate(node.Hash, 16)),
		zap.String("type", string(entry.Type)),
		zap.Bool("new", isNew),
	)
	return node.Hash
}
