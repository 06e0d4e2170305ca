// Package session holds per-visitor state: the current image, the conversation
// about it, speech settings and the last spoken answer.
package session

import (
	"sync"
	"time"

	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/tts"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Source records where the current image came from.
type Source string

const (
	SourceUpload Source = "upload"
	SourceCamera Source = "camera"
)

// Session is the state of a single visitor. All methods are safe for
// concurrent use; Exclusive additionally serialises whole operations.
type Session struct {
	ID        string
	CreatedAt time.Time

	op sync.Mutex

	mu          sync.RWMutex
	image       *imaging.Image
	imageSource Source
	turns       []Turn
	voice       tts.Voice
	audio       []byte
	head        string

	lastAccess time.Time // guarded by the owning Store
}

func newSession(id string, voice tts.Voice, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		voice:      voice,
		lastAccess: now,
	}
}

// Exclusive runs fn while holding the session's operation lock, so that a
// question and a new upload on the same session never interleave.
func (s *Session) Exclusive(fn func() error) error {
	s.op.Lock()
	defer s.op.Unlock()
	return fn()
}

// Image returns the current image, or nil.
func (s *Session) Image() *imaging.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

// HasImage reports whether questions can be asked.
func (s *Session) HasImage() bool {
	return s.Image() != nil
}

// ImageSource reports where the current image came from.
func (s *Session) ImageSource() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageSource
}

// SetImage replaces the image wholesale and starts a fresh conversation.
func (s *Session) SetImage(img *imaging.Image, source Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = img
	s.imageSource = source
	s.turns = nil
	s.audio = nil
	s.head = ""
}

// Append adds a turn to the conversation.
func (s *Session) Append(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text})
}

// Turns returns a copy of the conversation, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Turn returns the turn at index i.
func (s *Session) Turn(i int) (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.turns) {
		return Turn{}, false
	}
	return s.turns[i], true
}

// Reset starts a new conversation about the same image.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.audio = nil
	s.head = ""
}

// Voice returns the speech settings.
func (s *Session) Voice() tts.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice
}

// SetVoice replaces the speech settings. Callers validate first.
func (s *Session) SetVoice(v tts.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = v
}

// Audio returns the last synthesized answer, or nil.
func (s *Session) Audio() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audio
}

// SetAudio stores the last synthesized answer.
func (s *Session) SetAudio(audio []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = audio
}

// Head is the archive hash of the latest archived entry of this conversation.
func (s *Session) Head() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head
}

// SetHead records the latest archived entry.
func (s *Session) SetHead(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = hash
}

// ImageInfo describes the current image without its pixels.
type ImageInfo struct {
	Digest    string `json:"digest"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Mode      string `json:"mode"`
	Converted bool   `json:"converted"`
	Resized   bool   `json:"resized"`
	Source    Source `json:"source"`
}

// Snapshot is a point-in-time JSON view of a session.
type Snapshot struct {
	ID           string     `json:"id"`
	HasImage     bool       `json:"has_image"`
	Image        *ImageInfo `json:"image,omitempty"`
	Conversation []Turn     `json:"conversation"`
	Voice        tts.Voice  `json:"voice"`
	HasAudio     bool       `json:"has_audio"`
	ArchiveHead  string     `json:"archive_head,omitempty"`
}

// Snapshot captures the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:           s.ID,
		HasImage:     s.image != nil,
		Conversation: make([]Turn, len(s.turns)),
		Voice:        s.voice,
		HasAudio:     len(s.audio) > 0,
		ArchiveHead:  s.head,
	}
	copy(snap.Conversation, s.turns)

	if s.image != nil {
		snap.Image = &ImageInfo{
			Digest:    s.image.Digest,
			Width:     s.image.Width(),
			Height:    s.image.Height(),
			Format:    s.image.Format,
			Mode:      s.image.Mode,
			Converted: s.image.Converted,
			Resized:   s.image.Resized,
			Source:    s.imageSource,
		}
	}
	return snap
}
