package vqa

//go:generate mockgen -destination=./clients_mock_test.go -package=vqa -source=clients.go

import (
	"context"

	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/tts"
)

// Answerer answers a natural-language question about an image.
type Answerer interface {
	Answer(ctx context.Context, img *imaging.Image, question string) (string, error)
	// ActiveModel names the model producing answers, for the archive.
	ActiveModel() string
}

// Transcriber turns a recorded question into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio stt.Audio) (string, error)
}

// Synthesizer speaks text aloud.
type Synthesizer interface {
	Available() bool
	Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error)
}
