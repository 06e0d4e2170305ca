package vqa

import "errors"

// Messages shown to users. The prompt errors carry them verbatim.
const (
	MsgNoImage       = "Please upload an image first."
	MsgEmptyQuestion = "Please ask a question about the image."
	MsgNotUnderstood = "I couldn't understand that. Could you try again?"
	MsgAnswerFailed  = "Sorry, I couldn't process your question. Please try again."
	MsgEmptyAnswer   = "I'm not sure how to answer that."
	MsgSpeechOff     = "Text-to-speech is disabled. Install eSpeak to enable audio responses."
)

var (
	ErrNoImage       = errors.New(MsgNoImage)
	ErrEmptyQuestion = errors.New(MsgEmptyQuestion)
	ErrNotUnderstood = errors.New(MsgNotUnderstood)

	// ErrNotAnswer is returned when asked to speak a turn that is not an assistant answer.
	ErrNotAnswer = errors.New("turn is not an assistant answer")

	// ErrInvalidVoice wraps voice settings that fail validation.
	ErrInvalidVoice = errors.New("invalid voice settings")

	// ErrSpeechUnavailable is returned when speech is requested without an engine.
	ErrSpeechUnavailable = errors.New(MsgSpeechOff)
)

// IsPrompt reports whether err asks the user to supply missing input rather
// than signalling a failure.
func IsPrompt(err error) bool {
	return errors.Is(err, ErrNoImage) || errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrNotUnderstood)
}
