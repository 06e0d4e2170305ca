// Package vlm talks to a vision-language model served behind an Ollama-compatible API.
package vlm

import "time"

// Message represents a single message in a model conversation.
type Message struct {
	Role    string   `json:"role"`             // "user" or "assistant"
	Content string   `json:"content"`          // The question or answer text
	Images  []string `json:"images,omitempty"` // base64-encoded JPEG images
}

// Options contains model inference parameters.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"` // Max tokens to generate
	Seed        *int     `json:"seed,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    *bool     `json:"stream,omitempty"`
	Options   *Options  `json:"options,omitempty"`
	KeepAlive string    `json:"keep_alive,omitempty"`
}

// ChatResponse is a non-streaming /api/chat response.
type ChatResponse struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`

	TotalDuration int64 `json:"total_duration,omitempty"` // nanoseconds
	EvalCount     int   `json:"eval_count,omitempty"`
}

// ShowRequest is the body of POST /api/show, used to probe whether a model exists.
type ShowRequest struct {
	Model string `json:"model"`
}

// ErrorResponse represents an error from the model API.
type ErrorResponse struct {
	Error string `json:"error"`
}
