// Package stt transcribes spoken questions through a Whisper-compatible
// transcription API (Groq by default).
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultURL      = "https://api.groq.com/openai/v1"
	DefaultModel    = "whisper-large-v3-turbo"
	DefaultLanguage = "en"
	DefaultPrompt   = "Specify context or spelling"
	DefaultTimeout  = time.Minute

	defaultExtension = ".wav"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("stt: missing API key")

// Config configures the transcription client.
type Config struct {
	URL         string        `toml:"url"`
	APIKey      string        `toml:"api_key"`
	Model       string        `toml:"model"`
	Language    string        `toml:"language"`
	Prompt      string        `toml:"prompt"`
	Temperature float64       `toml:"temperature"`
	Timeout     time.Duration `toml:"timeout"`
}

// DefaultConfig returns the default client configuration. The API key is left empty.
func DefaultConfig() Config {
	return Config{
		URL:      DefaultURL,
		Model:    DefaultModel,
		Language: DefaultLanguage,
		Prompt:   DefaultPrompt,
		Timeout:  DefaultTimeout,
	}
}

// Audio is a recorded question.
type Audio struct {
	Data []byte

	// Filename is used only for its extension, which tells the API the container format.
	Filename string
}

// Client uploads audio buffers and returns their transcription.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client
}

// New creates a Client. Zero values in cfg fall back to the defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &Client{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe returns the trimmed text spoken in audio.
func (c *Client) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if len(audio.Data) == 0 {
		return "", errors.New("stt: empty audio")
	}

	body, contentType, err := c.encode(audio)
	if err != nil {
		return "", err
	}

	url := c.config.URL + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", fmt.Errorf("transcription API returned %d: %s", httpResp.StatusCode, msg)
	}

	var resp transcriptionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	c.logger.Debug("audio transcribed",
		zap.Int("audio_bytes", len(audio.Data)),
		zap.Int("text_len", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func (c *Client) encode(audio Audio) (io.Reader, string, error) {
	ext := filepath.Ext(audio.Filename)
	if ext == "" {
		ext = defaultExtension
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "question"+ext)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	fields := []struct{ name, value string }{
		{"model", c.config.Model},
		{"prompt", c.config.Prompt},
		{"response_format", "json"},
		{"language", c.config.Language},
		{"temperature", strconv.FormatFloat(c.config.Temperature, 'f', -1, 64)},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
