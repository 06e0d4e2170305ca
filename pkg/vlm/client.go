package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/logger"
)

const (
	DefaultURL       = "http://localhost:11434"
	DefaultModel     = "llava"
	DefaultMaxTokens = 50

	// Vision models on commodity hardware can be slow
	DefaultTimeout = 5 * time.Minute
)

// ErrModelNotFound is returned by Load when the base model is not served upstream.
var ErrModelNotFound = errors.New("model not found")

// Config configures the model client.
type Config struct {
	// URL of the Ollama-compatible server.
	URL string `toml:"url"`

	// Model is the base vision-language model.
	Model string `toml:"model"`

	// Adapter is an optional fine-tuned model served next to the base model.
	// When it cannot be found, the base model is used.
	Adapter string `toml:"adapter"`

	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	KeepAlive   string  `toml:"keep_alive"`

	Timeout time.Duration `toml:"timeout"`

	// MaxConcurrent bounds in-flight inferences.
	MaxConcurrent int64 `toml:"max_concurrent"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		URL:           DefaultURL,
		Model:         DefaultModel,
		MaxTokens:     DefaultMaxTokens,
		Timeout:       DefaultTimeout,
		MaxConcurrent: 1,
	}
}

// Client answers questions about images.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client
	sem        *semaphore.Weighted

	mu            sync.RWMutex
	active        string
	adapterLoaded bool
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
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}

	return &Client{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		active:     cfg.Model,
	}
}

// Load resolves which model answers questions. The adapter wins when it is
// served upstream; otherwise the base model is used. It fails only when the
// base model itself is unavailable.
func (c *Client) Load(ctx context.Context) error {
	if c.config.Adapter != "" {
		ok, err := c.show(ctx, c.config.Adapter)
		switch {
		case err != nil:
			c.logger.Warn("could not check adapter, using base model",
				zap.String("adapter", c.config.Adapter),
				zap.Error(err),
			)
		case ok:
			c.setActive(c.config.Adapter, true)
			c.logger.Info("loaded model with fine-tuned adapter",
				zap.String("base", c.config.Model),
				zap.String("adapter", c.config.Adapter),
			)
			return nil
		default:
			c.logger.Warn("adapter not found, using base model",
				zap.String("adapter", c.config.Adapter),
				zap.String("base", c.config.Model),
			)
		}
	}

	ok, err := c.show(ctx, c.config.Model)
	if err != nil {
		return fmt.Errorf("check base model %s: %w", c.config.Model, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, c.config.Model)
	}

	c.setActive(c.config.Model, false)
	c.logger.Info("loaded base model", zap.String("model", c.config.Model))
	return nil
}

// ActiveModel is the model name questions are sent to.
func (c *Client) ActiveModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// AdapterLoaded reports whether the fine-tuned adapter is in use.
func (c *Client) AdapterLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapterLoaded
}

func (c *Client) setActive(model string, adapter bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = model
	c.adapterLoaded = adapter
}

// Answer asks the model a question about img and returns the trimmed answer.
func (c *Client) Answer(ctx context.Context, img *imaging.Image, question string) (string, error) {
	if img == nil || len(img.JPEG) == 0 {
		return "", errors.New("answer: no image")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for model: %w", err)
	}
	defer c.sem.Release(1)

	stream := false
	maxTokens := c.config.MaxTokens
	temperature := c.config.Temperature
	req := &ChatRequest{
		Model: c.ActiveModel(),
		Messages: []Message{{
			Role:    "user",
			Content: question,
			Images:  []string{base64.StdEncoding.EncodeToString(img.JPEG)},
		}},
		Stream: &stream,
		Options: &Options{
			Temperature: &temperature,
			NumPredict:  &maxTokens,
		},
		KeepAlive: c.config.KeepAlive,
	}

	start := time.Now()
	resp, err := c.chat(ctx, req)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(resp.Message.Content)
	c.logger.Debug("model answered",
		zap.String("model", resp.Model),
		zap.String("image", logger.Truncate(img.Digest, 12)),
		zap.String("question", logger.Truncate(question, 80)),
		zap.String("answer", logger.Truncate(answer, 80)),
		zap.Int("eval_count", resp.EvalCount),
		zap.Duration("duration", time.Since(start)),
	)
	return answer, nil
}

func (c *Client) chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// show reports whether model is served upstream.
func (c *Client) show(ctx context.Context, model string) (bool, error) {
	_, err := c.post(ctx, "/api/show", &ShowRequest{Model: model})
	if err == nil {
		return true, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// StatusError is returned when the model server replies with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.config.URL + path
	c.logger.Debug("sending request to model server",
		zap.String("url", url),
		zap.Int("body_size", len(reqBody)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(body)
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	return body, nil
}
