// Package config loads picitalk configuration from a TOML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/tts"
	"github.com/papercomputeco/picitalk/pkg/vlm"
)

const (
	// DefaultListenAddr is where the HTTP server listens unless configured otherwise.
	DefaultListenAddr = ":8080"

	// DefaultSessionIdleTimeout bounds how long an untouched session is kept.
	DefaultSessionIdleTimeout = time.Hour
)

// Environment variables that override file values.
const (
	EnvGroqAPIKey = "GROQ_API_KEY"
	EnvVLMURL     = "PICI_VLM_URL"
	EnvListen     = "PICI_LISTEN"
)

// Config is the complete picitalk configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Listen string `toml:"listen"`
	Debug  bool   `toml:"debug"`

	VLM     vlm.Config      `toml:"vlm"`
	STT     stt.Config      `toml:"stt"`
	TTS     tts.Config      `toml:"tts"`
	Image   imaging.Options `toml:"image"`
	Archive Archive         `toml:"archive"`
	Session Session         `toml:"session"`
}

// Archive configures the transcript archive.
type Archive struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" or leave empty for an in-memory archive.
	DBPath string `toml:"db_path"`
}

// Session configures the session store.
type Session struct {
	IdleTimeout time.Duration `toml:"idle_timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Listen:  DefaultListenAddr,
		VLM:     vlm.DefaultConfig(),
		STT:     stt.DefaultConfig(),
		TTS:     tts.DefaultConfig(),
		Image:   imaging.DefaultOptions(),
		Session: Session{IdleTimeout: DefaultSessionIdleTimeout},
	}
}

// DefaultPath returns ~/.pici/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".pici", "config.toml"), nil
}

// Load reads the configuration at path on top of the defaults and applies
// environment overrides. An empty path means DefaultPath, which may be absent;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvGroqAPIKey); ok && v != "" && c.STT.APIKey == "" {
		c.STT.APIKey = v
	}
	if v, ok := lookup(EnvVLMURL); ok && v != "" {
		c.VLM.URL = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is empty")
	}
	if c.VLM.URL == "" {
		return errors.New("config: vlm.url is empty")
	}
	if c.VLM.Model == "" {
		return errors.New("config: vlm.model is empty")
	}
	if c.VLM.MaxTokens <= 0 {
		return fmt.Errorf("config: vlm.max_tokens must be positive, got %d", c.VLM.MaxTokens)
	}
	if c.VLM.MaxConcurrent <= 0 {
		return fmt.Errorf("config: vlm.max_concurrent must be positive, got %d", c.VLM.MaxConcurrent)
	}
	if c.Image.MaxDimension <= 0 {
		return fmt.Errorf("config: image.max_dimension must be positive, got %d", c.Image.MaxDimension)
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("config: image.jpeg_quality must be within 1..100, got %d", c.Image.JPEGQuality)
	}
	if c.Image.MaxPixels <= 0 {
		return fmt.Errorf("config: image.max_pixels must be positive, got %d", c.Image.MaxPixels)
	}
	if err := c.TTS.Voice.Validate(); err != nil {
		return fmt.Errorf("config: tts voice: %w", err)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("config: session.idle_timeout must be positive, got %s", c.Session.IdleTimeout)
	}
	return nil
}
