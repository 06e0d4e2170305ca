// Package tts turns answers into speech with a local eSpeak engine.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

// defaultBinaries are tried in order when no binary is configured.
var defaultBinaries = []string{"espeak", "espeak-ng"}

// ErrUnavailable is returned when no speech engine is installed.
var ErrUnavailable = errors.New("tts: eSpeak is not installed")

// InstallHint is shown to users when speech is unavailable.
const InstallHint = `Text-to-speech requires eSpeak to be installed. Audio responses will not work.
To install eSpeak:
- Ubuntu/Debian: sudo apt-get install espeak
- Fedora: sudo dnf install espeak
- macOS: brew install espeak
- Windows: download from https://github.com/espeak-ng/espeak-ng/releases`

// Config configures the speech engine.
type Config struct {
	// Binary overrides the eSpeak executable lookup.
	Binary  string        `toml:"binary"`
	Timeout time.Duration `toml:"timeout"`

	// Voice holds the defaults every new session starts with.
	Voice Voice `toml:"voice"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Voice:   DefaultVoice(),
	}
}

// runFunc executes name with args, feeding stdin, and returns stdout.
type runFunc func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)

// Engine synthesizes speech by running eSpeak as a subprocess.
type Engine struct {
	config   Config
	logger   *zap.Logger
	run      runFunc
	lookPath func(string) (string, error)

	once   sync.Once
	binary string
}

// New creates an Engine.
func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Engine{
		config:   cfg,
		logger:   logger,
		run:      runCommand,
		lookPath: exec.LookPath,
	}
}

// Available reports whether an eSpeak binary was found. The lookup happens once.
func (e *Engine) Available() bool {
	return e.resolve() != ""
}

func (e *Engine) resolve() string {
	e.once.Do(func() {
		candidates := defaultBinaries
		if e.config.Binary != "" {
			candidates = []string{e.config.Binary}
		}
		for _, name := range candidates {
			if path, err := e.lookPath(name); err == nil {
				e.binary = path
				return
			}
		}
		e.logger.Warn("text-to-speech disabled: eSpeak not found", zap.Strings("tried", candidates))
	})
	return e.binary
}

// Synthesize speaks text with voice and returns a WAV buffer. Empty text
// yields nil audio and no error.
func (e *Engine) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if err := voice.Validate(); err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}

	binary := e.resolve()
	if binary == "" {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := []string{
		"--stdout",
		"-s", strconv.Itoa(voice.Rate),
		"-a", strconv.Itoa(voice.amplitude()),
		"-v", voice.espeakVoice(),
		"--stdin",
	}

	start := time.Now()
	audio, err := e.run(ctx, binary, args, strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", binary, err)
	}
	if !bytes.HasPrefix(audio, []byte("RIFF")) {
		return nil, fmt.Errorf("tts: %s produced %d bytes that are not WAV audio", binary, len(audio))
	}

	e.logger.Debug("speech synthesized",
		zap.Int("text_len", len(text)),
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("duration", time.Since(start)),
	)
	return audio, nil
}

func runCommand(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out.Bytes(), nil
}

var autoplayTemplate = template.Must(template.New("autoplay").Parse(
	`<audio autoplay="true"><source src="{{.}}" type="audio/wav"></audio>`,
))

// AutoplayHTML returns an <audio> element that plays audio as soon as it is
// inserted into a page. Empty audio renders nothing.
func AutoplayHTML(audio []byte) template.HTML {
	if len(audio) == 0 {
		return ""
	}
	src := template.URL("data:audio/wav;base64," + base64.StdEncoding.EncodeToString(audio))

	var buf bytes.Buffer
	if err := autoplayTemplate.Execute(&buf, src); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
