// Package components loads configuration and assembles the picitalk
// services shared by every subcommand.
package components

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/archive"
	"github.com/papercomputeco/picitalk/pkg/config"
	"github.com/papercomputeco/picitalk/pkg/logger"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/tts"
	"github.com/papercomputeco/picitalk/pkg/vlm"
	"github.com/papercomputeco/picitalk/pkg/vqa"
)

// Persistent flags registered on the root command.
const (
	FlagConfig = "config"
	FlagDebug  = "debug"
)

// LoadConfig loads the file named by --config (or the default path) and
// applies --debug. Either flag may be absent from cmd.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	var path string
	if f := cmd.Flags().Lookup(FlagConfig); f != nil {
		path = f.Value.String()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if f := cmd.Flags().Lookup(FlagDebug); f != nil && f.Changed {
		cfg.Debug, err = strconv.ParseBool(f.Value.String())
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", FlagDebug, err)
		}
	}
	return cfg, nil
}

// Components are the assembled adapters and the question-answering service.
type Components struct {
	Config  *config.Config
	Logger  *zap.Logger
	VLM     *vlm.Client
	STT     *stt.Client
	TTS     *tts.Engine
	Archive archive.Store
	Service *vqa.Service
}

// LogTarget selects where component logs go.
type LogTarget int

const (
	LogStdout LogTarget = iota
	// LogStderr keeps stdout clean for command output.
	LogStderr
	// LogDiscard is used while a full-screen UI owns the terminal.
	LogDiscard
)

// New builds every component from cfg.
func New(cfg *config.Config, target LogTarget) (*Components, error) {
	var log *zap.Logger
	switch target {
	case LogStderr:
		log = logger.NewStderrLogger(cfg.Debug)
	case LogDiscard:
		log = zap.NewNop()
	default:
		log = logger.NewLogger(cfg.Debug)
	}

	store, err := archive.Open(cfg.Archive.DBPath)
	if err != nil {
		return nil, fmt.Errorf("could not open archive: %w", err)
	}
	if cfg.Archive.DBPath != "" {
		log.Info("using SQLite archive", zap.String("path", cfg.Archive.DBPath))
	} else {
		log.Info("using in-memory archive")
	}

	c := &Components{
		Config:  cfg,
		Logger:  log,
		VLM:     vlm.New(cfg.VLM, log),
		STT:     stt.New(cfg.STT, log),
		TTS:     tts.New(cfg.TTS, log),
		Archive: store,
	}
	c.Service = vqa.NewService(c.VLM, c.STT, c.TTS, c.Archive, cfg.Image, log)

	if !c.TTS.Available() {
		log.Warn("text-to-speech requires eSpeak; audio responses will not work",
			zap.String("install", tts.InstallHint),
		)
	}
	return c, nil
}

// Close releases the archive and flushes the logger.
func (c *Components) Close() error {
	_ = c.Logger.Sync()
	return c.Archive.Close()
}
