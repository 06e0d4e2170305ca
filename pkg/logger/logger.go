// Package logger provides opinionated logging capabilities for picitalk
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a console logger writing to stdout. Debug enables debug level.
func NewLogger(debug bool) *zap.Logger {
	return newLogger(debug, zapcore.AddSync(os.Stdout))
}

// NewStderrLogger is like NewLogger but writes to stderr, for commands whose
// stdout carries the actual output (answers, transcripts, the chat UI).
func NewStderrLogger(debug bool) *zap.Logger {
	return newLogger(debug, zapcore.AddSync(os.Stderr))
}

func newLogger(debug bool, sink zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, level)
	return zap.New(core, zap.AddCaller())
}

// Truncate flattens s onto one line and shortens it to at most maxLen bytes
// for use as a log field. It never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxLen {
			break
		}
		cut = i
	}
	return s[:cut] + "..."
}
