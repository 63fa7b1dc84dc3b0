// Package telemetry provides the zerolog-backed structured logger used across
// the service and CLI.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig selects the logger's level, format, and destination.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	Output string `yaml:"output"`
}

// Logger wraps zerolog.Logger behind the service's key/value logging surface.
type Logger struct {
	zlog zerolog.Logger
}

// NewLogger creates a logger from the configuration. Empty fields default to
// info-level JSON on stderr.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		writer = file
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	zlog := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return &Logger{zlog: zlog}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog exposes the underlying zerolog logger for packages that want the
// native API.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

func emit(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}

// Debug logs at debug level with alternating key/value pairs.
func (l *Logger) Debug(msg string, args ...any) { emit(l.zlog.Debug(), msg, args) }

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(msg string, args ...any) { emit(l.zlog.Info(), msg, args) }

// Warn logs at warn level with alternating key/value pairs.
func (l *Logger) Warn(msg string, args ...any) { emit(l.zlog.Warn(), msg, args) }

// Error logs at error level with alternating key/value pairs.
func (l *Logger) Error(msg string, args ...any) { emit(l.zlog.Error(), msg, args) }
