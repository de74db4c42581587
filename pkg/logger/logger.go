package logger

import (
	"log/slog"
	"os"
	"strings"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type slogLogger struct {
	l *slog.Logger
}

func New(level string) Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &slogLogger{l: slog.New(handler)}
}

func (s *slogLogger) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }

func (s *slogLogger) Fatal(msg string, args ...interface{}) {
	s.l.Error(msg, args...)
	os.Exit(1)
}
