package users

import (
	"context"
	"fmt"
	"log/slog"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes a token is minted for
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// FileStorage is the filesystem adapter used for key artifacts and
// per-user asset directories. Paths are slash separated.
type FileStorage interface {
	MkdirAll(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
}

// Store is the document store contract for user records
type Store interface {
	FindOne(ctx context.Context, filter Filter) (*Record, error)
	InsertOne(ctx context.Context, record *Record) (string, error)
	FindOneAndUpdate(ctx context.Context, filter Filter, record *Record) (*Record, error)
	Aggregate(ctx context.Context, agg Aggregation) ([]UserGroup, error)
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] USERS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] USERS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] USERS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] USERS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// SlogLogger adapts a *slog.Logger. Format and args are rendered with
// fmt.Sprintf before reaching slog.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s *SlogLogger) Info(format string, args ...any)  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s *SlogLogger) Warn(format string, args ...any)  { s.l.Warn(fmt.Sprintf(format, args...)) }
func (s *SlogLogger) Error(format string, args ...any) { s.l.Error(fmt.Sprintf(format, args...)) }

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
