// Package logging wraps log/slog with context-aware helpers taking
// typed slog.Attr values, plus attribute constructors for the ids that
// recur across the ride engine.
package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Setup installs the default slog logger. JSON output is used outside
// of the dev environment.
func Setup(env, level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(env, "dev") || env == "" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR onto slog levels, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelError, msg, attrs...)
}

// logAttrs must only be called from the exported helpers above: the
// caller frame skip count assumes exactly one intermediate frame.
func logAttrs(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l := slog.Default()
	if !l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = l.Handler().Handle(ctx, r)
}

// Err renders err as a string attribute; a nil error logs as "no-error".
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "no-error")
	}
	return slog.String("error", err.Error())
}

func RideID(id uint64) slog.Attr { return slog.Uint64("ride_id", id) }

func UserID(id uint64) slog.Attr { return slog.Uint64("user_id", id) }

func ReviewID(id uint64) slog.Attr { return slog.Uint64("review_id", id) }

func EventID(id string) slog.Attr { return slog.String("event_id", id) }

func Component(name string) slog.Attr { return slog.String("component", name) }

func Status(s string) slog.Attr { return slog.String("status", s) }

func Count(key string, n int) slog.Attr { return slog.Int(key, n) }

func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }
