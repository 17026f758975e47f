package log

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

/*
log wraps slog with context-carried tags. Every package in i3s logs through
these functions so that tags attached higher up the call stack (a request ID, a
layer location, a page number) show up on every record emitted below them.

The "f" functions take a format string. The "w" functions take a message and an
even-length list of key-value pairs.
*/

////////////////////////////////////////////////////////////////////////////////

type contextKey int

const (
	tagsKey contextKey = iota
)

// AddTags returns a context carrying the supplied key-value pairs in addition
// to any tags already present.
func AddTags(ctx context.Context, kvs ...any) context.Context {
	if len(kvs)%2 != 0 {
		panic("log: AddTags requires an even number of arguments")
	}
	existing := tags(ctx)
	merged := make([]any, 0, len(existing)+len(kvs))
	merged = append(merged, existing...)
	merged = append(merged, kvs...)
	return context.WithValue(ctx, tagsKey, merged)
}

func tags(ctx context.Context) []any {
	value, _ := ctx.Value(tagsKey).([]any)
	return value
}

func addPairs(r *slog.Record, kvs []any) {
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprint(kvs[i])
		}
		r.Add(key, kvs[i+1])
	}
}

func emit(ctx context.Context, level slog.Level, msg string, kvs []any) {
	handler := slog.Default().Handler()
	if !handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	addPairs(&r, kvs)
	addPairs(&r, tags(ctx))
	if err := handler.Handle(ctx, r); err != nil {
		slog.ErrorContext(ctx, "error handling log record", "error", err)
	}
}

// Debugf logs a formatted message at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted message at info level.
func Infof(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted message at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted message at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelError, fmt.Sprintf(format, args...), nil)
}

// Debugw logs a message with key-value pairs at debug level.
func Debugw(ctx context.Context, msg string, kvs ...any) {
	emit(ctx, slog.LevelDebug, msg, kvs)
}

// Infow logs a message with key-value pairs at info level.
func Infow(ctx context.Context, msg string, kvs ...any) {
	emit(ctx, slog.LevelInfo, msg, kvs)
}

// Warnw logs a message with key-value pairs at warn level.
func Warnw(ctx context.Context, msg string, kvs ...any) {
	emit(ctx, slog.LevelWarn, msg, kvs)
}

// Errorw logs a message with key-value pairs at error level.
func Errorw(ctx context.Context, msg string, kvs ...any) {
	emit(ctx, slog.LevelError, msg, kvs)
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
