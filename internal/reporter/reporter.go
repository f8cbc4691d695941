// Package reporter provides the sinks a transform registry hands reportable
// errors to.
package reporter

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

var (
	_ transform.Reporter = Nop{}
	_ transform.Reporter = Func(nil)
	_ transform.Reporter = Multi(nil)
	_ transform.Reporter = (*Logger)(nil)
	_ transform.Reporter = (*Store)(nil)
)

// Nop discards every report
type Nop struct{}

// Report implements transform.Reporter
func (Nop) Report(context.Context, error) error { return nil }

// Func adapts a function to transform.Reporter
type Func func(ctx context.Context, err error) error

// Report implements transform.Reporter
func (f Func) Report(ctx context.Context, err error) error {
	return f(ctx, err)
}

// Multi fans a report out to several reporters. Every reporter is called
// even when an earlier one fails; failures are joined.
type Multi []transform.Reporter

// NewMulti builds a Multi, dropping nil reporters
func NewMulti(reporters ...transform.Reporter) Multi {
	m := make(Multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// Report implements transform.Reporter
func (m Multi) Report(ctx context.Context, err error) error {
	var errs []error
	for _, r := range m {
		if rerr := r.Report(ctx, err); rerr != nil {
			errs = append(errs, rerr)
		}
	}
	return stderrors.Join(errs...)
}

// Logger writes reports to a structured logger
type Logger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogger returns a Logger writing at error level. A nil logger uses
// slog.Default.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, level: slog.LevelError}
}

// WithLevel returns a copy logging at level
func (l *Logger) WithLevel(level slog.Level) *Logger {
	return &Logger{logger: l.logger, level: level}
}

// Report implements transform.Reporter
func (l *Logger) Report(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	attrs := []slog.Attr{
		slog.String("kind", kindName(err)),
		slog.String("code", errors.GetCode(err).String()),
		slog.String("error", err.Error()),
	}
	if call, ok := transform.CallFromContext(ctx); ok {
		attrs = append(attrs,
			slog.String("group", string(call.Group)),
			slog.String("action", call.Action))
	}
	if original := errors.OriginalOf(err); original != nil {
		attrs = append(attrs, slog.String("original", original.Error()))
	}

	l.logger.LogAttrs(ctx, l.level, "error reported", attrs...)
	return nil
}

// kindName is the name reports are filed under. Reportable variants are
// filed under the kind they were derived from.
func kindName(err error) string {
	return errors.KindFromError(err).Reported().Name()
}

func stringifyMeta(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = fmt.Sprint(v)
	}
	return out
}
