package transform

import (
	"context"
	"runtime"
	"strings"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

// Handle runs work and classifies its outcome with the rules of the
// selected group. A failure goes through ResolveFailure and a success
// through ResolveSuccess; the result is returned only when both pass.
//
//	order, err := transform.Handle(ctx, s.rules, s, func() (*Order, error) {
//	    return s.client.PlaceOrder(ctx, req)
//	}, transform.InGroup("orders"))
//
// Delegates and validators receive owner and the name of the function that
// called Handle, unless Action overrides it. Handle fails with UnknownGroup,
// without running work, when the group has no rules.
func Handle[O, R any](ctx context.Context, reg *Registry[O], owner O, work func() (R, error), opts ...HandleOption) (R, error) {
	cfg := newHandleConfig(opts)
	if cfg.action == "" {
		cfg.action = callerAction(1)
	}
	return handle(ctx, reg, owner, work, cfg)
}

// Run is Handle for work that only returns an error
func Run[O any](ctx context.Context, reg *Registry[O], owner O, work func() error, opts ...HandleOption) error {
	cfg := newHandleConfig(opts)
	if cfg.action == "" {
		cfg.action = callerAction(1)
	}
	_, err := handle(ctx, reg, owner, func() (struct{}, error) {
		return struct{}{}, work()
	}, cfg)
	return err
}

func newHandleConfig(opts []HandleOption) handleConfig {
	cfg := handleConfig{
		group:   DefaultGroup,
		resolve: ResolveOptions{UseDefault: true},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.group == "" {
		cfg.group = DefaultGroup
	}
	return cfg
}

func handle[O, R any](ctx context.Context, reg *Registry[O], owner O, work func() (R, error), cfg handleConfig) (R, error) {
	var zero R

	t, ok := reg.Get(cfg.group)
	if !ok {
		return zero, errors.UnknownGroup.Newf("no error transformer registered for group %q", cfg.group)
	}

	ctx = withCall(ctx, Call{Group: cfg.group, Action: cfg.action})

	result, err := work()
	if err != nil {
		return zero, t.ResolveFailure(ctx, owner, err, cfg.action, cfg.resolve)
	}

	if err := t.ResolveSuccess(ctx, owner, result, cfg.action, cfg.resolve); err != nil {
		return zero, err
	}
	return result, nil
}

// callerAction returns the undecorated name of the function skip frames
// above the caller of callerAction. Closures report the function that
// declares them, so a call made from inside a loop body or callback is
// labelled with the enclosing method.
func callerAction(skip int) string {
	pcs := make([]uintptr, 4)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames(pcs[:n]).Next()
	return baseLabel(frame.Function)
}

// baseLabel reduces a qualified function name such as
// "example.com/pkg.(*Service).Sync.func1.2" to "Sync".
func baseLabel(function string) string {
	name := strings.ReplaceAll(function, "[...]", "")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	for len(parts) > 1 && isClosureSegment(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}

	label := parts[len(parts)-1]
	if i := strings.Index(label, "-"); i > 0 {
		label = label[:i]
	}
	return label
}

var closurePrefixes = []string{"func", "gowrap", "deferwrap"}

func isClosureSegment(segment string) bool {
	for _, prefix := range closurePrefixes {
		segment = strings.TrimPrefix(segment, prefix)
	}
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
