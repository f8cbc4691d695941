package transform

//go:generate mockgen -destination=mock/mock_transform.go -package=transformmock github.com/KirkDiggler/errtransform/internal/transform Reporter,Observer

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

// Reporter forwards errors to an external failure tracking sink
type Reporter interface {
	Report(ctx context.Context, err error) error
}

// Observer is told the outcome of every classification call
type Observer interface {
	Observe(group Group, strategy Strategy, outcome Outcome)
}

// Option configures transformers created by a Registry
type Option func(*settings)

type settings struct {
	reporter Reporter
	observer Observer
	logger   *slog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithReporter sets the reporter notified of reportable errors
func WithReporter(r Reporter) Option {
	return func(s *settings) {
		s.reporter = r
	}
}

// WithObserver sets the outcome observer
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observer = o
	}
}

// WithLogger sets the logger used for reporter failures
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// ResolveOptions tune a single classification call
type ResolveOptions struct {
	// Except lists source kinds whose rules are skipped
	Except []*errors.Kind
	// UseDefault enables the default rule of regex targets
	UseDefault bool
	// Report forces the surfaced error to be reported
	Report bool
}

// HandleOption configures Handle and Run
type HandleOption func(*handleConfig)

type handleConfig struct {
	group   Group
	action  string
	resolve ResolveOptions
}

// InGroup selects the rule group, DefaultGroup when omitted
func InGroup(group Group) HandleOption {
	return func(c *handleConfig) {
		c.group = group
	}
}

// Except skips rules registered for the given source kinds
func Except(kinds ...*errors.Kind) HandleOption {
	return func(c *handleConfig) {
		c.resolve.Except = append(c.resolve.Except, kinds...)
	}
}

// UseDefault toggles the default rule of regex targets. It is on by default.
func UseDefault(use bool) HandleOption {
	return func(c *handleConfig) {
		c.resolve.UseDefault = use
	}
}

// Action overrides the calling context label passed to delegates and
// validators. By default it is the name of the function calling Handle.
func Action(action string) HandleOption {
	return func(c *handleConfig) {
		c.action = action
	}
}

// Report forces the surfaced error to be reported
func Report() HandleOption {
	return func(c *handleConfig) {
		c.resolve.Report = true
	}
}

// Call describes the classification call in progress
type Call struct {
	Group  Group
	Action string
}

type callKey struct{}

func withCall(ctx context.Context, call Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// CallFromContext returns the classification call a context belongs to.
// Reporters use it to label what they record.
func CallFromContext(ctx context.Context) (Call, bool) {
	call, ok := ctx.Value(callKey{}).(Call)
	return call, ok
}
