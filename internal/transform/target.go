package transform

import (
	"context"
	"regexp"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

// Target is what a rule resolves to. The target's type decides the strategy
// of the group it is registered on.
type Target interface {
	Strategy() Strategy
}

// RewriteTarget replaces matching errors with an instance of To
type RewriteTarget struct {
	To *errors.Kind
}

// Strategy implements Target
func (RewriteTarget) Strategy() Strategy { return StrategyRewrite }

// RewriteTo returns a rewrite target
func RewriteTo(kind *errors.Kind) RewriteTarget {
	return RewriteTarget{To: kind}
}

// PatternRule pairs a message pattern with the kind it produces. A rule
// without a pattern is the default rule.
type PatternRule struct {
	Pattern *regexp.Regexp
	To      *errors.Kind
}

// When builds a pattern rule
func When(pattern *regexp.Regexp, to *errors.Kind) PatternRule {
	return PatternRule{Pattern: pattern, To: to}
}

// WhenMatch compiles expr and builds a pattern rule. It panics if expr does
// not compile.
func WhenMatch(expr string, to *errors.Kind) PatternRule {
	return When(regexp.MustCompile(expr), to)
}

// Default builds the rule used when no pattern matches
func Default(to *errors.Kind) PatternRule {
	return PatternRule{To: to}
}

// PatternTarget chooses the replacement kind from the error message.
// Patterns are tried in order.
type PatternTarget struct {
	rules    []PatternRule
	fallback *errors.Kind
}

// Strategy implements Target
func (*PatternTarget) Strategy() Strategy { return StrategyRegex }

// Patterns builds a pattern target. The last Default rule wins.
func Patterns(rules ...PatternRule) *PatternTarget {
	t := &PatternTarget{}
	for _, r := range rules {
		if r.Pattern == nil {
			t.fallback = r.To
			continue
		}
		t.rules = append(t.rules, r)
	}
	return t
}

// Rules returns the pattern rules in match order
func (t *PatternTarget) Rules() []PatternRule {
	return t.rules
}

// Fallback returns the default kind, or nil
func (t *PatternTarget) Fallback() *errors.Kind {
	return t.fallback
}

// DelegateFunc handles a failure itself. It returns the error to surface,
// or nil to surface the original error unchanged.
type DelegateFunc[O any] func(ctx context.Context, owner O, err error, action string) error

// Strategy implements Target
func (DelegateFunc[O]) Strategy() Strategy { return StrategyDelegate }

// ValidatorFunc checks a successful result. A non-nil error is surfaced to
// the caller in place of the result.
type ValidatorFunc[O any] func(ctx context.Context, owner O, result any, action string) error

// Strategy implements Target
func (ValidatorFunc[O]) Strategy() Strategy { return StrategyValidate }
