package transform

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

// MaxMessageSize caps the length, in characters, of every message produced
// by a rewrite.
const MaxMessageSize = 100

// defaultPatternLabel is the readable form of the default regex rule
const defaultPatternLabel = "default"

var (
	groupPrefix = regexp.MustCompile(`\(\?(?:P?<\w+>|[a-zA-Z-]*:?)`)
	nonWord     = regexp.MustCompile(`[^\w\s]`)
)

// Mapping is a registered source kind and its target
type Mapping struct {
	Source *errors.Kind
	Target Target
}

// Transformer classifies the outcomes of one rule group. Its strategy is
// fixed by the first rule registered on it.
type Transformer[O any] struct {
	group    Group
	strategy Strategy
	settings settings

	mu        sync.RWMutex
	mappings  []Mapping
	positions map[*errors.Kind]int
	validator ValidatorFunc[O]
	delegate  DelegateFunc[O]
}

// NewTransformer creates a transformer for group using strategy
func NewTransformer[O any](group Group, strategy Strategy, opts ...Option) *Transformer[O] {
	return &Transformer[O]{
		group:     group,
		strategy:  strategy,
		settings:  newSettings(opts),
		positions: make(map[*errors.Kind]int),
	}
}

// Group returns the group the transformer serves
func (t *Transformer[O]) Group() Group {
	return t.group
}

// Strategy returns the transformer strategy
func (t *Transformer[O]) Strategy() Strategy {
	return t.strategy
}

// Mappings returns the registered mappings in registration order
func (t *Transformer[O]) Mappings() []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.mappings)
}

// RegisterTarget adds a rule. Rewrite and regex targets are mapped from
// every source kind; registering a source again replaces its target but
// keeps its original position. Delegates and validators replace the
// previous one. A target whose strategy differs from the transformer's is
// rejected with StrategyConflict.
func (t *Transformer[O]) RegisterTarget(target Target, sources ...*errors.Kind) error {
	if target == nil {
		return errors.InvalidRule.New("target is required")
	}
	if target.Strategy() != t.strategy {
		return errors.StrategyConflict.Newf("group %q uses the %s strategy, cannot register a %s rule",
			t.group, t.strategy, target.Strategy())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch tgt := target.(type) {
	case ValidatorFunc[O]:
		if tgt == nil {
			return errors.InvalidRule.New("validator is required")
		}
		t.validator = tgt
		return nil
	case DelegateFunc[O]:
		if tgt == nil {
			return errors.InvalidRule.New("delegate is required")
		}
		t.delegate = tgt
		return nil
	case RewriteTarget:
		if tgt.To == nil {
			return errors.InvalidRule.New("rewrite target kind is required")
		}
	case *PatternTarget:
		if tgt == nil || (len(tgt.rules) == 0 && tgt.fallback == nil) {
			return errors.InvalidRule.New("at least one pattern is required")
		}
	default:
		return errors.InvalidRule.Newf("unsupported target %T for group %q", target, t.group)
	}

	if len(sources) == 0 {
		return errors.InvalidRule.Newf("at least one source kind is required for group %q", t.group)
	}
	for _, source := range sources {
		if source == nil {
			return errors.InvalidRule.New("source kind cannot be nil")
		}
	}

	for _, source := range sources {
		if i, ok := t.positions[source]; ok {
			t.mappings[i].Target = target
			continue
		}
		t.positions[source] = len(t.mappings)
		t.mappings = append(t.mappings, Mapping{Source: source, Target: target})
	}
	return nil
}

// ResolveFailure classifies err and returns the error to surface: a new
// error built from the matching rule, whatever the delegate returned, or
// err itself when nothing matched.
func (t *Transformer[O]) ResolveFailure(ctx context.Context, owner O, err error, action string, opts ResolveOptions) error {
	if err == nil {
		return nil
	}

	out, outcome := err, OutcomeUnmatched

	switch t.strategy {
	case StrategyDelegate:
		if d := t.delegateFunc(); d != nil {
			if handled := d(ctx, owner, err, action); handled != nil {
				out, outcome = handled, OutcomeDelegated
			}
		}
	case StrategyRewrite, StrategyRegex:
		if kind, message, ok := t.findTarget(err, opts); ok {
			out, outcome = t.build(kind, message, err), OutcomeRewritten
		}
	}

	t.observe(outcome)
	t.maybeReport(ctx, err, out, opts.Report)
	return out
}

// ResolveSuccess runs the validator on result. It only applies to the
// validate strategy and returns the validator's error, if any.
func (t *Transformer[O]) ResolveSuccess(ctx context.Context, owner O, result any, action string, opts ResolveOptions) error {
	if t.strategy != StrategyValidate {
		return nil
	}

	t.mu.RLock()
	validator := t.validator
	t.mu.RUnlock()

	if validator == nil {
		return nil
	}

	if err := validator(ctx, owner, result, action); err != nil {
		t.observe(OutcomeValidationFailed)
		t.maybeReport(ctx, nil, err, opts.Report)
		return err
	}

	t.observe(OutcomeValidated)
	return nil
}

func (t *Transformer[O]) delegateFunc() DelegateFunc[O] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.delegate
}

// findTarget returns the replacement kind and message for err
func (t *Transformer[O]) findTarget(err error, opts ResolveOptions) (*errors.Kind, string, bool) {
	target, ok := t.findMapping(err, opts.Except)
	if !ok {
		return nil, "", false
	}

	message := messageOf(err)

	switch tgt := target.(type) {
	case RewriteTarget:
		return tgt.To, message, true
	case *PatternTarget:
		var matched *PatternRule
		for i := range tgt.rules {
			if tgt.rules[i].Pattern.MatchString(message) {
				matched = &tgt.rules[i]
				break
			}
		}

		kind := tgt.fallback
		label := defaultPatternLabel
		if matched != nil {
			kind = matched.To
			label = readablePattern(matched.Pattern)
		} else if !opts.UseDefault {
			kind = nil
		}
		if kind == nil {
			return nil, "", false
		}

		if utf8.RuneCountInString(message) > MaxMessageSize {
			message = label
		}
		return kind, message, true
	}
	return nil, "", false
}

// findMapping selects the most specific registered source kind that err is
// an instance of. Ties go to the source registered last.
func (t *Transformer[O]) findMapping(err error, except []*errors.Kind) (Target, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		best      Target
		bestDepth int
	)
	for _, m := range t.mappings {
		if slices.Contains(except, m.Source) || !m.Source.Match(err) {
			continue
		}
		if depth := m.Source.Depth(); best == nil || depth >= bestDepth {
			best, bestDepth = m.Target, depth
		}
	}
	return best, best != nil
}

// build creates the replacement error, keeping the stack of the original
func (t *Transformer[O]) build(kind *errors.Kind, message string, original error) error {
	out := kind.New(truncate(message, MaxMessageSize)).WithOriginal(original)
	if stack := errors.StackOf(original); len(stack) > 0 {
		out.WithStack(stack)
	}
	return out
}

func (t *Transformer[O]) observe(outcome Outcome) {
	if t.settings.observer != nil {
		t.settings.observer.Observe(t.group, t.strategy, outcome)
	}
}

// maybeReport notifies the reporter when the surfaced error, or the error it
// replaced, is reportable. Reporter failures are logged and never replace
// the surfaced error.
func (t *Transformer[O]) maybeReport(ctx context.Context, original, out error, force bool) {
	if t.settings.reporter == nil || out == nil {
		return
	}
	if !force && !errors.IsReportable(out) && !errors.IsReportable(original) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.settings.logger.Error("error reporter panicked",
				"group", t.group,
				"panic", fmt.Sprint(r),
				"error", out)
		}
	}()

	if err := t.settings.reporter.Report(ctx, out); err != nil {
		t.settings.logger.Warn("failed to report error",
			"group", t.group,
			"report_error", err,
			"error", out)
	}
}

// messageOf returns the message of an Error. For other errors it returns
// their text, with the first Error in the chain rendered as its message so
// kind names do not leak into rewritten messages.
func messageOf(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if err == error(e) {
		return e.Message
	}
	return strings.Replace(err.Error(), e.Error(), e.Message, 1)
}

// readablePattern renders a pattern as plain words for use as a message.
// Flag groups, non-capturing and named group prefixes are dropped.
func readablePattern(re *regexp.Regexp) string {
	src := groupPrefix.ReplaceAllString(re.String(), "")
	return nonWord.ReplaceAllString(src, "")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
