package transform

import (
	"slices"
	"sync"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

// Registry holds one Transformer per group for an owner type. Registries
// are independent: nothing is shared between two registries, even when
// their owner types are related.
type Registry[O any] struct {
	mu           sync.RWMutex
	transformers map[Group]*Transformer[O]
	opts         []Option
}

// NewRegistry creates an empty registry. The options apply to every
// transformer the registry creates.
func NewRegistry[O any](opts ...Option) *Registry[O] {
	return &Registry[O]{
		transformers: make(map[Group]*Transformer[O]),
		opts:         opts,
	}
}

// GetOrCreate returns the transformer for group, creating it with strategy
// if absent. The strategy is ignored for existing transformers.
func (r *Registry[O]) GetOrCreate(group Group, strategy Strategy) *Transformer[O] {
	if group == "" {
		group = DefaultGroup
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.transformers[group]; ok {
		return t
	}
	t := NewTransformer[O](group, strategy, r.opts...)
	r.transformers[group] = t
	return t
}

// Get returns the transformer for group. A missing transformer means no
// rule was ever registered for the group.
func (r *Registry[O]) Get(group Group) (*Transformer[O], bool) {
	if group == "" {
		group = DefaultGroup
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transformers[group]
	return t, ok
}

// Register declares a rule for group. The first rule of a group fixes its
// strategy.
//
//	reg.Register(transform.DefaultGroup, transform.RewriteTo(ErrUpstream), ErrTimeout, ErrRefused)
//	reg.Register("billing", transform.Patterns(
//	    transform.WhenMatch(`(?i)card declined`, ErrDeclined),
//	    transform.Default(ErrBilling),
//	), ErrProvider)
func (r *Registry[O]) Register(group Group, target Target, sources ...*errors.Kind) error {
	if target == nil {
		return errors.InvalidRule.New("target is required")
	}
	if group == "" {
		group = DefaultGroup
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transformers[group]
	if !ok {
		t = NewTransformer[O](group, target.Strategy(), r.opts...)
	}
	if err := t.RegisterTarget(target, sources...); err != nil {
		return err
	}
	r.transformers[group] = t
	return nil
}

// Groups returns the registered groups in sorted order
func (r *Registry[O]) Groups() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]Group, 0, len(r.transformers))
	for g := range r.transformers {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}
