// Package rules loads error kinds and rewrite rules declared in YAML.
//
// A rules file declares kinds and, per group, rewrite or regex rules:
//
//	kinds:
//	  - name: UpstreamError
//	    code: UNAVAILABLE
//	  - name: TimeoutError
//	    parent: UpstreamError
//	groups:
//	  default:
//	    rules:
//	      - from: [TimeoutError]
//	        to: UpstreamError
//	  billing:
//	    strategy: regex
//	    rules:
//	      - from: [ProviderError]
//	        patterns:
//	          - match: "(?i)card declined"
//	            to: DeclinedError
//	        default: BillingError
//
// Delegates and validators are code and cannot be declared in a file.
package rules

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

// Strategies that can be declared in a file
const (
	StrategyRewrite = "rewrite"
	StrategyRegex   = "regex"
)

// File is a parsed rules file
type File struct {
	Kinds  []KindSpec           `yaml:"kinds"`
	Groups map[string]GroupSpec `yaml:"groups"`
}

// KindSpec declares an error kind
type KindSpec struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	Code   string `yaml:"code"`
	// Reportable marks every instance of the kind reportable
	Reportable bool `yaml:"reportable"`
}

// GroupSpec declares the rules of one group. Strategy is inferred from the
// rules when empty.
type GroupSpec struct {
	Strategy string     `yaml:"strategy"`
	Rules    []RuleSpec `yaml:"rules"`
}

// RuleSpec maps source kinds to a rewrite target or to message patterns
type RuleSpec struct {
	From     []string      `yaml:"from"`
	To       string        `yaml:"to"`
	Patterns []PatternSpec `yaml:"patterns"`
	Default  string        `yaml:"default"`
	// Report rewrites to the reportable variant of each target kind
	Report bool `yaml:"report"`
}

// PatternSpec is one message pattern of a regex rule
type PatternSpec struct {
	Match string `yaml:"match"`
	To    string `yaml:"to"`
}

func (r RuleSpec) strategy() string {
	if len(r.Patterns) > 0 || r.Default != "" {
		return StrategyRegex
	}
	return StrategyRewrite
}

// Load parses and validates a rules file. Unknown fields are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.InvalidRule.Wrap(err, "failed to parse rules")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses the rules file at path
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read rules file %s", path)
	}
	return Load(bytes.NewReader(data))
}

// Validate checks the file without resolving kind names
func (f *File) Validate() error {
	vb := errors.NewValidationBuilder()

	seen := make(map[string]bool, len(f.Kinds))
	for i, k := range f.Kinds {
		field := fmt.Sprintf("kinds[%d]", i)
		if k.Name == "" {
			vb.Field(field+".name", "is required")
			continue
		}
		if seen[k.Name] {
			vb.Fieldf(field+".name", "duplicate kind %q", k.Name)
		}
		seen[k.Name] = true
		if k.Code != "" && !errors.Code(strings.ToUpper(k.Code)).Valid() {
			vb.Fieldf(field+".code", "unknown code %q", k.Code)
		}
	}

	for _, name := range f.groupNames() {
		g := f.Groups[name]
		field := "groups." + name

		if len(g.Rules) == 0 {
			vb.Field(field+".rules", "at least one rule is required")
			continue
		}

		strategy := g.Strategy
		if strategy == "" {
			strategy = g.Rules[0].strategy()
		}
		if strategy != StrategyRewrite && strategy != StrategyRegex {
			vb.Fieldf(field+".strategy", "must be one of: %s, %s", StrategyRewrite, StrategyRegex)
			continue
		}

		for i, r := range g.Rules {
			rfield := fmt.Sprintf("%s.rules[%d]", field, i)
			if len(r.From) == 0 {
				vb.Field(rfield+".from", "at least one source kind is required")
			}
			if r.strategy() != strategy {
				vb.Fieldf(rfield, "is a %s rule in a %s group", r.strategy(), strategy)
				continue
			}
			if strategy == StrategyRewrite && r.To == "" {
				vb.RequiredField(rfield + ".to")
			}
			for j, p := range r.Patterns {
				pfield := fmt.Sprintf("%s.patterns[%d]", rfield, j)
				if p.To == "" {
					vb.RequiredField(pfield + ".to")
				}
				if _, err := regexp.Compile(p.Match); err != nil || p.Match == "" {
					vb.Fieldf(pfield+".match", "invalid pattern %q", p.Match)
				}
			}
		}
	}

	if err := vb.Build(); err != nil {
		return errors.InvalidRule.Wrap(err, "invalid rules")
	}
	return nil
}

// Apply defines the file's kinds in catalog and registers its rules on reg.
// Parents and rule kinds may name kinds already in the catalog.
//
// Every name is resolved and every group's strategy checked before catalog
// or reg is changed, so a rejected file leaves both as they were.
func Apply[O any](f *File, catalog *errors.Catalog, reg *transform.Registry[O]) error {
	kinds, err := f.buildKinds(catalog)
	if err != nil {
		return err
	}
	lookup := func(name string) (*errors.Kind, bool) {
		if k, ok := kinds[name]; ok {
			return k, true
		}
		return catalog.Lookup(name)
	}

	pending, err := f.resolveRules(lookup)
	if err != nil {
		return err
	}

	strategies := make(map[transform.Group]transform.Strategy)
	for _, p := range pending {
		want, ok := strategies[p.group]
		if !ok {
			want = p.target.Strategy()
			if t, exists := reg.Get(p.group); exists {
				want = t.Strategy()
			}
			strategies[p.group] = want
		}
		if got := p.target.Strategy(); got != want {
			return errors.StrategyConflict.Newf("group %q rule %d: group uses the %s strategy, cannot register a %s rule",
				p.group, p.index, want, got)
		}
	}

	for _, spec := range f.Kinds {
		if err := catalog.Add(kinds[spec.Name]); err != nil {
			return errors.Wrapf(err, "failed to define kind %q", spec.Name)
		}
	}
	for _, p := range pending {
		if err := reg.Register(p.group, p.target, p.sources...); err != nil {
			return errors.Wrapf(err, "group %q rule %d", p.group, p.index)
		}
	}
	return nil
}

// buildKinds creates the file's kinds without adding them to catalog
func (f *File) buildKinds(catalog *errors.Catalog) (map[string]*errors.Kind, error) {
	kinds := make(map[string]*errors.Kind, len(f.Kinds))
	for _, spec := range f.Kinds {
		if spec.Name == "" {
			return nil, errors.InvalidRule.New("kind name is required")
		}
		if _, taken := catalog.Lookup(spec.Name); taken || kinds[spec.Name] != nil {
			return nil, errors.Wrapf(errors.AlreadyExistsf("kind %q is already defined", spec.Name),
				"failed to define kind %q", spec.Name)
		}

		opts := []errors.KindOption{}
		if spec.Parent != "" {
			parent, ok := kinds[spec.Parent]
			if !ok {
				parent, ok = catalog.Lookup(spec.Parent)
			}
			if !ok {
				return nil, errors.InvalidRule.Newf("kind %q has unknown parent %q", spec.Name, spec.Parent)
			}
			opts = append(opts, errors.Parent(parent))
		}
		if spec.Code != "" {
			opts = append(opts, errors.WithCode(errors.Code(strings.ToUpper(spec.Code))))
		}
		if spec.Reportable {
			opts = append(opts, errors.AlwaysReportable())
		}
		kinds[spec.Name] = errors.DefineKind(spec.Name, opts...)
	}
	return kinds, nil
}

type pendingRule struct {
	group   transform.Group
	index   int
	target  transform.Target
	sources []*errors.Kind
}

func (f *File) resolveRules(lookup func(string) (*errors.Kind, bool)) ([]pendingRule, error) {
	var pending []pendingRule
	for _, name := range f.groupNames() {
		for i, rule := range f.Groups[name].Rules {
			target, sources, err := resolveRule(rule, lookup)
			if err != nil {
				return nil, errors.Wrapf(err, "group %q rule %d", name, i)
			}
			pending = append(pending, pendingRule{
				group:   transform.Group(name),
				index:   i,
				target:  target,
				sources: sources,
			})
		}
	}
	return pending, nil
}

func resolveRule(rule RuleSpec, find func(string) (*errors.Kind, bool)) (transform.Target, []*errors.Kind, error) {
	lookup := func(name string) (*errors.Kind, error) {
		k, ok := find(name)
		if !ok {
			return nil, errors.InvalidRule.Newf("unknown kind %q", name)
		}
		if rule.Report {
			k = k.AsReportable()
		}
		return k, nil
	}

	sources := make([]*errors.Kind, 0, len(rule.From))
	for _, name := range rule.From {
		k, ok := find(name)
		if !ok {
			return nil, nil, errors.InvalidRule.Newf("unknown source kind %q", name)
		}
		sources = append(sources, k)
	}

	if rule.strategy() == StrategyRewrite {
		to, err := lookup(rule.To)
		if err != nil {
			return nil, nil, err
		}
		return transform.RewriteTo(to), sources, nil
	}

	patterns := make([]transform.PatternRule, 0, len(rule.Patterns)+1)
	for _, p := range rule.Patterns {
		to, err := lookup(p.To)
		if err != nil {
			return nil, nil, err
		}
		re, err := regexp.Compile(p.Match)
		if err != nil {
			return nil, nil, errors.InvalidRule.Wrap(err, "invalid pattern")
		}
		patterns = append(patterns, transform.When(re, to))
	}
	if rule.Default != "" {
		to, err := lookup(rule.Default)
		if err != nil {
			return nil, nil, err
		}
		patterns = append(patterns, transform.Default(to))
	}
	return transform.Patterns(patterns...), sources, nil
}

func (f *File) groupNames() []string {
	names := make([]string, 0, len(f.Groups))
	for name := range f.Groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
