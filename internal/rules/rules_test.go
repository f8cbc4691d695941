package rules_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/rules"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

type RulesTestSuite struct {
	suite.Suite
	ctx      context.Context
	catalog  *errors.Catalog
	registry *transform.Registry[struct{}]
}

func TestRulesSuite(t *testing.T) {
	suite.Run(t, new(RulesTestSuite))
}

func (s *RulesTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.catalog = errors.NewCatalog()
	s.registry = transform.NewRegistry[struct{}]()
}

func (s *RulesTestSuite) kind(name string) *errors.Kind {
	k, ok := s.catalog.Lookup(name)
	s.Require().True(ok, "kind %s not defined", name)
	return k
}

func (s *RulesTestSuite) classify(group string, err error) error {
	return transform.Run(s.ctx, s.registry, struct{}{}, func() error { return err }, transform.InGroup(transform.Group(group)))
}

func (s *RulesTestSuite) applyFile() {
	f, err := rules.LoadFile("testdata/rules.yaml")
	s.Require().NoError(err)
	s.Require().NoError(rules.Apply(f, s.catalog, s.registry))
}

func (s *RulesTestSuite) TestLoadParsesFile() {
	src := `
kinds:
  - name: QuotaError
    code: RESOURCE_EXHAUSTED
    reportable: true
groups:
  limits:
    strategy: regex
    rules:
      - from: [QuotaError, StandardError]
        patterns:
          - match: "(?i)rate limit"
            to: QuotaError
        default: StandardError
        report: true
`
	f, err := rules.Load(strings.NewReader(src))
	s.Require().NoError(err)

	want := &rules.File{
		Kinds: []rules.KindSpec{
			{Name: "QuotaError", Code: "RESOURCE_EXHAUSTED", Reportable: true},
		},
		Groups: map[string]rules.GroupSpec{
			"limits": {
				Strategy: rules.StrategyRegex,
				Rules: []rules.RuleSpec{{
					From:     []string{"QuotaError", "StandardError"},
					Patterns: []rules.PatternSpec{{Match: "(?i)rate limit", To: "QuotaError"}},
					Default:  "StandardError",
					Report:   true,
				}},
			},
		},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		s.Failf("unexpected rules file", "(-want +got):\n%s", diff)
	}
}

func (s *RulesTestSuite) TestLoadFileDefinesKinds() {
	s.applyFile()

	upstream := s.kind("UpstreamError")
	timeout := s.kind("TimeoutError")

	s.Equal(errors.CodeUnavailable, upstream.Code())
	s.Equal(errors.CodeDeadlineExceeded, timeout.Code())
	s.Same(upstream, timeout.Parent())
	s.Same(errors.Standard, s.kind("ProviderError").Parent())
	s.Equal(errors.CodeInternal, s.kind("ProviderError").Code())
	s.True(s.kind("BillingError").IsAlwaysReportable())
	s.Equal([]transform.Group{"alerts", "billing", "default"}, s.registry.Groups())
}

func (s *RulesTestSuite) TestRewriteGroup() {
	s.applyFile()

	err := s.classify("default", s.kind("TimeoutError").New("read timed out"))

	s.True(s.kind("UpstreamError").Match(err))
	s.Equal(s.kind("UpstreamError"), errors.KindFromError(err))
	s.Equal("read timed out", errors.GetMessage(err))
}

func (s *RulesTestSuite) TestRegexGroup() {
	s.applyFile()
	provider := s.kind("ProviderError")

	declined := s.classify("billing", provider.New("Card declined by issuer"))
	s.Equal(s.kind("DeclinedError"), errors.KindFromError(declined))

	other := s.classify("billing", provider.New("gateway exploded"))
	s.Equal(s.kind("BillingError"), errors.KindFromError(other))
	s.True(errors.IsReportable(other))
}

func (s *RulesTestSuite) TestReportRulesUseReportableVariants() {
	s.applyFile()

	err := s.classify("alerts", errors.New(errors.CodeInternal, "disk full"))

	s.True(s.kind("UpstreamError").Match(err))
	s.True(errors.IsReportable(err))
	s.Same(s.kind("UpstreamError"), errors.KindFromError(err).Reported())
}

func (s *RulesTestSuite) TestApplyUsesKindsAlreadyInCatalog() {
	known := errors.DefineKind("KnownError")
	s.catalog = errors.NewCatalog(known)

	f, err := rules.Load(strings.NewReader(`
kinds:
  - name: ChildError
    parent: KnownError
groups:
  default:
    rules:
      - from: [ChildError]
        to: KnownError
`))
	s.Require().NoError(err)
	s.Require().NoError(rules.Apply(f, s.catalog, s.registry))

	s.True(known.Match(s.classify("default", s.kind("ChildError").New("x"))))
	s.Same(known, s.kind("ChildError").Parent())
}

func (s *RulesTestSuite) TestEmptyFile() {
	f, err := rules.Load(strings.NewReader(""))

	s.Require().NoError(err)
	s.Empty(f.Kinds)
	s.Empty(f.Groups)
}

func (s *RulesTestSuite) TestLoadRejectsInvalidFiles() {
	testCases := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "unknown field",
			yaml:   "kinds:\n  - name: A\n    colour: red\n",
			errMsg: "failed to parse rules",
		},
		{
			name:   "missing kind name",
			yaml:   "kinds:\n  - code: INTERNAL\n",
			errMsg: "kinds[0].name: is required",
		},
		{
			name:   "duplicate kind",
			yaml:   "kinds:\n  - name: A\n  - name: A\n",
			errMsg: `kinds[1].name: duplicate kind "A"`,
		},
		{
			name:   "unknown code",
			yaml:   "kinds:\n  - name: A\n    code: TEAPOT\n",
			errMsg: `kinds[0].code: unknown code "TEAPOT"`,
		},
		{
			name:   "group without rules",
			yaml:   "groups:\n  default: {}\n",
			errMsg: "groups.default.rules: at least one rule is required",
		},
		{
			name:   "unsupported strategy",
			yaml:   "groups:\n  default:\n    strategy: delegate\n    rules:\n      - from: [A]\n        to: B\n",
			errMsg: "groups.default.strategy: must be one of: rewrite, regex",
		},
		{
			name:   "rule without sources",
			yaml:   "groups:\n  default:\n    rules:\n      - to: B\n",
			errMsg: "groups.default.rules[0].from: at least one source kind is required",
		},
		{
			name:   "rewrite without target",
			yaml:   "groups:\n  default:\n    rules:\n      - from: [A]\n",
			errMsg: "groups.default.rules[0].to: is required",
		},
		{
			name:   "mixed strategies",
			yaml:   "groups:\n  default:\n    rules:\n      - from: [A]\n        to: B\n      - from: [C]\n        default: B\n",
			errMsg: "groups.default.rules[1]: is a regex rule in a rewrite group",
		},
		{
			name:   "bad pattern",
			yaml:   "groups:\n  default:\n    rules:\n      - from: [A]\n        patterns:\n          - match: \"(\"\n            to: B\n",
			errMsg: `groups.default.rules[0].patterns[0].match: invalid pattern "("`,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			f, err := rules.Load(strings.NewReader(tc.yaml))

			s.Nil(f)
			s.Require().Error(err)
			s.True(errors.InvalidRule.Match(err))
			s.Contains(err.Error(), tc.errMsg)
		})
	}
}

func (s *RulesTestSuite) TestApplyRejectsUnresolvedNames() {
	testCases := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "unknown parent",
			yaml:   "kinds:\n  - name: A\n    parent: Missing\n",
			errMsg: `kind "A" has unknown parent "Missing"`,
		},
		{
			name:   "unknown source",
			yaml:   "groups:\n  default:\n    rules:\n      - from: [Missing]\n        to: StandardError\n",
			errMsg: `unknown source kind "Missing"`,
		},
		{
			name:   "unknown target",
			yaml:   "groups:\n  default:\n    rules:\n      - from: [StandardError]\n        to: Missing\n",
			errMsg: `unknown kind "Missing"`,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			f, err := rules.Load(strings.NewReader(tc.yaml))
			s.Require().NoError(err)

			err = rules.Apply(f, errors.NewCatalog(), transform.NewRegistry[struct{}]())
			s.Require().Error(err)
			s.True(errors.InvalidRule.Match(err))
			s.Contains(err.Error(), tc.errMsg)
		})
	}
}

func (s *RulesTestSuite) TestApplyRejectsRedefinedKinds() {
	s.catalog = errors.NewCatalog(errors.DefineKind("Taken"))

	f, err := rules.Load(strings.NewReader("kinds:\n  - name: Taken\n"))
	s.Require().NoError(err)

	err = rules.Apply(f, s.catalog, s.registry)
	s.Require().Error(err)
	s.Equal(errors.CodeAlreadyExists, errors.GetCode(err))
}

func (s *RulesTestSuite) TestRejectedFileLeavesCatalogAndRegistryUntouched() {
	existing := errors.DefineKind("ExistingError")
	s.catalog = errors.NewCatalog(existing)
	s.Require().NoError(s.registry.Register("legacy", transform.RewriteTo(errors.Standard), existing))

	testCases := []struct {
		name string
		yaml string
		kind func(error) bool
	}{
		{
			name: "unknown kind in a later group",
			yaml: `
kinds:
  - name: FreshError
groups:
  alpha:
    rules:
      - from: [FreshError]
        to: ExistingError
  beta:
    rules:
      - from: [FreshError]
        to: MissingError
`,
			kind: errors.InvalidRule.Match,
		},
		{
			name: "strategy of an existing group",
			yaml: `
kinds:
  - name: FreshError
groups:
  alpha:
    rules:
      - from: [FreshError]
        to: ExistingError
  legacy:
    rules:
      - from: [FreshError]
        patterns:
          - match: "x"
            to: ExistingError
`,
			kind: errors.StrategyConflict.Match,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			f, err := rules.Load(strings.NewReader(tc.yaml))
			s.Require().NoError(err)

			err = rules.Apply(f, s.catalog, s.registry)
			s.Require().Error(err)
			s.True(tc.kind(err))

			_, defined := s.catalog.Lookup("FreshError")
			s.False(defined)
			s.Equal([]transform.Group{"legacy"}, s.registry.Groups())
		})
	}
}

func (s *RulesTestSuite) TestLoadFileMissing() {
	_, err := rules.LoadFile("testdata/missing.yaml")
	s.Error(err)
}
