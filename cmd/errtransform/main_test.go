package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/errtransform/internal/pkg/clock"
	"github.com/KirkDiggler/errtransform/internal/pkg/idgen"
	errorreport "github.com/KirkDiggler/errtransform/internal/repositories/error_report"
	"github.com/KirkDiggler/errtransform/internal/testutils"
)

const rulesPath = "testdata/rules.yaml"

type CLITestSuite struct {
	suite.Suite
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func (s *CLITestSuite) execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *CLITestSuite) TestClassify() {
	testCases := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name: "rewrite in default group",
			args: []string{"--kind", "TimeoutError", "--message", "read timed out"},
			expected: []string{
				"kind:       UpstreamError",
				"code:       UNAVAILABLE",
				"message:    read timed out",
				"reportable: false",
			},
		},
		{
			name: "regex pattern",
			args: []string{"--group", "billing", "--kind", "ProviderError", "--message", "Card declined by issuer"},
			expected: []string{
				"kind:       DeclinedError",
				"code:       FAILED_PRECONDITION",
			},
		},
		{
			name: "regex default is reportable",
			args: []string{"--group", "billing", "--kind", "ProviderError", "--message", "gateway down"},
			expected: []string{
				"kind:       BillingError",
				"reportable: true",
			},
		},
		{
			name: "regex without default",
			args: []string{"--group", "billing", "--kind", "ProviderError", "--message", "gateway down", "--no-default"},
			expected: []string{
				"kind:       ProviderError",
				"code:       INTERNAL",
			},
		},
		{
			name: "except skips the rule",
			args: []string{"--kind", "TimeoutError", "--message", "slow", "--except", "TimeoutError"},
			expected: []string{
				"kind:       TimeoutError",
				"code:       DEADLINE_EXCEEDED",
			},
		},
		{
			name: "unmatched kind",
			args: []string{"--kind", "DeclinedError", "--message", "nope"},
			expected: []string{
				"kind:       DeclinedError",
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			args := append([]string{"classify", "--rules", rulesPath}, tc.args...)

			out, err := s.execute(args...)

			s.Require().NoError(err)
			for _, line := range tc.expected {
				s.Contains(out, line)
			}
		})
	}
}

func (s *CLITestSuite) TestClassifyRulesFromEnv() {
	s.T().Setenv("ERRTRANSFORM_RULES", rulesPath)

	out, err := s.execute("classify", "--kind", "TimeoutError", "--message", "slow")

	s.Require().NoError(err)
	s.Contains(out, "kind:       UpstreamError")
}

func (s *CLITestSuite) TestClassifyErrors() {
	testCases := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "no rules file",
			args:   []string{"classify", "--kind", "TimeoutError"},
			errMsg: "a rules file is required",
		},
		{
			name:   "unknown kind",
			args:   []string{"classify", "--rules", rulesPath, "--kind", "MissingError"},
			errMsg: `unknown kind "MissingError"`,
		},
		{
			name:   "unknown group",
			args:   []string{"classify", "--rules", rulesPath, "--group", "shipping", "--kind", "TimeoutError"},
			errMsg: `no error transformer registered for group "shipping"`,
		},
		{
			name:   "missing rules file",
			args:   []string{"classify", "--rules", "testdata/missing.yaml"},
			errMsg: "failed to read rules file",
		},
		{
			name:   "invalid log level",
			args:   []string{"classify", "--rules", rulesPath, "--log-level", "loud"},
			errMsg: "log.level: must be one of",
		},
		{
			name:   "missing config file",
			args:   []string{"classify", "--config", "testdata/missing-config.yaml"},
			errMsg: "failed to read config file",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.execute(tc.args...)

			s.Require().Error(err)
			s.Contains(err.Error(), tc.errMsg)
		})
	}
}

func (s *CLITestSuite) TestReportsRequireStore() {
	_, err := s.execute("reports", "list")

	s.Require().Error(err)
	s.Contains(err.Error(), "no report store configured")
}

func (s *CLITestSuite) TestReportsListAndGet() {
	client, mr, cleanup := testutils.CreateTestRedis(s.T())
	defer cleanup()

	repo, err := errorreport.NewRedisRepository(&errorreport.Config{
		Client:      client,
		Clock:       clock.NewFixed(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)),
		IDGenerator: idgen.NewSequential("rpt"),
	})
	s.Require().NoError(err)

	ctx := context.Background()
	_, err = repo.Create(ctx, errorreport.CreateInput{
		Kind:    "UpstreamError",
		Message: "provider timed out",
		Group:   "billing",
		Action:  "Charge",
		Stack:   []string{"billing.(*Service).Charge billing/service.go:42"},
	})
	s.Require().NoError(err)
	_, err = repo.Create(ctx, errorreport.CreateInput{Kind: "QuotaError", Message: "too many requests"})
	s.Require().NoError(err)

	out, err := s.execute("reports", "list", "--redis-addr", mr.Addr(), "--kind", "UpstreamError")
	s.Require().NoError(err)
	s.Contains(out, "ID")
	s.Contains(out, "rpt_1")
	s.Contains(out, "2026-03-01T09:30:00Z")
	s.Contains(out, "provider timed out")
	s.NotContains(out, "too many requests")

	out, err = s.execute("reports", "list", "--redis-addr", mr.Addr(), "--json")
	s.Require().NoError(err)
	var reports []errorreport.Report
	s.Require().NoError(json.Unmarshal([]byte(out), &reports))
	s.Require().Len(reports, 2)
	s.Equal("QuotaError", reports[0].Kind)

	out, err = s.execute("reports", "get", "rpt_1", "--redis-addr", mr.Addr())
	s.Require().NoError(err)
	var report errorreport.Report
	s.Require().NoError(json.Unmarshal([]byte(out), &report))
	s.Equal("Charge", report.Action)
	s.Equal([]string{"billing.(*Service).Charge billing/service.go:42"}, report.Stack)

	_, err = s.execute("reports", "get", "rpt_404", "--redis-addr", mr.Addr())
	s.Require().Error(err)
	s.Contains(err.Error(), "not found")
}

func (s *CLITestSuite) TestServeValidatesPort() {
	_, err := s.execute("serve", "--port", "70000")

	s.Require().Error(err)
	s.Contains(err.Error(), "server.port")
}
