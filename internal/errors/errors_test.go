package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

type ErrorsTestSuite struct {
	suite.Suite
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}

func (s *ErrorsTestSuite) TestNewError() {
	testCases := []struct {
		name     string
		code     errors.Code
		message  string
		expected string
	}{
		{
			name:     "not found error",
			code:     errors.CodeNotFound,
			message:  "report not found",
			expected: "StandardError: report not found",
		},
		{
			name:     "invalid argument error",
			code:     errors.CodeInvalidArgument,
			message:  "invalid input",
			expected: "StandardError: invalid input",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := errors.New(tc.code, tc.message)
			s.Assert().Equal(tc.expected, err.Error())
			s.Assert().Equal(tc.code, err.Code)
			s.Assert().Equal(tc.message, err.Message)
			s.Assert().Equal(errors.Standard, err.Kind())
			s.Assert().NotEmpty(err.Stack())
		})
	}
}

func (s *ErrorsTestSuite) TestWrap() {
	baseErr := fmt.Errorf("database connection failed")
	wrapped := errors.Wrap(baseErr, "failed to store report")

	s.Assert().Equal(errors.CodeInternal, wrapped.Code)
	s.Assert().Equal("failed to store report", wrapped.Message)
	s.Assert().Equal(baseErr, wrapped.Unwrap())
}

func (s *ErrorsTestSuite) TestWrapPreservesCodeAndKind() {
	quota := errors.DefineKind("Quota", errors.WithCode(errors.CodeResourceExhausted))
	baseErr := quota.New("too many requests")
	baseErr.MarkReportable()

	wrapped := errors.Wrap(baseErr, "upload rejected")

	s.Assert().Equal(errors.CodeResourceExhausted, wrapped.Code)
	s.Assert().Equal(quota, wrapped.Kind())
	s.Assert().True(wrapped.Reportable())
	s.Assert().Equal(baseErr.Stack(), wrapped.Stack())
}

func (s *ErrorsTestSuite) TestWrapNil() {
	s.Assert().Nil(errors.Wrap(nil, "should be nil"))
	s.Assert().Nil(errors.Standard.Wrap(nil, "should be nil"))
}

func (s *ErrorsTestSuite) TestErrorIs() {
	parent := errors.DefineKind("Parent")
	child := errors.DefineKind("Child", errors.Parent(parent))
	other := errors.DefineKind("Other")

	err := child.New("boom")

	s.Assert().True(stderrors.Is(err, child))
	s.Assert().True(stderrors.Is(err, parent))
	s.Assert().True(stderrors.Is(err, errors.Standard))
	s.Assert().False(stderrors.Is(err, other))
	s.Assert().True(stderrors.Is(fmt.Errorf("context: %w", err), parent))
	s.Assert().True(err.Is(child.New("another")))
}

func (s *ErrorsTestSuite) TestGetCode() {
	err := errors.NotFound("test")
	wrapped := errors.Wrap(err, "wrapped")

	s.Assert().Equal(errors.CodeNotFound, errors.GetCode(err))
	s.Assert().Equal(errors.CodeNotFound, errors.GetCode(wrapped))
	s.Assert().Equal(errors.CodeInternal, errors.GetCode(fmt.Errorf("standard error")))
	s.Assert().Equal(errors.CodeOK, errors.GetCode(nil))
}

func (s *ErrorsTestSuite) TestGetMessage() {
	err := errors.NotFound("user friendly message")
	wrapped := errors.Wrap(err, "wrapped message")
	stdErr := fmt.Errorf("standard error")

	s.Assert().Equal("user friendly message", errors.GetMessage(err))
	s.Assert().Equal("wrapped message", errors.GetMessage(wrapped))
	s.Assert().Equal("standard error", errors.GetMessage(stdErr))
}

func (s *ErrorsTestSuite) TestKindFromError() {
	quota := errors.DefineKind("Quota")

	s.Assert().Nil(errors.KindFromError(nil))
	s.Assert().Equal(errors.Standard, errors.KindFromError(fmt.Errorf("plain")))
	s.Assert().Equal(quota, errors.KindFromError(fmt.Errorf("ctx: %w", quota.New("x"))))
}

func (s *ErrorsTestSuite) TestOriginalIsNotUnwrapped() {
	original := fmt.Errorf("socket closed")
	replaced := errors.Standard.New("upstream failed").WithOriginal(original)

	s.Assert().Equal(original, errors.OriginalOf(replaced))
	s.Assert().False(stderrors.Is(replaced, original))
}

func (s *ErrorsTestSuite) TestStackOf() {
	err := errors.Standard.New("boom")
	frames := err.Stack().Frames()

	s.Require().NotEmpty(frames)
	s.Assert().Contains(frames[0].Function, "TestStackOf")
	s.Assert().Equal(err.Stack(), errors.StackOf(fmt.Errorf("ctx: %w", err)))
	s.Assert().Nil(errors.StackOf(fmt.Errorf("plain")))
}

func (s *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     errors.Code
		expected int
	}{
		{errors.CodeOK, 200},
		{errors.CodeNotFound, 404},
		{errors.CodeInvalidArgument, 400},
		{errors.CodeAlreadyExists, 409},
		{errors.CodePermissionDenied, 403},
		{errors.CodeUnauthenticated, 401},
		{errors.CodeInternal, 500},
		{errors.CodeUnavailable, 503},
		{errors.Code("BOGUS"), 500},
	}

	for _, tc := range testCases {
		s.Run(string(tc.code), func() {
			s.Assert().Equal(tc.expected, tc.code.HTTPStatus())
		})
	}
}

func (s *ErrorsTestSuite) TestGRPCConversion() {
	quota := errors.DefineKind("Quota", errors.WithCode(errors.CodeResourceExhausted))
	err := quota.New("slow down").WithMeta("tenant", "acme")

	grpcErr := errors.ToGRPCError(err)
	st, ok := status.FromError(grpcErr)
	s.Require().True(ok)
	s.Assert().Equal(codes.ResourceExhausted, st.Code())
	s.Assert().Equal("slow down", st.Message())

	back := errors.FromGRPCError(grpcErr)
	s.Assert().Equal(errors.CodeResourceExhausted, errors.GetCode(back))
	s.Assert().Equal("slow down", errors.GetMessage(back))
	s.Assert().Equal("Quota", errors.GetMeta(back)[errors.MetaKind])
	s.Assert().Equal("acme", errors.GetMeta(back)["tenant"])
}

func (s *ErrorsTestSuite) TestGRPCConversionPlainErrors() {
	s.Assert().Nil(errors.ToGRPCError(nil))
	s.Assert().Equal(codes.Internal, status.Code(errors.ToGRPCError(fmt.Errorf("plain"))))

	already := status.Error(codes.NotFound, "missing")
	s.Assert().Equal(already, errors.ToGRPCError(already))
	s.Assert().Equal(codes.OK, errors.GRPCStatus(nil).Code())
}

func (s *ErrorsTestSuite) TestGRPCCodeMapping() {
	testCases := []struct {
		code     errors.Code
		expected codes.Code
	}{
		{errors.CodeOK, codes.OK},
		{errors.CodeCanceled, codes.Canceled},
		{errors.CodeInvalidArgument, codes.InvalidArgument},
		{errors.CodeNotFound, codes.NotFound},
		{errors.CodeFailedPrecondition, codes.FailedPrecondition},
		{errors.CodeInternal, codes.Internal},
		{errors.CodeUnauthenticated, codes.Unauthenticated},
		{errors.Code("BOGUS"), codes.Unknown},
	}

	for _, tc := range testCases {
		s.Run(string(tc.code), func() {
			s.Assert().Equal(tc.expected, tc.code.GRPCCode())
		})
	}
}
