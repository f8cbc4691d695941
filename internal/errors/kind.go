package errors

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Kind is the definition of a class of errors. Kinds form a tree rooted at
// Standard; an error that is an instance of a kind is also an instance of
// every ancestor of that kind.
//
// A *Kind is itself an error so that it can be used as a sentinel:
//
//	if errors.Is(err, ErrQuotaExceeded) { ... }
type Kind struct {
	name       string
	parent     *Kind
	code       Code
	reportable bool

	// goType is set for kinds that stand for a native Go error type.
	goType reflect.Type

	// reported is the base kind of a reportable variant.
	reported *Kind

	mu      sync.Mutex
	variant *Kind
}

// KindOption configures a Kind at definition time
type KindOption func(*Kind)

// Parent sets the parent kind. Kinds without a parent descend from Standard.
func Parent(parent *Kind) KindOption {
	return func(k *Kind) {
		k.parent = parent
	}
}

// WithCode sets the code given to instances of the kind. Kinds inherit the
// code of their parent when none is set.
func WithCode(code Code) KindOption {
	return func(k *Kind) {
		k.code = code
	}
}

// AlwaysReportable declares that every instance built by the kind is marked
// reportable.
func AlwaysReportable() KindOption {
	return func(k *Kind) {
		k.reportable = true
	}
}

// Standard is the root kind. Every non-nil error is an instance of it,
// including errors not created by this package.
var Standard = &Kind{name: "StandardError", code: CodeInternal}

// Kinds raised by this module itself
var (
	// TypeMismatch is raised when a non-error type is used where an error
	// type is required.
	TypeMismatch = DefineKind("TypeMismatch", WithCode(CodeInvalidArgument))

	// UnknownGroup is raised when errors are handled for a group that has no
	// registered rules.
	UnknownGroup = DefineKind("UnknownGroup", WithCode(CodeFailedPrecondition))

	// StrategyConflict is raised when a rule is registered on a group that
	// already uses a different strategy.
	StrategyConflict = DefineKind("StrategyConflict", WithCode(CodeFailedPrecondition))

	// InvalidRule is raised for malformed rule declarations.
	InvalidRule = DefineKind("InvalidRule", WithCode(CodeInvalidArgument))
)

// DefineKind creates a new kind
func DefineKind(name string, opts ...KindOption) *Kind {
	k := &Kind{name: name}
	for _, opt := range opts {
		opt(k)
	}
	if k.parent == nil {
		k.parent = Standard
	}
	if k.code == "" {
		k.code = k.parent.code
	}
	return k
}

// Name returns the kind name
func (k *Kind) Name() string {
	return k.name
}

// Error implements the error interface so kinds can be used as sentinels
func (k *Kind) Error() string {
	return k.name
}

// Code returns the code given to instances of the kind
func (k *Kind) Code() Code {
	return k.code
}

// Parent returns the parent kind, or nil for Standard
func (k *Kind) Parent() *Kind {
	return k.parent
}

// Depth returns the length of the ancestor chain including k itself.
// Standard has depth 1.
func (k *Kind) Depth() int {
	depth := 0
	for cur := k; cur != nil; cur = cur.parent {
		depth++
	}
	return depth
}

// IsA reports whether k is other or descends from it
func (k *Kind) IsA(other *Kind) bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Match reports whether err, or any error in its chain, is an instance of
// k. Native Go type kinds and kinds defined here follow the same chain.
func (k *Kind) Match(err error) bool {
	if err == nil {
		return false
	}
	if k == Standard {
		return true
	}

	if k.goType != nil {
		target := reflect.New(k.goType)
		if errors.As(err, target.Interface()) {
			return true
		}
	}
	return errors.Is(err, k)
}

// New creates an instance of the kind
func (k *Kind) New(message string) *Error {
	return k.build(message, nil)
}

// Newf creates an instance of the kind with a formatted message
func (k *Kind) Newf(format string, args ...any) *Error {
	return k.build(fmt.Sprintf(format, args...), nil)
}

// Wrap creates an instance of the kind caused by err
func (k *Kind) Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return k.build(message, err)
}

func (k *Kind) build(message string, cause error) *Error {
	e := &Error{
		Code:    k.code,
		Message: message,
		Cause:   cause,
		kind:    k,
		stack:   callers(4),
	}
	if k.IsAlwaysReportable() {
		e.reportable = true
	}
	return e
}

var (
	errorType = reflect.TypeFor[error]()

	goKindsMu sync.Mutex
	goKinds   = map[reflect.Type]*Kind{}
)

// KindFor returns the kind standing for the native Go error type t, creating
// it on first use. Instances are matched with errors.As. A type that does not
// implement error yields a TypeMismatch error.
func KindFor(t reflect.Type) (*Kind, error) {
	if t == nil || !t.Implements(errorType) {
		return nil, TypeMismatch.Newf("%v is not a type of error", t)
	}

	goKindsMu.Lock()
	defer goKindsMu.Unlock()

	if k, ok := goKinds[t]; ok {
		return k, nil
	}
	k := DefineKind(t.String())
	k.goType = t
	goKinds[t] = k
	return k, nil
}

// KindOf is the compile time checked form of KindFor
func KindOf[T error]() *Kind {
	k, err := KindFor(reflect.TypeFor[T]())
	if err != nil {
		panic(err)
	}
	return k
}
