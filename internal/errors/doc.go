// Package errors provides the error model used by errtransform.
//
// Errors are split into definitions and instances. A Kind is a definition:
// it has a name, a parent kind, a default Code and can be declared always
// reportable. An Error is an instance created from a kind:
//
//	var (
//	    ErrUpstream = errors.DefineKind("Upstream", errors.WithCode(errors.CodeUnavailable))
//	    ErrTimeout  = errors.DefineKind("Timeout", errors.Parent(ErrUpstream))
//	)
//
//	return ErrTimeout.Newf("payment provider did not answer after %s", d)
//
// Kinds form a tree rooted at Standard, which every error belongs to. An
// instance of Timeout is also an instance of Upstream:
//
//	errors.Is(err, ErrUpstream)   // true
//	ErrUpstream.Match(err)        // true
//
// Native Go error types take part in the tree through KindOf:
//
//	pathErr := errors.KindOf[*fs.PathError]()
//
// # Reportable errors
//
// Every Error carries a reportable flag that tells crash reporters whether
// to forward it. The flag is set per instance with MarkReportable, or for
// every instance of a kind with AlwaysReportable or AsReportable:
//
//	return ErrTimeout.AsReportable().New("provider timed out")
//
// AsReportable derives a child kind on first use and caches it until
// UnloadReportable is called.
//
// # gRPC Integration
//
// ToGRPCError and FromGRPCError convert between Error and gRPC status
// errors. The kind name travels in an ErrorInfo detail.
//
// # Validation Errors
//
//	vb := errors.NewValidationBuilder()
//	errors.ValidateRequired("name", input.Name, vb)
//	if err := vb.Build(); err != nil {
//	    return err
//	}
package errors
