package errors

import "errors"

// reportablePrefix names the variant kinds built by AsReportable
const reportablePrefix = "Reportable_"

// Reportable is implemented by errors that carry a reportable flag
type Reportable interface {
	error
	Reportable() bool
}

type markable interface {
	error
	MarkReportable()
}

// IsReportable reports the flag of the first error in err's chain that
// carries one. Errors without the flag are not reportable.
func IsReportable(err error) bool {
	var r Reportable
	if errors.As(err, &r) {
		return r.Reportable()
	}
	return false
}

// MarkReportable flags the first error in err's chain that supports it and
// reports whether one was found.
func MarkReportable(err error) bool {
	var m markable
	if errors.As(err, &m) {
		m.MarkReportable()
		return true
	}
	return false
}

// IsAlwaysReportable reports whether every instance built by the kind is
// marked reportable
func (k *Kind) IsAlwaysReportable() bool {
	return k.reportable
}

// Reported returns the kind a reportable variant was derived from, or k
// itself for any other kind.
func (k *Kind) Reported() *Kind {
	if k.reported != nil {
		return k.reported
	}
	return k
}

// AsReportable returns a kind derived from k whose instances are always
// reportable. The variant is created on first use and cached until
// UnloadReportable. Kinds that are already always reportable return
// themselves.
func (k *Kind) AsReportable() *Kind {
	if k.reportable {
		return k
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.variant == nil {
		k.variant = &Kind{
			name:       reportablePrefix + k.name,
			parent:     k,
			code:       k.code,
			reportable: true,
			reported:   k,
		}
	}
	return k.variant
}

// UnloadReportable drops the cached reportable variant and returns it, or
// nil when none was created.
func (k *Kind) UnloadReportable() *Kind {
	k.mu.Lock()
	defer k.mu.Unlock()

	variant := k.variant
	k.variant = nil
	return variant
}
