package order

import "github.com/go-faster/errors"

// Kind classifies a domain error into one of the closed outcome categories
// the boundary layer maps to HTTP statuses. Any error that is not an *Error
// has KindUnknown.
type Kind uint8

const (
	// KindUnknown marks errors that carry no domain classification.
	KindUnknown Kind = iota
	// KindValidation marks malformed input that reached the domain layer.
	KindValidation
	// KindConflict marks a violation of the external_id uniqueness invariant.
	KindConflict
	// KindInfrastructure marks storage faults unrelated to business rules.
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is a domain error tagged with its Kind. All translation from
// storage-native faults happens once, in the storage adapter; the intake
// service passes these through untouched.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation-kind error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Err: errors.Errorf(format, args...)}
}

// Conflictf builds a conflict-kind error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Err: errors.Errorf(format, args...)}
}

// Infrastructure wraps a storage fault as an infrastructure-kind error.
func Infrastructure(err error, msg string) *Error {
	return &Error{Kind: KindInfrastructure, Err: errors.Wrap(err, msg)}
}

// KindOf extracts the Kind from err, unwrapping as needed.
// It returns KindUnknown for errors without a domain classification.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
