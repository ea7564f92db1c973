// Package errs defines the error kinds shared by the extmerge packages.
// Kinds are package-level sentinel values; callers classify failures with
// errors.Is and read the human context from the wrapped message.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a constructor parameter outside its
	// documented range, such as a merge fan-out below 2.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutputUnderTempNamespace reports an output storage ID nested
	// under the factory's temporary namespace.
	ErrOutputUnderTempNamespace = errors.New("output id under temp namespace")

	// ErrIO reports a host-level open/read/write/seek/rename/remove failure.
	ErrIO = errors.New("io error")

	// ErrSerialization reports a record-level encode or decode failure,
	// including a partial transfer with no end-of-file.
	ErrSerialization = errors.New("serialization error")

	// ErrMemoryLimit reports that a single record's footprint exceeds the
	// entire memory budget.
	ErrMemoryLimit = errors.New("memory limit exceeded")

	// ErrInvalidState reports contract misuse, such as writing after
	// finalize or taking a value from an exhausted stream.
	ErrInvalidState = errors.New("invalid state")

	// ErrInternal reports a defensive invariant violation inside the
	// sorter itself.
	ErrInternal = errors.New("internal error")
)

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...any) error {
	return kind(ErrInvalidArgument, format, args...)
}

// IO wraps an underlying host error with ErrIO and a formatted message.
// A nil cause returns a bare kinded error.
func IO(cause error, format string, args ...any) error {
	return wrap(ErrIO, cause, format, args...)
}

// Serialization wraps a record-level encode/decode failure.
func Serialization(cause error, format string, args ...any) error {
	return wrap(ErrSerialization, cause, format, args...)
}

// MemoryLimit wraps ErrMemoryLimit with a formatted message.
func MemoryLimit(format string, args ...any) error {
	return kind(ErrMemoryLimit, format, args...)
}

// InvalidState wraps ErrInvalidState with a formatted message.
func InvalidState(format string, args ...any) error {
	return kind(ErrInvalidState, format, args...)
}

// Internal wraps ErrInternal with a formatted message.
func Internal(format string, args ...any) error {
	return kind(ErrInternal, format, args...)
}

func kind(k error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", k, fmt.Sprintf(format, args...))
}

func wrap(k, cause error, format string, args ...any) error {
	if cause == nil {
		return kind(k, format, args...)
	}
	return fmt.Errorf("%w: %s: %w", k, fmt.Sprintf(format, args...), cause)
}
