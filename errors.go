package objdiff

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDiff is matched by errors returned when two values can't be compared
	ErrDiff = errors.New("cannot diff values")
	// ErrMerge is matched by every error returned while applying a diff
	ErrMerge = errors.New("cannot apply diff")
	// ErrMergeValidation is matched by errors returned when a live value
	// doesn't match the value a diff recorded. only raised when the
	// ValidateSourceValue feature is enabled
	ErrMergeValidation = errors.New("source value does not match diff")
)

// DiffError is returned by Diff when values are structurally incomparable,
// or a diff handler fails
type DiffError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DiffError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diff %s: %s: %s", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("diff %s: %s", e.Path, e.Reason)
}

// Is lets errors.Is match ErrDiff
func (e *DiffError) Is(target error) bool { return target == ErrDiff }

// Unwrap returns the underlying cause, if any
func (e *DiffError) Unwrap() error { return e.Err }

// MergeError is returned by ApplyDiff when a diff can't be applied to a value
type MergeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merge %s: %s: %s", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("merge %s: %s", e.Path, e.Reason)
}

// Is lets errors.Is match ErrMerge
func (e *MergeError) Is(target error) bool { return target == ErrMerge }

// Unwrap returns the underlying cause, if any
func (e *MergeError) Unwrap() error { return e.Err }

// MergeValidationError is a MergeError raised when the value a diff is
// applied to differs from the value recorded when the diff was created
type MergeValidationError struct {
	Path     string
	Expected interface{}
	Actual   interface{}
}

func (e *MergeValidationError) Error() string {
	return fmt.Sprintf("merge %s: %s: expected %#v, found %#v", e.Path, ErrMergeValidation, e.Expected, e.Actual)
}

// Is matches both ErrMergeValidation & ErrMerge
func (e *MergeValidationError) Is(target error) bool {
	return target == ErrMergeValidation || target == ErrMerge
}
