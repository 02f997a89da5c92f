package rx

import (
	"errors"
	"fmt"
)

// SourceError attributes an upstream failure to the index of the source
// that raised it. Combinations only produce SourceError values when
// configured with [WithSourceErrors]; otherwise upstream errors are
// forwarded unchanged.
type SourceError struct {
	Source int
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %d failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsSourceError reports whether err (or any error in its chain) is a [*SourceError].
func IsSourceError(err error) bool {
	if err == nil {
		return false
	}
	var se *SourceError
	return errors.As(err, &se)
}

// SourceOf returns the source index of the first [*SourceError] in err's
// chain. Returns false if there is none.
func SourceOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var se *SourceError
	if errors.As(err, &se) {
		return se.Source, true
	}
	return 0, false
}

// CauseOf unwraps the first [*SourceError] in err's chain and returns its
// underlying cause. If err is not a SourceError, it is returned as-is.
// Returns nil if err is nil.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}

	var se *SourceError
	if errors.As(err, &se) {
		return se.Err
	}

	return err
}
