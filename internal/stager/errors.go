package stager

import (
	"errors"
	"fmt"
)

var (
	ErrConsumed       = errors.New("snapshot already restored")
	ErrAlreadyStaged  = errors.New("directory is already staged by a live snapshot")
	ErrScopeReleased  = errors.New("scope already released")
	ErrNotDirectory   = errors.New("not a directory")
	ErrDigestMismatch = errors.New("restored tree does not match its snapshot")
)

// StagingError reports that a directory could not be copied to its staging
// location. Nothing was changed on disk and the build step did not run.
type StagingError struct {
	Path string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.Path, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// RestoreError reports that a directory could not be put back to its
// snapshot. The directory must be considered corrupted.
type RestoreError struct {
	Path string
	Err  error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restoring %s (environment corrupted, rebuild from scratch): %v", e.Path, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// IsCorrupted reports whether err, or any error it wraps, is a RestoreError.
func IsCorrupted(err error) bool {
	var re *RestoreError
	return errors.As(err, &re)
}
