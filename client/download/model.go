package download

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDest is returned when no destination path is given.
	ErrEmptyDest = errors.New("destination path must not be empty")
	// ErrContentLengthMismatch is returned when the bytes written to disk
	// don't match the length the server advertised.
	ErrContentLengthMismatch = errors.New("content length mismatch")
	// ErrChecksumMismatch is returned when the downloaded bytes don't hash
	// to the expected value.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrFetchCancelled is returned when a fetch stops because its context
	// was cancelled.
	ErrFetchCancelled = errors.New("fetch cancelled")
	// ErrBatchShutdown is returned for fetches still queued when the batch
	// was shut down.
	ErrBatchShutdown = errors.New("batch shut down")
)

// Error carries detail about a failed verification alongside the sentinel
// that callers match on.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
