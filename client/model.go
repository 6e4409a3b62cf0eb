package client

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/fetchq/client/transfer"
	"github.com/adamwoolhether/fetchq/headers"
)

// maxErrBodySize caps the amount of response body captured when building
// an error for an unexpected status code. This prevents unbounded memory
// usage when a large response arrives with a wrong status.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrCancelled reports that a future was cancelled before its
	// transfer completed. The message is load-bearing for callers that
	// string-match legacy results; keep it a bare "cancelled".
	ErrCancelled = errors.New("cancelled")

	// ErrMalformedBody re-exports the descriptor payload-shape sentinel,
	// so callers don't need to import the transfer package to match it.
	ErrMalformedBody = transfer.ErrMalformedBody

	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")

	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// UnexpectedStatusError is returned by [ExpectStatus] when the response
// status code does not match the expected value.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// Result is one completed transfer's response: the status code, the body
// chunks concatenated in arrival order, the header fields parsed into a
// lower-cased last-occurrence-wins map, and the remaining raw lines
// (status line included) in arrival order.
type Result struct {
	Status int
	Body   []byte
	Header map[string]string
	Extra  []string
}

// unpack turns a terminal accumulator into the public result tuple:
// (*Result, nil) on completion, (nil, transport error) on failure.
func unpack(acc *transfer.Accumulator) (*Result, error) {
	if err := acc.Failure(); err != nil {
		return nil, err
	}

	hdr, extra := headers.Parse(acc.HeaderLines())

	return &Result{
		Status: acc.Status(),
		Body:   acc.Body(),
		Header: hdr,
		Extra:  extra,
	}, nil
}
