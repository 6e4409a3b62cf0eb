package throttle

import (
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

var (
	// ErrInvalidRate reports a non-positive rate or burst.
	ErrInvalidRate = errors.New("must be greater than zero")

	// ErrWaitAborted reports that the request context ended before a
	// token became available.
	ErrWaitAborted = errors.New("rate limit wait aborted")
)

// transport is an http.RoundTripper that meters outbound requests
// through a time/rate token bucket before handing them to the next
// transport in the chain.
type transport struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	next    http.RoundTripper
	logFn   func() *slog.Logger
}
