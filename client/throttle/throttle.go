package throttle

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// NewRoundTripper wraps next so that each outbound request consumes a
// token from a bucket refilled rps times per second with capacity burst.
// logFn lazily resolves the logger at request time, making option
// ordering in the surrounding client irrelevant. A nil logFn, or one
// returning nil, silences the throttle.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrInvalidRate)
	}
	if next == nil {
		next = http.DefaultTransport
	}

	return &transport{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		next:    next,
		logFn:   logFn,
	}, nil
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitAborted, err)
	}

	var logger *slog.Logger
	if t.logFn != nil {
		logger = t.logFn()
	}
	// Tokens is a read-only peek; the wait below does the consuming.
	if logger != nil && t.limiter.Tokens() < 1 {
		start := time.Now()
		logger.Info("throttle tokens exhausted", "rate", t.rps, "burst", t.burst, "path", r.URL.Path)

		defer func() {
			logger.Info("throttle wait complete", "waited", time.Since(start).String(), "rate", t.rps, "burst", t.burst)
		}()
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitAborted, err)
	}

	return t.next.RoundTrip(r)
}
