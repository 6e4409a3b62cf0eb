package throttle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type stubTransport struct {
	calls atomic.Int32
}

func (s *stubTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	s.calls.Add(1)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
}

func TestNewRoundTripperValidation(t *testing.T) {
	testCases := []struct {
		name   string
		rps    int
		burst  int
		expErr error
	}{
		{name: "zero rps", rps: 0, burst: 10, expErr: ErrInvalidRate},
		{name: "negative rps", rps: -5, burst: 10, expErr: ErrInvalidRate},
		{name: "zero burst", rps: 10, burst: 0, expErr: ErrInvalidRate},
		{name: "negative burst", rps: 10, burst: -5, expErr: ErrInvalidRate},
		{name: "valid input", rps: 10, burst: 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.rps, tc.burst, nil, http.DefaultTransport)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if rt == nil {
				t.Error("exp non-nil RoundTripper")
			}
		})
	}
}

func TestRoundTripWithinBurstIsFast(t *testing.T) {
	stub := &stubTransport{}
	rt, err := NewRoundTripper(10, 10, func() *slog.Logger { return nil }, stub)
	if err != nil {
		t.Fatalf("NewRoundTripper: %v", err)
	}

	start := time.Now()
	for range 5 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://localhost/fast", nil)
		if _, err := rt.RoundTrip(req); err != nil {
			t.Fatalf("RoundTrip: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("5 requests within burst took %v, exp well under a second", elapsed)
	}
	if got := stub.calls.Load(); got != 5 {
		t.Errorf("exp 5 calls to reach the transport, got %d", got)
	}
}

func TestRoundTripSlowsDownPastBurst(t *testing.T) {
	stub := &stubTransport{}
	rt, err := NewRoundTripper(20, 1, func() *slog.Logger { return nil }, stub)
	if err != nil {
		t.Fatalf("NewRoundTripper: %v", err)
	}

	start := time.Now()
	for range 3 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://localhost/slow", nil)
		if _, err := rt.RoundTrip(req); err != nil {
			t.Fatalf("RoundTrip: %v", err)
		}
	}

	// Burst covers the first request; the other two wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 requests past burst took %v, exp the limiter to slow them", elapsed)
	}
	if got := stub.calls.Load(); got != 3 {
		t.Errorf("exp 3 calls to reach the transport, got %d", got)
	}
}

func TestRoundTripEndedContext(t *testing.T) {
	stub := &stubTransport{}
	rt, err := NewRoundTripper(10, 1, func() *slog.Logger { return nil }, stub)
	if err != nil {
		t.Fatalf("NewRoundTripper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost/cancelled", nil)
	_, err = rt.RoundTrip(req)
	if !errors.Is(err, ErrWaitAborted) {
		t.Errorf("exp %v, got: %v", ErrWaitAborted, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("exp the context cause wrapped, got: %v", err)
	}
	if got := stub.calls.Load(); got != 0 {
		t.Errorf("exp the transport untouched, got %d calls", got)
	}
}
