package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/fetchq/client/transfer"
)

// Request performs one blocking transfer with http.DefaultClient and
// returns the unpacked result. No engine is involved: the call shares
// no state with any Service, and the only cancellation is ctx.
func Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Result, error) {
	return performSync(ctx, http.DefaultClient, slog.Default(), method, rawURL, opts)
}

// RequestDecoded is [Request] with a typed filter applied to the outcome.
func RequestDecoded[T any](ctx context.Context, method, rawURL string, filter Filter[T], opts ...RequestOption) (T, error) {
	if filter == nil {
		var zero T
		return zero, errors.New("filter must not be nil")
	}

	return filter(performSync(ctx, http.DefaultClient, slog.Default(), method, rawURL, opts))
}

// Request performs one blocking transfer through the service's client
// and transport chain, bypassing the engine.
func (s *Service) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Result, error) {
	return performSync(ctx, s.hc, s.logger, method, rawURL, opts)
}

func performSync(ctx context.Context, hc *http.Client, logger *slog.Logger, method, rawURL string, opts []RequestOption) (*Result, error) {
	desc, err := buildDescriptor(method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	acc, err := transfer.Run(ctx, hc, logger, desc)
	if err != nil {
		return nil, err
	}

	return unpack(acc)
}
