package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/fetchq/client/throttle"
	"github.com/adamwoolhether/fetchq/client/transfer"
)

// requestIDHeader is stamped on every outgoing request that doesn't
// already carry one, so transfers can be correlated across logs.
const requestIDHeader = "X-Request-Id"

// Service submits HTTP transfers to a background engine and hands back
// futures for their outcomes. It owns its *http.Client and transport
// chain, which can be customized via optional funcs.
type Service struct {
	hc     *http.Client
	logger *slog.Logger
	tracer trace.Tracer
	eng    *transfer.Engine
}

func Build(optFns ...Option) (*Service, error) {
	svc := &Service{
		hc:     &http.Client{},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("fetchq"),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		svc.hc = opts.client
	}

	if opts.logger != nil {
		svc.logger = opts.logger
	}

	if opts.tracer != nil {
		svc.tracer = opts.tracer
	}

	if opts.timeout != nil {
		svc.hc.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		svc.hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.rps, opts.throttle.burst, func() *slog.Logger { return svc.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	svc.hc.Transport = transport

	svc.eng = transfer.New(svc.hc, svc.logger)
	if opts.limits != nil {
		if err := svc.eng.SetConnectionLimits(opts.limits.total, opts.limits.perHost); err != nil {
			return nil, fmt.Errorf("configuring connection limits: %w", err)
		}
	}

	return svc, nil
}

// Submit starts an asynchronous transfer and returns its future. The
// request is built and validated here; the round trip runs on a worker
// goroutine and its outcome surfaces through the future, untouched by
// any filter.
func (s *Service) Submit(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Future[*Result], error) {
	return submit[*Result](s, ctx, method, rawURL, nil, opts)
}

// SubmitDecoded is [Service.Submit] with a typed filter applied once at
// resolution. It's a package-level func because methods can't introduce
// type parameters.
func SubmitDecoded[T any](s *Service, ctx context.Context, method, rawURL string, filter Filter[T], opts ...RequestOption) (*Future[T], error) {
	if filter == nil {
		return nil, errors.New("filter must not be nil")
	}

	return submit(s, ctx, method, rawURL, filter, opts)
}

func submit[T any](s *Service, ctx context.Context, method, rawURL string, filter Filter[T], opts []RequestOption) (*Future[T], error) {
	desc, err := buildDescriptor(method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "client.submit", trace.WithAttributes(
		attribute.String("http.method", desc.Method),
		attribute.String("http.url", desc.URL),
	))
	defer span.End()

	reqID := headerValue(desc.Header, requestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
		if desc.Header == nil {
			desc.Header = make(map[string]string, 1)
		}
		desc.Header[requestIDHeader] = reqID
	}
	span.SetAttributes(attribute.String("request_id", reqID))

	h, err := s.eng.Submit(ctx, desc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Debug("request submitted", "request_id", reqID, "handle", uint64(h))

	return newFuture(s.eng, h, filter), nil
}

// buildDescriptor folds the request options into a transfer descriptor,
// merging extra query parameters into the URL.
func buildDescriptor(method, rawURL string, opts []RequestOption) (*transfer.Descriptor, error) {
	var settings requestOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, fmt.Errorf("applying request option: %w", err)
		}
	}

	if len(settings.query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parsing url: %w", err)
		}
		q := u.Query()
		for k, v := range settings.query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	desc := transfer.Descriptor{
		Method: method,
		URL:    rawURL,
		Header: settings.headers,
		Body:   settings.body,
		Fields: settings.fields,
		Sink:   settings.sink,
	}

	if err := desc.Validate(); err != nil {
		return nil, err
	}

	return &desc, nil
}

// headerValue looks up a header case-insensitively. Descriptor headers
// are a plain map, so the canonical-key guarantees of http.Header don't
// apply here.
func headerValue(h map[string]string, key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}

	return ""
}

// Poll gives the engine one chance to observe and apply completions,
// returning the number of still-running transfers and whether anything
// changed since the last call. Peek and Wait poll on their own; explicit
// polling exists for callers deciding between Cancel and a completed
// result.
func (s *Service) Poll() (int, bool) {
	return s.eng.Poll()
}

// WaitForActivity blocks until some transfer completes or timeout
// elapses, reporting whether a poll is worthwhile.
func (s *Service) WaitForActivity(timeout time.Duration) bool {
	return s.eng.WaitForActivity(timeout)
}

// SetConnectionLimits adjusts the engine's concurrency caps at runtime:
// total across all hosts and perHost for any single host. Zero removes
// a cap. Transfers already holding a slot are unaffected.
func (s *Service) SetConnectionLimits(total, perHost int) error {
	return s.eng.SetConnectionLimits(total, perHost)
}
