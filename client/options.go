package client

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/fetchq/client/throttle"
	"github.com/adamwoolhether/fetchq/client/transfer"
)

// Option is a functional option for configuring a [Service] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttleConfig
	noFollowRedirects bool
	logger            *slog.Logger
	tracer            trace.Tracer
	limits            *connLimits
}

type throttleConfig struct {
	rps   int
	burst int
}

type connLimits struct {
	total   int
	perHost int
}

// WithClient replaces the default [http.Client] used by the [Service].
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrInvalidRate)
		}
		c.throttle = &throttleConfig{rps: rps, burst: burst}
		return nil
	}
}

// WithNoFollowRedirects prevents the [Service] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Service].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithTracer injects a tracer used to span each submission.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		c.tracer = tracer
		return nil
	}
}

// WithConnectionLimits caps concurrent transfers, total across all hosts
// and per single host. Zero means no cap.
func WithConnectionLimits(total, perHost int) Option {
	return func(c *options) error {
		if total < 0 || perHost < 0 {
			return fmt.Errorf("total[%d] and perHost[%d] %w", total, perHost, transfer.ErrLimitNegative)
		}
		c.limits = &connLimits{total: total, perHost: perHost}
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// RequestOption is a functional option shaping a single request made
// through [Service.Submit], [SubmitDecoded], or [Request].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	body    []byte
	fields  []transfer.FormField
	headers map[string]string
	query   map[string]string
	sink    io.Writer
}

// WithBody sets a raw request body. Mutually exclusive with the form
// field options.
func WithBody(body []byte) RequestOption {
	return func(opts *requestOpts) error {
		if body == nil {
			return errors.New("body must not be nil")
		}

		opts.body = body

		return nil
	}
}

// WithFormValue appends a plain field to a multipart form body.
// Mutually exclusive with [WithBody].
func WithFormValue(name, value string) RequestOption {
	return func(opts *requestOpts) error {
		opts.fields = append(opts.fields, transfer.FormField{Name: name, Value: value})

		return nil
	}
}

// WithFormFile appends a file upload to a multipart form body.
// Mutually exclusive with [WithBody].
func WithFormFile(name, filename string, data []byte) RequestOption {
	return func(opts *requestOpts) error {
		opts.fields = append(opts.fields, transfer.FormField{
			Name: name,
			File: &transfer.FileUpload{Filename: filename, Data: data},
		})

		return nil
	}
}

// WithHeader sets a single header on the outgoing request.
func WithHeader(key, value string) RequestOption {
	return func(opts *requestOpts) error {
		if key == "" {
			return errors.New("cannot use empty header key")
		}

		if opts.headers == nil {
			opts.headers = make(map[string]string)
		}
		opts.headers[key] = value

		return nil
	}
}

// WithHeaders merges custom headers into the outgoing request,
// overwriting keys set earlier.
func WithHeaders(headers map[string]string) RequestOption {
	return func(opts *requestOpts) error {
		if opts.headers == nil {
			opts.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			opts.headers[k] = v
		}

		return nil
	}
}

// WithQuery merges query parameters into the request URL, overwriting
// parameters already present.
func WithQuery(params map[string]string) RequestOption {
	return func(opts *requestOpts) error {
		if opts.query == nil {
			opts.query = make(map[string]string, len(params))
		}
		for k, v := range params {
			opts.query[k] = v
		}

		return nil
	}
}

// WithBodySink streams the response body into w as chunks arrive instead
// of buffering it. The body of the eventual [Result] will be empty.
func WithBodySink(w io.Writer) RequestOption {
	return func(opts *requestOpts) error {
		if w == nil {
			return errors.New("sink must not be nil")
		}

		opts.sink = w

		return nil
	}
}

// PeekOption is a functional option for [Future.Peek].
type PeekOption func(options *peekOpts)

type peekOpts struct {
	skipUpdate bool
}

// SkipEngineUpdate makes Peek consult only completions already observed,
// without giving the transfer engine a chance to observe new ones.
func SkipEngineUpdate() PeekOption {
	return func(opts *peekOpts) {
		opts.skipUpdate = true
	}
}
