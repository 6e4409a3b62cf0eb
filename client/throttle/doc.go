// Package throttle provides an [http.RoundTripper] that meters outbound
// HTTP requests through a token bucket from [golang.org/x/time/rate].
//
// # Usage
//
// Wrap the transport a client performs its transfers through:
//
//	rt, err := throttle.NewRoundTripper(
//		25, // requests per second
//		5,  // burst capacity
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// When tokens run out, requests block until one becomes available or
// the request context ends.
package throttle
