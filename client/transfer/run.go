package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
)

// Run performs desc synchronously with client, outside any engine. The
// returned accumulator is already terminal: either a status code or the
// transport failure is set. A nil client falls back to
// http.DefaultClient, a nil logger to slog.Default().
func Run(ctx context.Context, client *http.Client, logger *slog.Logger, desc *Descriptor) (*Accumulator, error) {
	req, err := desc.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	acc := newAccumulator(desc.Sink)
	status, err := execute(client, logger, req, acc)
	if err != nil {
		acc.fail(err)
	} else {
		acc.finish(status)
	}

	return acc, nil
}

// execute streams one round trip into acc: the synthesized status line and
// header lines first, then the body chunks as they arrive.
func execute(client *http.Client, logger *slog.Logger, req *http.Request, acc *Accumulator) (int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Error("failed to close response body", "error", cerr)
		}
	}()

	acc.appendHeaderLine(resp.Proto + " " + resp.Status)
	// net/http does not keep the wire order of header fields; a sorted
	// key walk at least makes the line order stable.
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			acc.appendHeaderLine(k + ": " + v)
		}
	}

	if _, err := io.Copy(acc.bodyWriter(), resp.Body); err != nil {
		return 0, fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, nil
}
