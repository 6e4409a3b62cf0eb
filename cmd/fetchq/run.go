package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/adamwoolhether/fetchq"
	"github.com/adamwoolhether/fetchq/client"
	"github.com/adamwoolhether/fetchq/client/download"
)

const pollInterval = 200 * time.Millisecond

type fetchResult struct {
	url    string
	status int
	bytes  int
	err    error
}

func run(ctx context.Context, cfg Config, log *slog.Logger, urls []string) error {
	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}

	start := time.Now()

	var results []fetchResult
	if cfg.OutputDir != "" {
		results, err = runDownloads(ctx, cfg, svc, log, urls)
	} else {
		results, err = runFutures(ctx, cfg, svc, log, urls)
	}
	if err != nil {
		return err
	}

	return summarize(results, time.Since(start))
}

func buildService(cfg Config, log *slog.Logger) (*client.Service, error) {
	opts := []client.Option{client.WithLogger(log)}

	if cfg.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(cfg.UserAgent))
	}
	if cfg.RPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.RPS, cfg.Burst))
	}
	if cfg.TotalConns > 0 || cfg.HostConns > 0 {
		opts = append(opts, client.WithConnectionLimits(cfg.TotalConns, cfg.HostConns))
	}
	if cfg.NoFollowRedirects {
		opts = append(opts, client.WithNoFollowRedirects())
	}

	return fetchq.New(opts...)
}

// requestOptions translates the header, body, and form settings into
// per-request options.
func requestOptions(cfg Config) ([]client.RequestOption, error) {
	var opts []client.RequestOption

	for _, h := range cfg.Headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header %q, want 'Key: Value'", h)
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	if cfg.Body != "" {
		opts = append(opts, client.WithBody([]byte(cfg.Body)))
	}

	for _, f := range cfg.Form {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("malformed form field %q, want name=value", f)
		}
		opts = append(opts, client.WithFormValue(name, value))
	}

	for _, f := range cfg.FormFiles {
		name, p, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("malformed form file %q, want name=path", f)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading form file: %w", err)
		}
		opts = append(opts, client.WithFormFile(name, filepath.Base(p), data))
	}

	return opts, nil
}

// runFutures submits every URL, drives the engine until all transfers
// settle or the deadline passes, then writes bodies to stdout in
// argument order. Transfers still pending after the deadline are
// cancelled.
func runFutures(ctx context.Context, cfg Config, svc *client.Service, log *slog.Logger, urls []string) ([]fetchResult, error) {
	reqOpts, err := requestOptions(cfg)
	if err != nil {
		return nil, err
	}

	type pending struct {
		idx int
		fut *client.Future[*client.Result]
	}

	results := make([]fetchResult, len(urls))
	pendings := make([]pending, 0, len(urls))

	for i, u := range urls {
		results[i] = fetchResult{url: u}

		fut, err := svc.Submit(ctx, cfg.Method, u, reqOpts...)
		if err != nil {
			results[i].err = err
			continue
		}
		pendings = append(pendings, pending{idx: i, fut: fut})
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	for {
		active, _ := svc.Poll()
		if active == 0 {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Warn("deadline reached, cancelling pending transfers", "active", active)
			break
		}
		if ctx.Err() != nil {
			log.Warn("interrupted, cancelling pending transfers", "active", active)
			break
		}
		svc.WaitForActivity(pollInterval)
	}

	for _, p := range pendings {
		r := &results[p.idx]

		res, ok, err := p.fut.Peek()
		if err == nil && !ok {
			// Unresolved past the deadline. A transfer that finished
			// since the last poll still yields its real result here,
			// anything else reports cancelled.
			res, err = p.fut.Cancel()
		}
		if err != nil {
			r.err = err
			continue
		}

		if _, werr := os.Stdout.Write(res.Body); werr != nil {
			return nil, fmt.Errorf("writing body: %w", werr)
		}

		r.status = res.Status
		r.bytes = len(res.Body)
	}

	return results, nil
}

// runDownloads streams every URL to a file in the output directory
// through a download batch.
func runDownloads(ctx context.Context, cfg Config, svc *client.Service, log *slog.Logger, urls []string) ([]fetchResult, error) {
	if cfg.Sha256 != "" && len(urls) != 1 {
		return nil, fmt.Errorf("sha256 verification requires exactly one URL, got %d", len(urls))
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	batch := download.NewBatch(svc, log, 0)

	type tracked struct {
		url  string
		dest string
		item *download.Item
	}

	used := map[string]int{}
	tracks := make([]tracked, 0, len(urls))

	for _, u := range urls {
		name := destName(u)
		if n := used[destName(u)]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		used[destName(u)]++

		fopts := []download.Option{download.WithProgress()}
		if cfg.Sha256 != "" {
			fopts = append(fopts, download.WithChecksum(sha256.New(), cfg.Sha256))
		}

		dest := filepath.Join(cfg.OutputDir, name)
		tracks = append(tracks, tracked{
			url:  u,
			dest: dest,
			item: batch.Add(ctx, u, http.StatusOK, dest, fopts...),
		})
	}

	results := make([]fetchResult, 0, len(tracks))
	for _, tr := range tracks {
		if err := tr.item.Err(); err != nil {
			results = append(results, fetchResult{url: tr.url, err: err})
			continue
		}

		var size int
		if info, err := os.Stat(tr.dest); err == nil {
			size = int(info.Size())
		}

		results = append(results, fetchResult{url: tr.url, status: http.StatusOK, bytes: size})
	}

	return results, nil
}

// destName derives a file name for a URL, falling back to the host when
// the path has none.
func destName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = u.Host
	}
	if name == "" {
		name = "download"
	}

	return name
}

// summarize prints the per-URL outcome to stderr and reports overall
// failure.
func summarize(results []fetchResult, elapsed time.Duration) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			red.Fprintf(color.Error, "FAIL %s: %v\n", r.url, r.err)
			continue
		}
		green.Fprintf(color.Error, "OK   %s: %d, %d bytes\n", r.url, r.status, r.bytes)
	}

	fmt.Fprintf(color.Error, "%d/%d succeeded in %s\n", len(results)-failed, len(results), elapsed.Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(results))
	}

	return nil
}
