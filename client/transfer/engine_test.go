package transfer_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/adamwoolhether/fetchq/client/transfer"
)

// await cooperatively drives the engine until h's result is claimable.
func await(t *testing.T, e *transfer.Engine, h transfer.Handle) *transfer.Accumulator {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		e.Poll()
		if acc, ok := e.TakeCompleted(h); ok {
			return acc
		}
		e.WaitForActivity(50 * time.Millisecond)
	}

	t.Fatal("transfer did not finish in time")
	return nil
}

func TestEngineLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kind", "demo")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	acc := await(t, e, h)

	if got := acc.Status(); got != http.StatusOK {
		t.Errorf("Status() = %d, want %d", got, http.StatusOK)
	}
	if err := acc.Failure(); err != nil {
		t.Errorf("Failure() = %v, want nil", err)
	}
	if got := string(acc.Body()); got != "hello" {
		t.Errorf("Body() = %q, want %q", got, "hello")
	}

	lines := acc.HeaderLines()
	for _, want := range []string{"HTTP/1.1 200 OK", "X-Kind: demo"} {
		if !slices.Contains(lines, want) {
			t.Errorf("header lines %q missing %q", lines, want)
		}
	}

	if _, ok := e.TakeCompleted(h); ok {
		t.Error("TakeCompleted() claimed the same handle twice")
	}
}

func TestEnginePollReportsNoChange(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	if active, changed := e.Poll(); active != 0 || changed {
		t.Fatalf("Poll() on idle engine = (%d, %t), want (0, false)", active, changed)
	}

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if active, changed := e.Poll(); active != 1 || changed {
		t.Fatalf("Poll() while running = (%d, %t), want (1, false)", active, changed)
	}
	if active, changed := e.Poll(); active != 1 || changed {
		t.Fatalf("repeat Poll() = (%d, %t), want (1, false)", active, changed)
	}

	close(release)
	acc := await(t, e, h)
	if acc.Failure() != nil {
		t.Fatalf("Failure() = %v, want nil", acc.Failure())
	}

	if active, changed := e.Poll(); active != 0 || changed {
		t.Errorf("Poll() after drain = (%d, %t), want (0, false)", active, changed)
	}
}

func TestEngineTakeCompletedWaitsForCompletion(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if _, ok := e.TakeCompleted(h); ok {
		t.Fatal("TakeCompleted() claimed an unfinished transfer")
	}

	close(release)
	if acc := await(t, e, h); acc == nil {
		t.Fatal("early TakeCompleted() must not consume the entry")
	}
}

func TestEngineTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := transfer.New(nil, nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: url})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	acc := await(t, e, h)

	if acc.Failure() == nil {
		t.Error("Failure() = nil, want a transport error")
	}
	if got := acc.Status(); got != 0 {
		t.Errorf("Status() = %d, want 0 on failure", got)
	}
}

func TestEngineAbort(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if !e.Abort(h) {
		t.Fatal("Abort() = false for a running transfer")
	}
	if active, changed := e.Poll(); active != 0 || !changed {
		t.Errorf("Poll() after abort = (%d, %t), want (0, true)", active, changed)
	}
	if _, ok := e.TakeCompleted(h); ok {
		t.Error("TakeCompleted() returned a result for an aborted transfer")
	}
	if e.Abort(h) {
		t.Error("Abort() = true for an already aborted handle")
	}
}

func TestEngineChunkOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		for _, chunk := range []string{"alpha", "beta", "gamma"} {
			w.Write([]byte(chunk))
			fl.Flush()
		}
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	acc := await(t, e, h)
	if got := string(acc.Body()); got != "alphabetagamma" {
		t.Errorf("Body() = %q, want chunks joined in arrival order", got)
	}
}

func TestEngineTotalConnectionLimit(t *testing.T) {
	var (
		mu        sync.Mutex
		cur, peak int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cur++
		if cur > peak {
			peak = cur
		}
		mu.Unlock()

		time.Sleep(25 * time.Millisecond)

		mu.Lock()
		cur--
		mu.Unlock()
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)
	if err := e.SetConnectionLimits(1, 0); err != nil {
		t.Fatalf("SetConnectionLimits() error: %v", err)
	}

	var handles []transfer.Handle
	for i := 0; i < 3; i++ {
		h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		await(t, e, h)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
	if cur != 0 {
		t.Errorf("still running = %d, want 0", cur)
	}
}

func TestEngineSetConnectionLimitsRejectsNegative(t *testing.T) {
	e := transfer.New(nil, nil)

	if err := e.SetConnectionLimits(-1, 0); !errors.Is(err, transfer.ErrLimitNegative) {
		t.Errorf("SetConnectionLimits(-1, 0) = %v, want %v", err, transfer.ErrLimitNegative)
	}
	if err := e.SetConnectionLimits(0, -1); !errors.Is(err, transfer.ErrLimitNegative) {
		t.Errorf("SetConnectionLimits(0, -1) = %v, want %v", err, transfer.ErrLimitNegative)
	}
}

func TestEngineWaitForActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	if e.WaitForActivity(20 * time.Millisecond) {
		t.Error("WaitForActivity() = true on an idle engine")
	}

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !e.WaitForActivity(2 * time.Second) {
		t.Fatal("WaitForActivity() = false with a completion pending")
	}
	await(t, e, h)
}

func TestEngineSubmitRejectsMalformedDescriptor(t *testing.T) {
	e := transfer.New(nil, nil)

	desc := transfer.Descriptor{
		URL:    "http://localhost/x",
		Body:   []byte("raw"),
		Fields: []transfer.FormField{{Name: "a", Value: "1"}},
	}
	if _, err := e.Submit(context.Background(), &desc); !errors.Is(err, transfer.ErrBodyConflict) {
		t.Fatalf("Submit() = %v, want %v", err, transfer.ErrBodyConflict)
	}

	if active, changed := e.Poll(); active != 0 || changed {
		t.Errorf("Poll() after rejected submit = (%d, %t), want (0, false)", active, changed)
	}
}

func TestEngineTake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("done"))
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, changed := e.Poll(); changed {
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatal("transfer did not finish in time")
		}
		e.WaitForActivity(50 * time.Millisecond)
	}

	acc, completed, ok := e.Take(h)
	if !ok || !completed {
		t.Fatalf("Take() = (_, %t, %t), want a completed entry", completed, ok)
	}
	if got := string(acc.Body()); got != "done" {
		t.Errorf("Body() = %q, want %q", got, "done")
	}

	if _, _, ok := e.Take(h); ok {
		t.Error("Take() found an already claimed handle")
	}
}

func TestEngineTakeRunningThenAbort(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	acc, completed, ok := e.Take(h)
	if !ok || completed {
		t.Fatalf("Take() = (_, %t, %t), want an unfinished entry", completed, ok)
	}
	if acc == nil {
		t.Fatal("Take() returned a nil accumulator for a live transfer")
	}
	if !e.Abort(h) {
		t.Error("Abort() = false after Take() of a running transfer")
	}
}

func TestEngineSinkStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("streamed"))
	}))
	defer srv.Close()

	e := transfer.New(srv.Client(), nil)

	var sink bytes.Buffer
	h, err := e.Submit(context.Background(), &transfer.Descriptor{URL: srv.URL, Sink: &sink})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	acc := await(t, e, h)

	if got := acc.Status(); got != http.StatusOK {
		t.Errorf("Status() = %d, want %d", got, http.StatusOK)
	}
	if got := sink.String(); got != "streamed" {
		t.Errorf("sink = %q, want %q", got, "streamed")
	}
	if got := acc.Body(); len(got) != 0 {
		t.Errorf("Body() = %q, want empty when streaming to a sink", got)
	}
}
