package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Engine runs transfers concurrently and surfaces their completions
// cooperatively: nothing a caller can see changes except inside Poll.
// Workers stream into per-transfer accumulators and queue a completion
// event; Poll drains the queue, marks accumulators terminal, and releases
// the transfer's resources.
type Engine struct {
	client *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	nextID    Handle
	tasks     map[Handle]*task
	active    int
	observed  int
	queue     []completion
	resp      *store
	sem       chan struct{}
	hostLimit int
	hostSems  map[string]chan struct{}

	activity chan struct{}
}

// task is the engine-side state of one submitted transfer.
type task struct {
	acc      *Accumulator
	cancel   context.CancelFunc
	finished bool
	aborted  bool
	released bool
}

// release frees the transfer's native resources. Exactly one of the drain
// and abort paths calls it; a second call is an engine bug.
func (t *task) release() {
	if t.released {
		panic("transfer: task released twice")
	}
	t.released = true
	t.cancel()
}

// New returns an Engine performing transfers with client. A nil client
// falls back to http.DefaultClient, a nil logger to slog.Default().
func New(client *http.Client, logger *slog.Logger) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:   client,
		logger:   logger,
		tasks:    make(map[Handle]*task),
		resp:     newStore(),
		activity: make(chan struct{}, 1),
	}
}

// Submit validates desc, registers a new transfer, and starts its worker.
// The returned handle claims the result later. Malformed descriptors fail
// here, before any transfer state exists.
func (e *Engine) Submit(ctx context.Context, desc *Descriptor) (Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := desc.HTTPRequest(ctx)
	if err != nil {
		cancel()
		return 0, err
	}

	t := &task{acc: newAccumulator(desc.Sink), cancel: cancel}

	e.mu.Lock()
	e.nextID++
	h := e.nextID
	e.tasks[h] = t
	e.resp.put(h, t.acc)
	e.active++
	e.observed++ // a fresh transfer is not a change for Poll to report
	e.mu.Unlock()

	e.logger.Debug("transfer submitted", "handle", uint64(h), "method", req.Method, "url", req.URL.String())

	go e.run(h, t, req)

	return h, nil
}

func (e *Engine) run(h Handle, t *task, req *http.Request) {
	status, err := e.perform(req, t.acc)

	e.mu.Lock()
	if t.aborted {
		e.mu.Unlock()
		return
	}
	t.finished = true
	e.active--
	e.queue = append(e.queue, completion{handle: h, status: status, err: err})
	e.mu.Unlock()

	e.signal()
}

func (e *Engine) perform(req *http.Request, acc *Accumulator) (int, error) {
	release, err := e.acquire(req.Context(), req.URL.Host)
	if err != nil {
		return 0, err
	}
	defer release()

	return execute(e.client, e.logger, req, acc)
}

// acquire blocks until the transfer may run under the current connection
// limits. The returned release frees exactly the slots taken, even if the
// limits change while the transfer runs.
func (e *Engine) acquire(ctx context.Context, host string) (func(), error) {
	e.mu.Lock()
	total := e.sem
	var perHost chan struct{}
	if e.hostLimit > 0 {
		perHost = e.hostSems[host]
		if perHost == nil {
			perHost = make(chan struct{}, e.hostLimit)
			e.hostSems[host] = perHost
		}
	}
	e.mu.Unlock()

	if total != nil {
		select {
		case total <- struct{}{}:
		case <-ctx.Done():
			return func() {}, ctx.Err()
		}
	}
	if perHost != nil {
		select {
		case perHost <- struct{}{}:
		case <-ctx.Done():
			if total != nil {
				<-total
			}
			return func() {}, ctx.Err()
		}
	}

	return func() {
		if perHost != nil {
			<-perHost
		}
		if total != nil {
			<-total
		}
	}, nil
}

// Poll drains queued completion events and reports how many transfers are
// still running. The boolean is false when nothing changed since the last
// call: no completions applied and the running count already known.
func (e *Engine) Poll() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == e.observed {
		return e.active, false
	}
	e.observed = e.active

	for _, c := range e.queue {
		t, ok := e.tasks[c.handle]
		if !ok {
			continue // aborted after finishing; the event is stale
		}
		delete(e.tasks, c.handle)
		t.release()
		if c.err != nil {
			t.acc.fail(c.err)
			e.logger.Debug("transfer failed", "handle", uint64(c.handle), "error", c.err)
		} else {
			t.acc.finish(c.status)
			e.logger.Debug("transfer completed", "handle", uint64(c.handle), "status", c.status)
		}
	}
	e.queue = e.queue[:0]

	return e.active, true
}

// WaitForActivity blocks until a completion event is queued or timeout
// elapses. A true return is a hint, not a guarantee: the caller still
// polls to apply whatever arrived.
func (e *Engine) WaitForActivity(timeout time.Duration) bool {
	e.mu.Lock()
	queued := len(e.queue) > 0
	e.mu.Unlock()
	if queued {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.activity:
		return true
	case <-timer.C:
		return false
	}
}

func (e *Engine) signal() {
	select {
	case e.activity <- struct{}{}:
	default:
	}
}

// Abort forcibly deregisters a transfer, releasing its slot and dropping
// its store entry without waiting for the worker. Returns false for
// handles the engine no longer owns.
func (e *Engine) Abort(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[h]
	if !ok {
		return false
	}
	delete(e.tasks, h)
	e.resp.drop(h)
	if !t.finished {
		t.aborted = true
		e.active--
	}
	t.release()

	e.logger.Debug("transfer aborted", "handle", uint64(h))
	return true
}

// SetConnectionLimits caps concurrently running transfers, in total and
// per URL host. Zero removes a cap. New limits bind transfers that have
// not yet acquired a slot; running transfers keep the slots they hold.
func (e *Engine) SetConnectionLimits(total, perHost int) error {
	if total < 0 || perHost < 0 {
		return fmt.Errorf("total[%d] and perHost[%d] %w", total, perHost, ErrLimitNegative)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sem = nil
	if total > 0 {
		e.sem = make(chan struct{}, total)
	}
	e.hostLimit = perHost
	e.hostSems = nil
	if perHost > 0 {
		e.hostSems = make(map[string]chan struct{})
	}

	return nil
}

// TakeCompleted claims the result of a finished transfer. Each handle's
// result can be claimed at most once; an unfinished or unknown handle
// yields nothing.
func (e *Engine) TakeCompleted(h Handle) (*Accumulator, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resp.takeCompleted(h)
}

// Take claims a transfer's accumulator whether or not it finished,
// reporting completion. Cancellation uses it to prefer a real outcome
// over a synthetic one.
func (e *Engine) Take(h Handle) (*Accumulator, bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resp.take(h)
}
