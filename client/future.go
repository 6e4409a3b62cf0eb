package client

import (
	"sync"
	"time"

	"github.com/adamwoolhether/fetchq/client/transfer"
)

// waitInterval caps one blocking stretch inside [Future.Wait]. Another
// future's claim can consume the wake-up meant for this one, so Wait
// re-checks at least this often.
const waitInterval = time.Second

// engine is the slice of the transfer engine a future touches. Kept
// narrow so tests can count the interactions with a double.
type engine interface {
	Poll() (int, bool)
	WaitForActivity(timeout time.Duration) bool
	TakeCompleted(h transfer.Handle) (*transfer.Accumulator, bool)
	Take(h transfer.Handle) (*transfer.Accumulator, bool, bool)
	Abort(h transfer.Handle) bool
}

// Future is the pending outcome of one submitted transfer. It resolves
// exactly once, either with the transfer's outcome run through the
// future's filter or with [ErrCancelled], and from then on answers out
// of its cache without touching the engine again.
//
// A Future is safe for concurrent use.
type Future[T any] struct {
	mu       sync.Mutex
	eng      engine
	handle   transfer.Handle
	filter   Filter[T]
	resolved bool
	value    T
	err      error
}

func newFuture[T any](eng engine, h transfer.Handle, filter Filter[T]) *Future[T] {
	return &Future[T]{eng: eng, handle: h, filter: filter}
}

// Peek reports whether the future has resolved, without blocking. While
// pending it gives the engine one chance to observe new completions
// (suppressed by [SkipEngineUpdate]) and then tries to claim this
// transfer's result; on claim the future resolves and Peek returns the
// final (value, true, err). Still pending: (zero, false, nil).
func (f *Future[T]) Peek(opts ...PeekOption) (T, bool, error) {
	var cfg peekOpts
	for _, opt := range opts {
		opt(&cfg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return f.value, true, f.err
	}

	if !cfg.skipUpdate {
		f.eng.Poll()
	}

	acc, ok := f.eng.TakeCompleted(f.handle)
	if !ok {
		var zero T
		return zero, false, nil
	}

	f.finalize(unpack(acc))

	return f.value, true, f.err
}

// Wait blocks until the future resolves and returns its outcome. It has
// no deadline of its own: a transfer that never completes blocks Wait
// forever. Callers that need an escape hatch use [Future.Cancel] or scope
// the submission context.
func (f *Future[T]) Wait() (T, error) {
	for {
		v, done, err := f.Peek()
		if done {
			return v, err
		}

		f.mu.Lock()
		eng := f.eng
		f.mu.Unlock()
		if eng == nil {
			continue // resolved since Peek; the next Peek answers from cache
		}
		eng.WaitForActivity(waitInterval)
	}
}

// Cancel resolves a pending future immediately. If the transfer already
// finished and its result is claimable, that real outcome resolves the
// future; otherwise the transfer is aborted and the future resolves with
// [ErrCancelled]. A resolved future is left untouched and Cancel returns
// its cached outcome, whatever it was.
func (f *Future[T]) Cancel() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return f.value, f.err
	}

	if acc, completed, ok := f.eng.Take(f.handle); ok && completed {
		f.finalize(unpack(acc))
		return f.value, f.err
	}

	f.eng.Abort(f.handle)
	f.finalize(nil, ErrCancelled)

	return f.value, f.err
}

// finalize runs the filter over the transfer's outcome, caches the
// result, and cuts the future loose from the engine. Callers hold f.mu.
func (f *Future[T]) finalize(res *Result, rerr error) {
	if f.filter != nil {
		f.value, f.err = f.filter(res, rerr)
	} else {
		// Only Submit builds filterless futures, so T is *Result here.
		v, _ := any(res).(T)
		f.value, f.err = v, rerr
	}
	f.resolved = true
	f.eng = nil
	f.handle = 0
}
