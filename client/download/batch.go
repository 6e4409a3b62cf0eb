package download

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/fetchq/client"
)

// Batch runs multiple fetches through one service, optionally bounding
// how many stream to disk at once. It is safe for concurrent use.
type Batch struct {
	svc    *client.Service
	logger *slog.Logger

	wg       sync.WaitGroup
	sem      chan struct{}
	shutdown atomic.Bool

	mu   sync.Mutex
	errs []error
}

// NewBatch returns a Batch fetching through svc. A maxConcurrent of zero
// or less means unlimited.
func NewBatch(svc *client.Service, logger *slog.Logger, maxConcurrent int) *Batch {
	b := Batch{
		svc:    svc,
		logger: logger,
	}

	if maxConcurrent > 0 {
		b.sem = make(chan struct{}, maxConcurrent)
	}

	return &b
}

// Add schedules a fetch of rawURL into destPath and returns an Item for
// tracking it. The fetch starts as soon as a concurrency slot frees up.
func (b *Batch) Add(ctx context.Context, rawURL string, expCode int, destPath string, optFns ...Option) *Item {
	ctx, cancel := context.WithCancel(ctx)

	item := Item{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	b.wg.Add(1)

	go func() {
		defer func() {
			cancel()
			close(item.done)
			b.wg.Done()
		}()

		if b.sem != nil {
			select {
			case b.sem <- struct{}{}:
				defer func() { <-b.sem }()
			case <-ctx.Done():
				item.err = b.record(ctx.Err())

				return
			}
		}

		if b.shutdown.Load() {
			item.err = b.record(ErrBatchShutdown)

			return
		}

		if err := Fetch(ctx, b.svc, rawURL, expCode, destPath, b.logger, optFns...); err != nil {
			item.err = b.record(err)
		}
	}()

	return &item
}

// Wait blocks until every added fetch finished and returns their errors
// joined, or nil if all succeeded.
func (b *Batch) Wait() error {
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	return errors.Join(b.errs...)
}

// Shutdown stops fetches that haven't started yet. Fetches already
// streaming run to completion.
func (b *Batch) Shutdown() {
	b.shutdown.Store(true)
}

func (b *Batch) record(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errs = append(b.errs, err)

	return err
}

// Item tracks a single fetch scheduled on a Batch.
type Item struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done returns a channel closed when the fetch finished.
func (i *Item) Done() <-chan struct{} {
	return i.done
}

// Err blocks until the fetch finished and returns its error, if any.
func (i *Item) Err() error {
	<-i.done

	return i.err
}

// Cancel stops this fetch. A fetch already streaming aborts its
// transfer and leaves no file behind.
func (i *Item) Cancel() {
	i.cancel()
}
