package store

import (
	"context"
	"sync"
	"time"

	"github.com/jeanpaul/favourites/internal/persist"
)

// writer persists snapshots on a single goroutine. Only the newest
// not-yet-started snapshot is kept, so the stored blob always converges on
// the latest commit and two writes never overlap.
type writer struct {
	adapter persist.Adapter
	key     string
	timeout time.Duration
	onError func(error)

	mu         sync.Mutex
	pending    []byte
	hasPending bool
	queued     uint64
	written    uint64
	waiters    []flushWaiter
	started    bool
	closed     bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

type flushWaiter struct {
	target uint64
	ch     chan struct{}
}

func newWriter(adapter persist.Adapter, key string, timeout time.Duration, onError func(error)) *writer {
	return &writer{
		adapter: adapter,
		key:     key,
		timeout: timeout,
		onError: onError,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *writer) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

// enqueue schedules blob for writing. It reports false once the writer is
// closed.
func (w *writer) enqueue(blob []byte) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = blob
	w.hasPending = true
	w.queued++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		if !w.hasPending {
			w.mu.Unlock()
			return
		}
		blob, seq := w.pending, w.queued
		w.pending, w.hasPending = nil, false
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.adapter.Write(ctx, w.key, blob)
		cancel()
		if err != nil && w.onError != nil {
			w.onError(&PersistenceError{Op: "write", Key: w.key, Err: err})
		}

		w.mu.Lock()
		w.written = seq
		kept := w.waiters[:0]
		for _, fw := range w.waiters {
			if fw.target <= w.written {
				close(fw.ch)
			} else {
				kept = append(kept, fw)
			}
		}
		w.waiters = kept
		w.mu.Unlock()
	}
}

// flush waits until every snapshot enqueued before the call was attempted.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.queued
	if !w.started || w.written >= target {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, flushWaiter{target: target, ch: ch})
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed || !w.started {
		w.closed = true
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.quit)
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
