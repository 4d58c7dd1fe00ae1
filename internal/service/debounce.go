package service

import (
	"context"
	"sync"
	"time"
)

// Debouncer coalesces bursts of work per key. Each Submit replaces the
// pending job for its key; a job runs only after the key has been quiet
// for the delay, and a newer Submit cancels a job that is already running.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*debounced
	closed  bool
}

type debounced struct {
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc

	// emitMu makes delivery and cancellation mutually exclusive, so nothing
	// is delivered once cancel has returned.
	emitMu sync.Mutex
}

// Job is debounced work. emit runs deliver only if the job is still current.
type Job func(ctx context.Context, emit func(deliver func()))

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, pending: make(map[string]*debounced)}
}

// Submit schedules job for key, superseding any earlier job for the same key.
func (d *Debouncer) Submit(key string, job Job) {
	ctx, cancel := context.WithCancel(context.Background())
	entry := &debounced{ctx: ctx, cancel: cancel}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		cancel()
		return
	}
	prev := d.pending[key]
	d.pending[key] = entry
	entry.timer = time.AfterFunc(d.delay, func() { d.run(key, entry, job) })
	d.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
}

// Cancel drops the pending or running job for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	entry := d.pending[key]
	delete(d.pending, key)
	d.mu.Unlock()

	if entry != nil {
		entry.stop()
	}
}

// Close cancels every job and rejects further submissions.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	entries := d.pending
	d.pending = make(map[string]*debounced)
	d.mu.Unlock()

	for _, entry := range entries {
		entry.stop()
	}
}

func (d *Debouncer) run(key string, entry *debounced, job Job) {
	if entry.ctx.Err() != nil {
		return
	}

	job(entry.ctx, func(deliver func()) {
		entry.emitMu.Lock()
		defer entry.emitMu.Unlock()
		if entry.ctx.Err() == nil {
			deliver()
		}
	})

	d.mu.Lock()
	if d.pending[key] == entry {
		delete(d.pending, key)
	}
	d.mu.Unlock()
	entry.cancel()
}

func (e *debounced) stop() {
	e.timer.Stop()
	e.emitMu.Lock()
	e.cancel()
	e.emitMu.Unlock()
}
