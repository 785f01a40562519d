package storage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// PersistWorker is the single dedicated goroutine that owns all traffic to
// the relational store. It consumes a bounded queue of closures; every
// storage bucket submits work here rather than touching Store directly, so
// the database connection always has exactly one caller.
type PersistWorker struct {
	tasks chan func()
	store Store
	done  chan struct{}
}

// NewPersistWorker starts the worker goroutine against store, with a queue
// of the given capacity.
func NewPersistWorker(ctx context.Context, store Store, queueSize int) *PersistWorker {
	if queueSize < 1 {
		queueSize = 1
	}
	w := &PersistWorker{
		tasks: make(chan func(), queueSize),
		store: store,
		done:  make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

func (w *PersistWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.tasks:
			task()
		}
	}
}

// Submit enqueues task, blocking if the queue is full until space frees up
// or ctx is cancelled.
func (w *PersistWorker) Submit(ctx context.Context, task func()) {
	select {
	case w.tasks <- task:
	case <-ctx.Done():
	}
}

// Done reports a channel closed once the worker goroutine exits.
func (w *PersistWorker) Done() <-chan struct{} { return w.done }

// loadAsync submits a read-or-insert-default task and delivers the result
// to replyTo.
func (w *PersistWorker) loadAsync(ctx context.Context, clientType, id string, replyTo chan<- loadResult) {
	opID := uuid.NewString()
	w.Submit(ctx, func() {
		cfg, err := w.store.LoadOrInsertDefault(context.Background(), clientType, id)
		if err != nil {
			slog.Error("storage: load failed, using defaulted row", "op_id", opID, "client_type", clientType, "id", id, "err", err)
			cfg = tenantcfg.New()
		}
		select {
		case replyTo <- loadResult{id: id, cfg: cfg}:
		case <-ctx.Done():
		}
	})
}

// writeBackAsync submits a changeset write. Errors are logged and dropped:
// the in-memory cache remains authoritative until the next flush.
func (w *PersistWorker) writeBackAsync(ctx context.Context, clientType, id string, cfg tenantcfg.Config, dirty tenantcfg.DirtyBits) {
	opID := uuid.NewString()
	w.Submit(ctx, func() {
		if err := w.store.WriteChangeset(context.Background(), clientType, id, cfg, dirty); err != nil {
			slog.Error("storage: write-back failed", "op_id", opID, "client_type", clientType, "id", id, "err", err)
		}
	})
}

type loadResult struct {
	id  string
	cfg tenantcfg.Config
}
