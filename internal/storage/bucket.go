package storage

import (
	"context"
	"hash/fnv"

	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// opRequest is a single queued operation against one tenant id. apply runs
// against the tenant's in-memory Config and returns the value to hand back
// to the caller plus the dirty bits the mutation touched (zero value for a
// pure read).
type opRequest struct {
	id    string
	apply func(cfg *tenantcfg.Config) (result any, dirty tenantcfg.DirtyBits)
	reply chan any
}

// bucket owns a disjoint slice of the id space for one client_type actor.
// It runs its own single goroutine, so its cache and pending map need no
// locking — every op on a given id is handled strictly in arrival order.
type bucket struct {
	clientType string
	persist    *PersistWorker
	cache      *lru
	pending    map[string][]opRequest
	ops        chan opRequest
	loadDone   chan loadResult
}

func newBucket(clientType string, persist *PersistWorker, cacheSize, queueSize int) *bucket {
	return &bucket{
		clientType: clientType,
		persist:    persist,
		cache:      newLRU(cacheSize),
		pending:    make(map[string][]opRequest),
		ops:        make(chan opRequest, queueSize),
		loadDone:   make(chan loadResult, queueSize),
	}
}

func (b *bucket) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.flushAll(ctx)
			return
		case req := <-b.ops:
			b.handleOp(ctx, req)
		case lr := <-b.loadDone:
			b.handleLoadDone(ctx, lr)
		}
	}
}

func (b *bucket) handleOp(ctx context.Context, req opRequest) {
	if entry, ok := b.cache.Get(req.id); ok {
		result, dirty := req.apply(&entry.Config)
		entry.Dirty.Or(dirty)
		req.reply <- result
		if dirty.Any() {
			b.persist.writeBackAsync(ctx, b.clientType, req.id, entry.Config, entry.Dirty)
			entry.Dirty = tenantcfg.DirtyBits{}
		}
		return
	}
	if queued, loading := b.pending[req.id]; loading {
		b.pending[req.id] = append(queued, req)
		return
	}
	b.pending[req.id] = []opRequest{req}
	b.persist.loadAsync(ctx, b.clientType, req.id, b.loadDone)
}

func (b *bucket) handleLoadDone(ctx context.Context, lr loadResult) {
	entry := &CachedEntry{Config: lr.cfg}
	queued := b.pending[lr.id]
	delete(b.pending, lr.id)

	for _, req := range queued {
		result, dirty := req.apply(&entry.Config)
		entry.Dirty.Or(dirty)
		req.reply <- result
	}
	if entry.Dirty.Any() {
		b.persist.writeBackAsync(ctx, b.clientType, lr.id, entry.Config, entry.Dirty)
		entry.Dirty = tenantcfg.DirtyBits{}
	}

	evictedID, evicted, didEvict := b.cache.Put(lr.id, entry)
	if didEvict && evicted.Dirty.Any() {
		b.persist.writeBackAsync(ctx, b.clientType, evictedID, evicted.Config, evicted.Dirty)
	}
}

func (b *bucket) flushAll(ctx context.Context) {
	for _, item := range b.cache.All() {
		if item.entry.Dirty.Any() {
			b.persist.writeBackAsync(ctx, b.clientType, item.id, item.entry.Config, item.entry.Dirty)
		}
	}
}

// bucketFor deterministically routes an id to one of n buckets.
func bucketFor(id string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32()) % n
}
