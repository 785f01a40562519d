package storage

import (
	"container/list"

	"github.com/mrwong99/rollbot/internal/tenantcfg"
)

// CachedEntry is a tenant row resident in the cache, plus the dirty bits
// recording which fields have been mutated since the last write-back.
type CachedEntry struct {
	Config tenantcfg.Config
	Dirty  tenantcfg.DirtyBits
}

type lruItem struct {
	id    string
	entry *CachedEntry
}

// lru is a fixed-capacity, non-thread-safe least-recently-used cache. It is
// only ever touched from the single bucket goroutine that owns it, so it
// needs no internal locking.
type lru struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newLRU(capacity int) *lru {
	if capacity < 1 {
		capacity = 1
	}
	return &lru{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the entry for id, moving it to the front (most recently
// used) position.
func (l *lru) Get(id string) (*CachedEntry, bool) {
	el, ok := l.index[id]
	if !ok {
		return nil, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

// Put inserts entry under id. If the cache was already at capacity, the
// least-recently-used item is evicted and returned.
func (l *lru) Put(id string, entry *CachedEntry) (evictedID string, evicted *CachedEntry, didEvict bool) {
	if el, ok := l.index[id]; ok {
		el.Value.(*lruItem).entry = entry
		l.order.MoveToFront(el)
		return "", nil, false
	}
	el := l.order.PushFront(&lruItem{id: id, entry: entry})
	l.index[id] = el
	if l.order.Len() <= l.capacity {
		return "", nil, false
	}
	back := l.order.Back()
	l.order.Remove(back)
	item := back.Value.(*lruItem)
	delete(l.index, item.id)
	return item.id, item.entry, true
}

// All returns every resident (id, entry) pair, in no particular order.
// Used to flush the cache on shutdown.
func (l *lru) All() []lruItem {
	out := make([]lruItem, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*lruItem))
	}
	return out
}
