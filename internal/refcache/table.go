package refcache

import "sync"

// table is one lookup table. Readers share the lock; a refresh builds the
// next map outside the lock and swaps it in under the write lock, so a
// reader sees either the whole old snapshot or the whole new one.
type table[T any] struct {
	mu   sync.RWMutex
	byID map[int64]T

	// refreshMu serializes fetch+swap so a refresh started after a
	// mutation never publishes before one started earlier.
	refreshMu sync.Mutex
}

func (t *table[T]) replace(items []T, id func(T) int64) {
	byID := make(map[int64]T, len(items))
	for _, it := range items {
		byID[id(it)] = it
	}

	t.mu.Lock()
	t.byID = byID
	t.mu.Unlock()
}

func (t *table[T]) get(id int64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.byID[id]
	return v, ok
}

// view runs fn against a single consistent snapshot.
func (t *table[T]) view(fn func(byID map[int64]T)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.byID)
}

func (t *table[T]) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
