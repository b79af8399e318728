package refcache

import "errors"

// Resolver turns ids into display names. Implementations never fail:
// anything they cannot resolve comes back as a labeled placeholder.
type Resolver interface {
	CategoryName(id *int64) string
	TagNames(ids []int64) []string
	AccountName(manualID, plaidID *int64) string
}

// Fallback returns a Resolver over c for callers that chose to run in
// degraded mode. While c is uninitialized every id resolves to its
// placeholder; once c is ready the answers are the cache's own.
func Fallback(c *Cache) Resolver {
	return fallback{c: c}
}

type fallback struct {
	c *Cache
}

func (f fallback) CategoryName(id *int64) string {
	name, err := f.c.CategoryName(id)
	if errors.Is(err, ErrNotInitialized) {
		return CategoryPlaceholder(*id)
	}
	return name
}

func (f fallback) TagNames(ids []int64) []string {
	names, err := f.c.TagNames(ids)
	if errors.Is(err, ErrNotInitialized) {
		names = make([]string, len(ids))
		for i, id := range ids {
			names[i] = TagPlaceholder(id)
		}
	}
	return names
}

func (f fallback) AccountName(manualID, plaidID *int64) string {
	name, err := f.c.AccountName(manualID, plaidID)
	if errors.Is(err, ErrNotInitialized) {
		if manualID != nil {
			return AccountPlaceholder(*manualID)
		}
		return AccountPlaceholder(*plaidID)
	}
	return name
}
