// Package refcache keeps the reference data (categories, tags, manual and
// synced accounts) in memory so that records carrying only numeric ids can
// be rendered with names.
//
// Lifecycle: New, then Initialize once at startup. Until Initialize has
// succeeded every resolution query fails with ErrNotInitialized. After a
// successful mutation of one resource type, call Refresh for that type
// only. Resolution of an unknown id is not an error: it yields a labeled
// placeholder such as "Category #42".
package refcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lunchtools/internal/api"
	"lunchtools/internal/core"
	"lunchtools/internal/log"
)

// Resource identifies one of the four independently refreshable tables.
type Resource string

const (
	Categories     Resource = "categories"
	Tags           Resource = "tags"
	ManualAccounts Resource = "manual_accounts"
	SyncedAccounts Resource = "synced_accounts"
)

const (
	// UncategorizedLabel is rendered for a missing category id.
	UncategorizedLabel = "Uncategorized"
	// CashLabel is rendered for a transaction bound to no account.
	CashLabel = "Cash"
)

var (
	ErrNotInitialized  = errors.New("reference cache not initialized")
	ErrUnknownResource = errors.New("unknown resource type")
)

// AllResources lists the resource types in a stable order.
func AllResources() []Resource {
	return []Resource{Categories, Tags, ManualAccounts, SyncedAccounts}
}

// ParseResource accepts the canonical names plus the camel-case spellings.
func ParseResource(s string) (Resource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "categories", "category":
		return Categories, nil
	case "tags", "tag":
		return Tags, nil
	case "manual_accounts", "manualaccounts", "assets":
		return ManualAccounts, nil
	case "synced_accounts", "syncedaccounts", "plaid_accounts", "plaidaccounts":
		return SyncedAccounts, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownResource, s)
}

// Valid reports whether r names one of the four tables.
func (r Resource) Valid() bool {
	switch r {
	case Categories, Tags, ManualAccounts, SyncedAccounts:
		return true
	}
	return false
}

func (r Resource) String() string { return string(r) }

// Cache holds the four lookup tables.
type Cache struct {
	src    api.ReferenceReader
	logger *log.Logger

	ready  atomic.Bool
	initMu sync.Mutex

	categories table[core.Category]
	tags       table[core.Tag]
	manual     table[core.ManualAccount]
	synced     table[core.SyncedAccount]
}

// New creates an uninitialized cache reading from src.
func New(src api.ReferenceReader, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Cache{
		src:    src,
		logger: logger.WithComponent(log.ComponentRefCache),
	}
}

func categoryID(c core.Category) int64 { return c.ID }
func tagID(t core.Tag) int64 { return t.ID }
func manualID(a core.ManualAccount) int64 { return a.ID }
func syncedID(a core.SyncedAccount) int64 { return a.ID }

// Initialize fetches the four resources concurrently and publishes them
// only if every fetch succeeded. On failure the cache keeps its previous
// state (uninitialized on first call) and the first fetch error is
// returned, naming the resource. Errors from the source are not retried.
func (c *Cache) Initialize(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	start := time.Now()
	var (
		g      errgroup.Group
		cats   []core.Category
		tags   []core.Tag
		manual []core.ManualAccount
		synced []core.SyncedAccount
	)
	g.Go(func() (err error) {
		cats, err = c.src.ListCategories(ctx)
		return wrapFetch(Categories, err)
	})
	g.Go(func() (err error) {
		tags, err = c.src.ListTags(ctx)
		return wrapFetch(Tags, err)
	})
	g.Go(func() (err error) {
		manual, err = c.src.ListManualAccounts(ctx)
		return wrapFetch(ManualAccounts, err)
	})
	g.Go(func() (err error) {
		synced, err = c.src.ListSyncedAccounts(ctx)
		return wrapFetch(SyncedAccounts, err)
	})
	if err := g.Wait(); err != nil {
		c.logger.ErrorContext(ctx, "Reference cache initialization failed",
			log.FieldOperation, log.OpStartup,
			log.FieldError, err.Error())
		return fmt.Errorf("initialize reference cache: %w", err)
	}

	lockAll := []*sync.Mutex{&c.categories.refreshMu, &c.tags.refreshMu, &c.manual.refreshMu, &c.synced.refreshMu}
	for _, mu := range lockAll {
		mu.Lock()
	}
	c.categories.replace(cats, categoryID)
	c.tags.replace(tags, tagID)
	c.manual.replace(manual, manualID)
	c.synced.replace(synced, syncedID)
	c.ready.Store(true)
	for _, mu := range lockAll {
		mu.Unlock()
	}

	c.logger.InfoContext(ctx, "Reference cache initialized",
		log.FieldOperation, log.OpStartup,
		"categories", len(cats),
		"tags", len(tags),
		"manual_accounts", len(manual),
		"synced_accounts", len(synced),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func wrapFetch(r Resource, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", r, err)
}

// Ready reports whether Initialize has succeeded.
func (c *Cache) Ready() bool {
	return c.ready.Load()
}

// Refresh re-fetches exactly one resource type and swaps its table.
// Other tables are untouched. On error the previous table stays in place.
func (c *Cache) Refresh(ctx context.Context, r Resource) error {
	if !r.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownResource, r)
	}
	if !c.ready.Load() {
		return ErrNotInitialized
	}
	start := time.Now()
	var (
		n   int
		err error
	)
	switch r {
	case Categories:
		n, err = refresh(ctx, &c.categories, c.src.ListCategories, categoryID)
	case Tags:
		n, err = refresh(ctx, &c.tags, c.src.ListTags, tagID)
	case ManualAccounts:
		n, err = refresh(ctx, &c.manual, c.src.ListManualAccounts, manualID)
	case SyncedAccounts:
		n, err = refresh(ctx, &c.synced, c.src.ListSyncedAccounts, syncedID)
	}
	if err != nil {
		return wrapFetch(r, err)
	}
	c.logger.DebugContext(ctx, "Reference table refreshed",
		log.FieldOperation, log.OpRefresh,
		log.FieldResource, string(r),
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func refresh[T any](ctx context.Context, t *table[T], fetch func(context.Context) ([]T, error), id func(T) int64) (int, error) {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()
	items, err := fetch(ctx)
	if err != nil {
		return 0, err
	}
	t.replace(items, id)
	return len(items), nil
}

// Sizes returns the number of records per table.
func (c *Cache) Sizes() (map[Resource]int, error) {
	if !c.ready.Load() {
		return nil, ErrNotInitialized
	}
	return map[Resource]int{
		Categories:     c.categories.size(),
		Tags:           c.tags.size(),
		ManualAccounts: c.manual.size(),
		SyncedAccounts: c.synced.size(),
	}, nil
}

// CategoryPlaceholder is the label of a category id missing from the cache.
func CategoryPlaceholder(id int64) string { return "Category #" + strconv.FormatInt(id, 10) }

// TagPlaceholder is the label of a tag id missing from the cache.
func TagPlaceholder(id int64) string { return "Tag #" + strconv.FormatInt(id, 10) }

// AccountPlaceholder is the label of an account id missing from the cache.
func AccountPlaceholder(id int64) string { return "Account #" + strconv.FormatInt(id, 10) }

// CategoryName resolves a category id. A nil id is "Uncategorized".
func (c *Cache) CategoryName(id *int64) (string, error) {
	if id == nil {
		return UncategorizedLabel, nil
	}
	if !c.ready.Load() {
		return "", ErrNotInitialized
	}
	if cat, ok := c.categories.get(*id); ok {
		return cat.Name, nil
	}
	return CategoryPlaceholder(*id), nil
}

// Category returns the cached category record.
func (c *Cache) Category(id int64) (core.Category, bool, error) {
	if !c.ready.Load() {
		return core.Category{}, false, ErrNotInitialized
	}
	cat, ok := c.categories.get(id)
	return cat, ok, nil
}

// TagNames resolves each id in order, keeping duplicates. All ids are
// resolved against the same snapshot.
func (c *Cache) TagNames(ids []int64) ([]string, error) {
	if !c.ready.Load() {
		return nil, ErrNotInitialized
	}
	names := make([]string, len(ids))
	c.tags.view(func(byID map[int64]core.Tag) {
		for i, id := range ids {
			if t, ok := byID[id]; ok {
				names[i] = t.Name
			} else {
				names[i] = TagPlaceholder(id)
			}
		}
	})
	return names, nil
}

// AccountName resolves the account of a record. The manual id wins when
// both are set; the display name wins over the canonical name. Both ids
// nil means a cash transaction.
func (c *Cache) AccountName(manualID, plaidID *int64) (string, error) {
	if manualID == nil && plaidID == nil {
		return CashLabel, nil
	}
	if !c.ready.Load() {
		return "", ErrNotInitialized
	}
	if manualID != nil {
		if a, ok := c.manual.get(*manualID); ok {
			return a.Label(), nil
		}
	}
	if plaidID != nil {
		if a, ok := c.synced.get(*plaidID); ok {
			return a.Label(), nil
		}
	}
	if manualID != nil {
		return AccountPlaceholder(*manualID), nil
	}
	return AccountPlaceholder(*plaidID), nil
}
