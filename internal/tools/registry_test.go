package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lunchtools/internal/api/memory"
	"lunchtools/internal/cache"
	"lunchtools/internal/core"
	"lunchtools/internal/log"
	"lunchtools/internal/refcache"
)

// backend wraps the memory store to count calls and inject failures.
type backend struct {
	*memory.Store

	mu       sync.Mutex
	listTx   int
	tagFetch int
	failTags error
	// afterList runs once, after the next listing has been read.
	afterList func()
}

func (b *backend) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	b.mu.Lock()
	b.listTx++
	hook := b.afterList
	b.afterList = nil
	b.mu.Unlock()
	txs, err := b.Store.ListTransactions(ctx, f)
	if hook != nil {
		hook()
	}
	return txs, err
}

func (b *backend) setAfterList(fn func()) {
	b.mu.Lock()
	b.afterList = fn
	b.mu.Unlock()
}

func (b *backend) ListTags(ctx context.Context) ([]core.Tag, error) {
	b.mu.Lock()
	b.tagFetch++
	err := b.failTags
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.Store.ListTags(ctx)
}

func (b *backend) setFailTags(err error) {
	b.mu.Lock()
	b.failTags = err
	b.mu.Unlock()
}

type notifier struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (n *notifier) Publish(_ context.Context, r string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, r)
	return n.err
}

type journal struct {
	mu      sync.Mutex
	entries []core.ChangeEntry
}

func (j *journal) Record(_ context.Context, e core.ChangeEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.ID = int64(len(j.entries) + 1)
	j.entries = append(j.entries, e)
	return nil
}

func (j *journal) Recent(_ context.Context, limit int) ([]core.ChangeEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []core.ChangeEntry
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

type fixture struct {
	reg      *Registry
	backend  *backend
	cache    *refcache.Cache
	notifier *notifier
	journal  *journal
}

var fixedNow = time.Date(2025, 2, 5, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, initialize bool) *fixture {
	t.Helper()
	seed := memory.DefaultSeed()
	next := core.NewDate(2025, 2, 10)
	rent := int64(2)
	seed.Recurring = []core.RecurringItem{{
		ID: 7, Payee: "Landlord", Amount: decimal.NewFromInt(950), Currency: "usd",
		Cadence: "monthly", NextDate: &next, CategoryID: &rent,
	}}
	b := &backend{Store: memory.New(seed)}
	c := refcache.New(b, log.Discard())
	if initialize {
		if err := c.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}
	f := &fixture{backend: b, cache: c, notifier: &notifier{}, journal: &journal{}}
	f.reg = New(Deps{
		Backend:  b,
		Cache:    c,
		Listings: cache.NewLRUCache[[]core.Transaction](8, time.Minute),
		Notifier: f.notifier,
		Journal:  f.journal,
		Logger:   log.Discard(),
		Now:      func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) call(t *testing.T, name string, args Args) Result {
	t.Helper()
	res, err := f.reg.Call(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func mustContain(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(text, w) {
			t.Errorf("missing %q in:\n%s", w, text)
		}
	}
}

func TestRegisteredTools(t *testing.T) {
	f := newFixture(t, true)
	want := []string{
		"create_category", "create_manual_account", "create_tag", "create_transaction",
		"delete_category", "delete_manual_account", "delete_tag", "delete_transaction",
		"get_budget_summary", "get_categories", "get_category", "get_change_log",
		"get_manual_accounts", "get_plaid_accounts", "get_recurring_items", "get_tags",
		"get_transaction", "get_transactions", "get_user",
		"update_category", "update_manual_account", "update_tag", "update_transaction",
	}
	got := f.reg.Tools()
	if len(got) != len(want) {
		t.Fatalf("got %d tools, want %d", len(got), len(want))
	}
	for i, tool := range got {
		if tool.Name != want[i] {
			t.Errorf("tool %d = %s, want %s", i, tool.Name, want[i])
		}
		if tool.Description == "" {
			t.Errorf("%s has no description", tool.Name)
		}
		if strings.HasPrefix(tool.Name, "get_") && tool.Writes {
			t.Errorf("%s must not be a write", tool.Name)
		}
		if !strings.HasPrefix(tool.Name, "get_") && !tool.Writes {
			t.Errorf("%s must be a write", tool.Name)
		}
	}
}

func TestReadToolsResolveNames(t *testing.T) {
	f := newFixture(t, true)
	res := f.call(t, "get_transactions", nil)
	mustContain(t, res.Text, "Found 2 transactions", "Grocer", "Category: Food", "Account: Checking", "Category: Rent")

	res = f.call(t, "get_transaction", Args{"transaction_id": float64(100)})
	mustContain(t, res.Text, "#100 2025-01-03 Grocer $54.20")

	res = f.call(t, "get_user", nil)
	mustContain(t, res.Text, "Demo (demo@example.com)")

	res = f.call(t, "get_categories", nil)
	mustContain(t, res.Text, "Found 3 categories", "#3 Salary [income, excluded from budget]")

	res = f.call(t, "get_budget_summary", Args{"start_date": "2025-01-01", "end_date": "2025-01-31"})
	mustContain(t, res.Text, "Food: $54.20", "Rent: $950.00", "Total spending: $1,004.20")
}

func TestUpdateManualAccountRefreshesNames(t *testing.T) {
	f := newFixture(t, true)

	res := f.call(t, "update_manual_account", Args{"manual_account_id": float64(10), "display_name": "Main"})
	if res.Text != "Updated manual account #10." || len(res.Warnings) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if name, _ := f.cache.AccountName(int64Ptr(10), nil); name != "Main" {
		t.Fatalf("cache not refreshed, got %q", name)
	}
	mustContain(t, f.call(t, "get_transactions", nil).Text, "Account: Main")

	if len(f.notifier.published) != 1 || f.notifier.published[0] != "manual_accounts" {
		t.Fatalf("published = %v", f.notifier.published)
	}
	if len(f.journal.entries) != 1 {
		t.Fatalf("journal entries = %d", len(f.journal.entries))
	}
	e := f.journal.entries[0]
	if e.Tool != "update_manual_account" || e.Resources[0] != "manual_accounts" || !e.CreatedAt.Equal(fixedNow) {
		t.Fatalf("journal entry = %+v", e)
	}
	if !strings.Contains(e.Arguments, `"display_name":"Main"`) {
		t.Fatalf("arguments not recorded: %s", e.Arguments)
	}
}

func TestCreateTagRefreshesOnlyTags(t *testing.T) {
	f := newFixture(t, true)
	before := f.backend.tagFetch

	res := f.call(t, "create_tag", Args{"name": "travel"})
	mustContain(t, res.Text, "Created tag #")
	if f.backend.tagFetch != before+1 {
		t.Fatalf("tags fetched %d times, want 1", f.backend.tagFetch-before)
	}
	sizes, _ := f.cache.Sizes()
	if sizes[refcache.Tags] != 3 || sizes[refcache.Categories] != 3 {
		t.Fatalf("sizes = %v", sizes)
	}
}

func TestRefreshFailureIsWarning(t *testing.T) {
	f := newFixture(t, true)
	f.backend.setFailTags(errors.New("503 service unavailable"))

	res := f.call(t, "update_tag", Args{"tag_id": float64(20), "name": "office"})
	if res.Text != "Updated tag #20." {
		t.Fatalf("Text = %q", res.Text)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "tags could not be refreshed") {
		t.Fatalf("Warnings = %v", res.Warnings)
	}
	mustContain(t, res.String(), "Updated tag #20.\n\nWarning: ")

	// The stale table stays until a later refresh succeeds.
	if got, _ := f.cache.TagNames([]int64{20}); got[0] != "work" {
		t.Fatalf("stale name lost: %v", got)
	}
	if f.journal.entries[0].Warning == "" {
		t.Fatalf("warning not journaled")
	}

	f.backend.setFailTags(nil)
	f.call(t, "create_tag", Args{"name": "travel"})
	if got, _ := f.cache.TagNames([]int64{20}); got[0] != "office" {
		t.Fatalf("refresh did not recover: %v", got)
	}
}

func TestNotifierFailureDoesNotFailCall(t *testing.T) {
	f := newFixture(t, true)
	f.notifier.err = errors.New("channel closed")
	res := f.call(t, "create_category", Args{"name": "Travel"})
	if len(res.Warnings) != 0 {
		t.Fatalf("Warnings = %v", res.Warnings)
	}
}

func TestDegradedModeRecovers(t *testing.T) {
	f := newFixture(t, false)
	f.backend.setFailTags(errors.New("timeout"))
	if err := f.cache.Initialize(context.Background()); err == nil {
		t.Fatalf("expected init failure")
	}

	res := f.call(t, "get_transactions", nil)
	mustContain(t, res.Text, "Category: Category #1", "Account: Account #10")

	res = f.call(t, "create_tag", Args{"name": "travel"})
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "unavailable") {
		t.Fatalf("Warnings = %v", res.Warnings)
	}

	f.backend.setFailTags(nil)
	res = f.call(t, "create_tag", Args{"name": "gifts"})
	if len(res.Warnings) != 0 {
		t.Fatalf("Warnings = %v", res.Warnings)
	}
	if !f.cache.Ready() {
		t.Fatalf("cache should have initialized")
	}
	mustContain(t, f.call(t, "get_transaction", Args{"transaction_id": float64(100)}).Text, "Category: Food")
}

func TestTransactionWriteRetriesInitialization(t *testing.T) {
	f := newFixture(t, false)
	f.backend.setFailTags(errors.New("timeout"))
	if err := f.cache.Initialize(context.Background()); err == nil {
		t.Fatalf("expected init failure")
	}

	res := f.call(t, "create_transaction", Args{"date": "2025-01-10", "payee": "Bakery", "amount": "3.00"})
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "unavailable") {
		t.Fatalf("Warnings = %v", res.Warnings)
	}

	f.backend.setFailTags(nil)
	res = f.call(t, "delete_transaction", Args{"transaction_id": float64(101)})
	if len(res.Warnings) != 0 {
		t.Fatalf("Warnings = %v", res.Warnings)
	}
	if !f.cache.Ready() {
		t.Fatalf("cache should have initialized after a transaction write")
	}
	mustContain(t, f.call(t, "get_transaction", Args{"transaction_id": float64(100)}).Text, "Category: Food")
}

func TestTransactionListingCache(t *testing.T) {
	f := newFixture(t, true)
	args := Args{"start_date": "2025-01-01", "end_date": "2025-12-31"}

	f.call(t, "get_transactions", args)
	f.call(t, "get_transactions", args)
	if f.backend.listTx != 1 {
		t.Fatalf("listings fetched %d times, want 1", f.backend.listTx)
	}

	f.call(t, "create_transaction", Args{
		"date":     "2025-01-10",
		"payee":    "Bakery",
		"amount":   "4,50",
		"tag_ids":  []any{float64(20)},
		"category": nil,
	})
	if got := f.notifier.published; len(got) != 1 || got[0] != TransactionsResource {
		t.Fatalf("published = %v", got)
	}
	res := f.call(t, "get_transactions", args)
	if f.backend.listTx != 2 {
		t.Fatalf("cache not purged after write, fetches = %d", f.backend.listTx)
	}
	mustContain(t, res.Text, "Found 3 transactions", "Bakery $4.50", "Category: Uncategorized", "Account: Cash", "Tags: work")
}

func TestListingFetchedAcrossWriteIsNotCached(t *testing.T) {
	f := newFixture(t, true)
	args := Args{"start_date": "2025-01-01", "end_date": "2025-12-31"}

	fetched := make(chan struct{})
	release := make(chan struct{})
	f.backend.setAfterList(func() {
		close(fetched)
		<-release
	})

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.reg.Call(context.Background(), "get_transactions", args)
		done <- outcome{res.Text, err}
	}()

	<-fetched
	f.call(t, "create_transaction", Args{"date": "2025-01-10", "payee": "Bakery", "amount": "3.00"})
	close(release)

	first := <-done
	if first.err != nil {
		t.Fatalf("get_transactions: %v", first.err)
	}
	if strings.Contains(first.text, "Bakery") {
		t.Fatalf("in-flight listing should predate the write:\n%s", first.text)
	}

	res := f.call(t, "get_transactions", args)
	mustContain(t, res.Text, "Found 3 transactions", "Bakery $3.00")
	if f.backend.listTx != 2 {
		t.Fatalf("listings fetched %d times, want 2", f.backend.listTx)
	}
}

func TestArgumentErrors(t *testing.T) {
	f := newFixture(t, true)
	cases := []struct {
		tool string
		args Args
	}{
		{"get_category", nil},
		{"get_category", Args{"category_id": "abc"}},
		{"get_category", Args{"category_id": float64(1.5)}},
		{"get_category", Args{"category_id": float64(-1)}},
		{"create_tag", Args{"name": float64(3)}},
		{"get_transactions", Args{"status": "done"}},
		{"get_transactions", Args{"start_date": "01/02/2025"}},
		{"get_transactions", Args{"start_date": "2025-02-01", "end_date": "2025-01-01"}},
		{"create_transaction", Args{"date": "2025-01-01", "payee": "x", "amount": "lots"}},
		{"create_transaction", Args{"date": "2025-01-01", "payee": "x", "amount": float64(1), "tag_ids": []any{"a"}}},
		{"update_tag", Args{"tag_id": float64(20), "archived": "maybe"}},
	}
	for _, tc := range cases {
		_, err := f.reg.Call(context.Background(), tc.tool, tc.args)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s %v: expected ErrInvalidArgument, got %v", tc.tool, tc.args, err)
		}
	}
	if len(f.journal.entries) != 0 {
		t.Fatalf("failed calls must not be journaled")
	}
}

func TestBackendErrorsPropagate(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.reg.Call(context.Background(), "update_tag", Args{"tag_id": float64(20)}); !errors.Is(err, core.ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}
	if _, err := f.reg.Call(context.Background(), "delete_category", Args{"category_id": float64(1)}); err == nil {
		t.Fatalf("deleting a category in use should fail")
	}
	if _, err := f.reg.Call(context.Background(), "no_such_tool", nil); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if len(f.notifier.published) != 0 {
		t.Fatalf("failed writes must not publish: %v", f.notifier.published)
	}
}

func TestRecurringItemsDefaultToCurrentMonth(t *testing.T) {
	f := newFixture(t, true)
	res := f.call(t, "get_recurring_items", nil)
	mustContain(t, res.Text, "#7 Landlord $950.00", "Next: 2025-02-10", "Category: Rent")

	res = f.call(t, "get_recurring_items", Args{"start_date": "2025-03-01", "end_date": "2025-03-31"})
	mustContain(t, res.Text, "#7 Landlord $950.00", "Next: 2025-03-10")

	res = f.call(t, "get_recurring_items", Args{"start_date": "2025-01-01", "end_date": "2025-01-31"})
	if res.Text != "No recurring items found." {
		t.Fatalf("Text = %q", res.Text)
	}
}

func TestChangeLog(t *testing.T) {
	f := newFixture(t, true)
	if got := f.call(t, "get_change_log", nil).Text; got != "No changes recorded." {
		t.Fatalf("empty log = %q", got)
	}
	f.call(t, "create_tag", Args{"name": "travel"})
	f.call(t, "delete_transaction", Args{"transaction_id": float64(101)})

	got := f.call(t, "get_change_log", Args{"limit": float64(1)}).Text
	mustContain(t, got, "delete_transaction: Deleted transaction #101.")
	if strings.Contains(got, "create_tag") {
		t.Fatalf("limit ignored:\n%s", got)
	}
	if f.journal.entries[1].Resources[0] != "transactions" {
		t.Fatalf("resources = %v", f.journal.entries[1].Resources)
	}

	noJournal := New(Deps{Backend: f.backend, Cache: f.cache, Logger: log.Discard()})
	res, err := noJournal.Call(context.Background(), "get_change_log", nil)
	if err != nil || !strings.Contains(res.Text, "not enabled") {
		t.Fatalf("get_change_log without journal = %q, %v", res.Text, err)
	}
}

func int64Ptr(v int64) *int64 { return &v }
