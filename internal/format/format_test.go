package format

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lunchtools/internal/api/memory"
	"lunchtools/internal/core"
	"lunchtools/internal/log"
	"lunchtools/internal/refcache"
)

func ptr[T any](v T) *T { return &v }

// mapResolver mirrors the cache's fallback rules over fixed maps.
type mapResolver struct {
	cats     map[int64]string
	tags     map[int64]string
	accounts map[int64]string
}

func (m mapResolver) CategoryName(id *int64) string {
	if id == nil {
		return refcache.UncategorizedLabel
	}
	if n, ok := m.cats[*id]; ok {
		return n
	}
	return refcache.CategoryPlaceholder(*id)
}

func (m mapResolver) TagNames(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := m.tags[id]; ok {
			out[i] = n
		} else {
			out[i] = refcache.TagPlaceholder(id)
		}
	}
	return out
}

func (m mapResolver) AccountName(manual, plaid *int64) string {
	switch {
	case manual == nil && plaid == nil:
		return refcache.CashLabel
	case manual != nil:
		if n, ok := m.accounts[*manual]; ok {
			return n
		}
		return refcache.AccountPlaceholder(*manual)
	}
	if n, ok := m.accounts[*plaid]; ok {
		return n
	}
	return refcache.AccountPlaceholder(*plaid)
}

var names = mapResolver{
	cats:     map[int64]string{1: "Food", 2: "Rent", 9: "Essentials"},
	tags:     map[int64]string{20: "work"},
	accounts: map[int64]string{10: "Checking"},
}

func grocer() core.Transaction {
	return core.Transaction{
		ID:              100,
		Date:            core.NewDate(2025, 1, 3),
		Payee:           "Grocer",
		Amount:          decimal.RequireFromString("54.20"),
		Currency:        "usd",
		CategoryID:      ptr(int64(1)),
		ManualAccountID: ptr(int64(10)),
		TagIDs:          []int64{20, 99},
		Status:          core.TransactionCleared,
	}
}

func TestTransaction(t *testing.T) {
	want := "#100 2025-01-03 Grocer $54.20\n" +
		"  Category: Food\n" +
		"  Account: Checking\n" +
		"  Tags: work, Tag #99\n" +
		"  Status: cleared\n"
	if got := Transaction(names, grocer()); got != want {
		t.Fatalf("Transaction:\n%s\nwant:\n%s", got, want)
	}
}

func TestTransactionPlaceholdersAndSentinels(t *testing.T) {
	tx := grocer()
	tx.CategoryID = ptr(int64(42))
	tx.ManualAccountID = nil
	tx.TagIDs = nil
	got := Transaction(names, tx)
	for _, want := range []string{"Category: Category #42", "Account: Cash"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Tags:") {
		t.Errorf("untagged transaction should have no tag line:\n%s", got)
	}

	tx.CategoryID = nil
	tx.PlaidAccountID = ptr(int64(77))
	got = Transaction(names, tx)
	for _, want := range []string{"Category: Uncategorized", "Account: Account #77"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestTransactionsListing(t *testing.T) {
	if got := Transactions(names, nil); got != "No transactions found." {
		t.Fatalf("empty listing = %q", got)
	}
	tx2 := grocer()
	tx2.ID = 101
	got := Transactions(names, []core.Transaction{grocer(), tx2})
	if !strings.HasPrefix(got, "Found 2 transactions:\n\n#100") {
		t.Fatalf("unexpected listing:\n%s", got)
	}
	if strings.Index(got, "#100") > strings.Index(got, "#101") {
		t.Fatalf("input order not kept:\n%s", got)
	}
	one := Transactions(names, []core.Transaction{grocer()})
	if !strings.HasPrefix(one, "Found 1 transaction:") {
		t.Fatalf("singular header wrong: %q", one)
	}
}

func TestCategory(t *testing.T) {
	c := core.Category{ID: 1, Name: "Food", GroupID: ptr(int64(9)), ExcludeFromBudget: true}
	want := "#1 Food [excluded from budget]\n  Group: Essentials\n"
	if got := Category(names, c); got != want {
		t.Fatalf("Category = %q, want %q", got, want)
	}

	c.GroupID = ptr(int64(500))
	if got := Category(names, c); !strings.Contains(got, "Group: Category #500") {
		t.Fatalf("group placeholder missing: %q", got)
	}

	group := core.Category{ID: 9, Name: "Essentials", IsGroup: true, Children: []core.Category{{ID: 1, Name: "Food"}, {ID: 2, Name: "Rent"}}}
	if got := Category(names, group); !strings.Contains(got, "[group]") || !strings.Contains(got, "Children: Food, Rent") {
		t.Fatalf("group rendering: %q", got)
	}
}

func TestTags(t *testing.T) {
	got := Tags([]core.Tag{{ID: 20, Name: "work", Description: "office"}, {ID: 21, Name: "old", Archived: true}})
	want := "Found 2 tags:\n\n#20 work - office\n#21 old [archived]\n"
	if got != want {
		t.Fatalf("Tags = %q, want %q", got, want)
	}
	if Tags(nil) != "No tags found." {
		t.Fatalf("empty tags")
	}
}

func TestManualAccount(t *testing.T) {
	a := core.ManualAccount{
		ID:          3,
		Name:        "Checking",
		DisplayName: ptr("Main"),
		Balance:     decimal.RequireFromString("1200"),
		Currency:    "usd",
		Type:        "cash",
		Subtype:     "checking",
		Status:      core.AccountActive,
	}
	want := "#3 Main $1,200.00\n  Name: Checking\n  Type: cash / checking\n  Status: active\n"
	if got := ManualAccount(a); got != want {
		t.Fatalf("ManualAccount = %q, want %q", got, want)
	}
}

func TestSyncedAccounts(t *testing.T) {
	imported := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	got := SyncedAccounts([]core.SyncedAccount{{
		ID:         4,
		Name:       "Visa",
		Balance:    decimal.RequireFromString("-20.5"),
		Currency:   "usd",
		Type:       "credit",
		Mask:       "1234",
		LastImport: &imported,
	}})
	for _, want := range []string{"Found 1 synced account:", "#4 Visa -$20.50", "Mask: ...1234", "Last import: 2025-02-01 09:30 UTC"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestSummary(t *testing.T) {
	s := core.Summary{
		StartDate: core.NewDate(2025, 1, 1),
		EndDate:   core.NewDate(2025, 1, 31),
		Currency:  "usd",
		Categories: []core.CategorySummary{
			{CategoryID: ptr(int64(1)), Budgeted: ptr(decimal.RequireFromString("300")), Activity: decimal.RequireFromString("54.2"), TransactionCount: 1},
			{CategoryID: ptr(int64(5)), Activity: decimal.RequireFromString("10"), TransactionCount: 2},
			{CategoryID: ptr(int64(3)), IsIncome: true, Activity: decimal.RequireFromString("2000"), TransactionCount: 1},
			{Activity: decimal.RequireFromString("5"), TransactionCount: 1},
		},
	}
	want := "Budget summary 2025-01-01 to 2025-01-31\n\n" +
		"Food: $54.20 of $300.00 budgeted (1 transaction)\n" +
		"Category #5: $10.00 (2 transactions)\n" +
		"Category #3: $2,000.00 (1 transaction)\n" +
		"Uncategorized: $5.00 (1 transaction)\n" +
		"\nTotal income: $2,000.00\n" +
		"Total spending: $69.20\n"
	if got := Summary(names, s); got != want {
		t.Fatalf("Summary:\n%s\nwant:\n%s", got, want)
	}
}

func TestRecurringItems(t *testing.T) {
	next := core.NewDate(2025, 2, 1)
	got := RecurringItems(names, []core.RecurringItem{{
		ID:         7,
		Payee:      "Landlord",
		Amount:     decimal.RequireFromString("950"),
		Currency:   "usd",
		Cadence:    "monthly",
		NextDate:   &next,
		CategoryID: ptr(int64(2)),
	}})
	want := "Found 1 recurring item:\n\n#7 Landlord $950.00\n  Cadence: monthly\n  Next: 2025-02-01\n  Category: Rent\n  Account: Cash\n"
	if got != want {
		t.Fatalf("RecurringItems = %q, want %q", got, want)
	}
}

func TestUser(t *testing.T) {
	got := User(core.User{ID: 1, Name: "Ada", Email: "ada@example.com", BudgetName: "Home", PrimaryCurrency: "eur"})
	want := "Ada (ada@example.com)\n  User ID: 1\n  Budget: Home\n  Primary currency: EUR\n"
	if got != want {
		t.Fatalf("User = %q, want %q", got, want)
	}
}

func TestConfirmationsAndWarnings(t *testing.T) {
	if got := Created("tag", 5); got != "Created tag #5." {
		t.Fatalf("Created = %q", got)
	}
	if got := Deleted("manual account", 3); got != "Deleted manual account #3." {
		t.Fatalf("Deleted = %q", got)
	}
	got := WithWarnings(Updated("category", 1), []string{"category names may be stale"})
	if got != "Updated category #1.\n\nWarning: category names may be stale" {
		t.Fatalf("WithWarnings = %q", got)
	}
	if WithWarnings("ok", nil) != "ok" {
		t.Fatalf("no warnings should leave text untouched")
	}
}

// failingSource makes the cache fail to initialize.
type failingSource struct{ *memory.Store }

func (failingSource) ListTags(context.Context) ([]core.Tag, error) {
	return nil, errors.New("unauthorized")
}

func TestRenderingThroughCache(t *testing.T) {
	store := memory.New(memory.DefaultSeed())
	ctx := context.Background()
	txs, err := store.ListTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}

	cache := refcache.New(store, log.Discard())
	if err := cache.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	got := Transactions(refcache.Fallback(cache), txs)
	for _, want := range []string{"Category: Food", "Account: Checking", "Category: Rent"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	degraded := refcache.New(failingSource{store}, log.Discard())
	if err := degraded.Initialize(ctx); err == nil {
		t.Fatalf("expected initialization failure")
	}
	got = Transactions(refcache.Fallback(degraded), txs)
	for _, want := range []string{"Category: Category #1", "Category: Category #2", "Account: Account #10"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in degraded output:\n%s", want, got)
		}
	}
}
