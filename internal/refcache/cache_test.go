package refcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"lunchtools/internal/core"
	"lunchtools/internal/log"
)

func ptr[T any](v T) *T { return &v }

// stubSource serves whatever the test put in it and counts calls.
type stubSource struct {
	mu     sync.Mutex
	cats   []core.Category
	tags   []core.Tag
	manual []core.ManualAccount
	synced []core.SyncedAccount
	fail   map[Resource]error
	calls  map[Resource]int
}

func newStub() *stubSource {
	return &stubSource{fail: map[Resource]error{}, calls: map[Resource]int{}}
}

func (s *stubSource) record(r Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[r]++
	return s.fail[r]
}

func (s *stubSource) ListCategories(context.Context) ([]core.Category, error) {
	if err := s.record(Categories); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *stubSource) ListTags(context.Context) ([]core.Tag, error) {
	if err := s.record(Tags); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Tag(nil), s.tags...), nil
}

func (s *stubSource) ListManualAccounts(context.Context) ([]core.ManualAccount, error) {
	if err := s.record(ManualAccounts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ManualAccount(nil), s.manual...), nil
}

func (s *stubSource) ListSyncedAccounts(context.Context) ([]core.SyncedAccount, error) {
	if err := s.record(SyncedAccounts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SyncedAccount(nil), s.synced...), nil
}

func (s *stubSource) set(fn func(s *stubSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newReadyCache(t *testing.T, src *stubSource) *Cache {
	t.Helper()
	c := New(src, quietLogger())
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return c
}

func TestCategoryName(t *testing.T) {
	src := newStub()
	src.cats = []core.Category{{ID: 1, Name: "Food"}, {ID: 2, Name: "Rent"}}
	c := newReadyCache(t, src)

	cases := []struct {
		id   *int64
		want string
	}{
		{ptr(int64(1)), "Food"},
		{ptr(int64(2)), "Rent"},
		{ptr(int64(5)), "Category #5"},
		{nil, "Uncategorized"},
	}
	for _, tc := range cases {
		got, err := c.CategoryName(tc.id)
		if err != nil {
			t.Fatalf("CategoryName: %v", err)
		}
		if got != tc.want {
			t.Errorf("CategoryName = %q, want %q", got, tc.want)
		}
	}
}

func TestTagNames(t *testing.T) {
	src := newStub()
	src.tags = []core.Tag{{ID: 10, Name: "work"}}
	c := newReadyCache(t, src)

	got, err := c.TagNames([]int64{10, 20, 10})
	if err != nil {
		t.Fatalf("TagNames: %v", err)
	}
	want := []string{"work", "Tag #20", "work"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("TagNames = %v, want %v", got, want)
	}
	if got, _ := c.TagNames(nil); len(got) != 0 {
		t.Fatalf("TagNames(nil) = %v", got)
	}
}

func TestAccountName(t *testing.T) {
	src := newStub()
	src.manual = []core.ManualAccount{{ID: 3, Name: "Checking"}}
	src.synced = []core.SyncedAccount{{ID: 4, Name: "Visa", DisplayName: ptr("Card")}}
	c := newReadyCache(t, src)

	cases := []struct {
		name           string
		manual, synced *int64
		want           string
	}{
		{"cash", nil, nil, "Cash"},
		{"manual", ptr(int64(3)), nil, "Checking"},
		{"synced display name", nil, ptr(int64(4)), "Card"},
		{"manual wins", ptr(int64(3)), ptr(int64(4)), "Checking"},
		{"unknown manual", ptr(int64(99)), nil, "Account #99"},
		{"unknown synced", nil, ptr(int64(98)), "Account #98"},
		{"unknown manual falls to synced", ptr(int64(99)), ptr(int64(4)), "Card"},
	}
	for _, tc := range cases {
		got, err := c.AccountName(tc.manual, tc.synced)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: AccountName = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRefreshPicksUpDisplayName(t *testing.T) {
	src := newStub()
	src.manual = []core.ManualAccount{{ID: 3, Name: "Checking"}}
	c := newReadyCache(t, src)

	if got, _ := c.AccountName(ptr(int64(3)), nil); got != "Checking" {
		t.Fatalf("before refresh = %q", got)
	}
	src.set(func(s *stubSource) { s.manual[0].DisplayName = ptr("Main") })
	if got, _ := c.AccountName(ptr(int64(3)), nil); got != "Checking" {
		t.Fatalf("cache must not change before refresh, got %q", got)
	}
	if err := c.Refresh(context.Background(), ManualAccounts); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got, _ := c.AccountName(ptr(int64(3)), nil); got != "Main" {
		t.Fatalf("after refresh = %q", got)
	}
}

func TestRefreshIsScopedToOneTable(t *testing.T) {
	src := newStub()
	src.cats = []core.Category{{ID: 1, Name: "Food"}}
	src.tags = []core.Tag{{ID: 10, Name: "work"}}
	src.manual = []core.ManualAccount{{ID: 3, Name: "Checking"}}
	src.synced = []core.SyncedAccount{{ID: 4, Name: "Visa"}}
	c := newReadyCache(t, src)

	src.set(func(s *stubSource) {
		s.cats = []core.Category{{ID: 1, Name: "Groceries"}}
		s.tags = []core.Tag{{ID: 10, Name: "office"}}
		s.manual = nil
		s.synced = nil
	})
	if err := c.Refresh(context.Background(), Tags); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got, _ := c.TagNames([]int64{10}); got[0] != "office" {
		t.Fatalf("tags not refreshed: %v", got)
	}
	if got, _ := c.CategoryName(ptr(int64(1))); got != "Food" {
		t.Fatalf("categories changed: %q", got)
	}
	if got, _ := c.AccountName(ptr(int64(3)), nil); got != "Checking" {
		t.Fatalf("manual accounts changed: %q", got)
	}
	if got, _ := c.AccountName(nil, ptr(int64(4))); got != "Visa" {
		t.Fatalf("synced accounts changed: %q", got)
	}
	if src.calls[Categories] != 1 || src.calls[ManualAccounts] != 1 || src.calls[SyncedAccounts] != 1 {
		t.Fatalf("unexpected fetches: %v", src.calls)
	}
}

func TestRefreshReplacesWholesale(t *testing.T) {
	src := newStub()
	src.cats = []core.Category{{ID: 1, Name: "Food"}, {ID: 2, Name: "Rent"}}
	c := newReadyCache(t, src)

	src.set(func(s *stubSource) { s.cats = []core.Category{{ID: 2, Name: "Housing"}} })
	if err := c.Refresh(context.Background(), Categories); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got, _ := c.CategoryName(ptr(int64(1))); got != "Category #1" {
		t.Fatalf("deleted category must be gone, got %q", got)
	}
	sizes, _ := c.Sizes()
	if sizes[Categories] != 1 {
		t.Fatalf("sizes = %v", sizes)
	}
}

func TestRefreshFailureKeepsStaleTable(t *testing.T) {
	src := newStub()
	src.tags = []core.Tag{{ID: 10, Name: "work"}}
	c := newReadyCache(t, src)

	boom := errors.New("connection reset")
	src.set(func(s *stubSource) {
		s.tags = []core.Tag{{ID: 10, Name: "office"}}
		s.fail[Tags] = boom
	})
	err := c.Refresh(context.Background(), Tags)
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if !strings.Contains(err.Error(), "tags") {
		t.Fatalf("error should name the resource: %v", err)
	}
	if got, _ := c.TagNames([]int64{10}); got[0] != "work" {
		t.Fatalf("stale table should remain, got %v", got)
	}
	if src.calls[Tags] != 2 {
		t.Fatalf("refresh must not retry, calls = %d", src.calls[Tags])
	}
}

func TestRefreshUnknownResource(t *testing.T) {
	c := newReadyCache(t, newStub())
	if err := c.Refresh(context.Background(), Resource("budgets")); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}

	cold := New(newStub(), quietLogger())
	if err := cold.Refresh(context.Background(), Resource("budgets")); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("uninitialized cache: expected ErrUnknownResource, got %v", err)
	}
	if err := cold.Refresh(context.Background(), Tags); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("uninitialized cache: expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeFailurePublishesNothing(t *testing.T) {
	src := newStub()
	src.cats = []core.Category{{ID: 1, Name: "Food"}}
	src.manual = []core.ManualAccount{{ID: 3, Name: "Checking"}}
	src.fail[Tags] = errors.New("401 unauthorized")

	c := New(src, quietLogger())
	err := c.Initialize(context.Background())
	if err == nil {
		t.Fatalf("expected initialization failure")
	}
	if !strings.Contains(err.Error(), "tags") {
		t.Fatalf("error should name the failing resource: %v", err)
	}
	if c.Ready() {
		t.Fatalf("cache must stay uninitialized")
	}
	if _, err := c.CategoryName(ptr(int64(1))); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("CategoryName should fail loudly, got %v", err)
	}
	if _, err := c.TagNames([]int64{1}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("TagNames should fail loudly, got %v", err)
	}
	if _, err := c.AccountName(ptr(int64(3)), nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("AccountName should fail loudly, got %v", err)
	}
	if _, err := c.Sizes(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Sizes should fail, got %v", err)
	}
	if err := c.Refresh(context.Background(), Categories); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Refresh should fail, got %v", err)
	}

	// The null sentinels do not depend on cache contents.
	if got, err := c.CategoryName(nil); err != nil || got != "Uncategorized" {
		t.Fatalf("CategoryName(nil) = %q, %v", got, err)
	}
	if got, err := c.AccountName(nil, nil); err != nil || got != "Cash" {
		t.Fatalf("AccountName(nil, nil) = %q, %v", got, err)
	}

	// A later successful attempt publishes all four tables.
	src.set(func(s *stubSource) { delete(s.fail, Tags) })
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("retry Initialize: %v", err)
	}
	if got, _ := c.CategoryName(ptr(int64(1))); got != "Food" {
		t.Fatalf("CategoryName = %q", got)
	}
}

func TestInitializeWithEmptyTables(t *testing.T) {
	c := newReadyCache(t, newStub())
	sizes, err := c.Sizes()
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	for _, r := range AllResources() {
		if sizes[r] != 0 {
			t.Fatalf("%s size = %d", r, sizes[r])
		}
	}
	if got, _ := c.CategoryName(ptr(int64(1))); got != "Category #1" {
		t.Fatalf("CategoryName = %q", got)
	}
}

func TestConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	const n = 50
	gen := func(label string) []core.Tag {
		tags := make([]core.Tag, n)
		for i := range tags {
			tags[i] = core.Tag{ID: int64(i), Name: fmt.Sprintf("%s-%d", label, i)}
		}
		return tags
	}
	src := newStub()
	src.tags = gen("old")
	c := newReadyCache(t, src)

	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 8)
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				names, err := c.TagNames(ids)
				if err != nil {
					errs <- err.Error()
					return
				}
				prefix := strings.SplitN(names[0], "-", 2)[0]
				for _, name := range names {
					if !strings.HasPrefix(name, prefix+"-") {
						errs <- fmt.Sprintf("mixed snapshot: %v", names)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		label := "old"
		if i%2 == 0 {
			label = "new"
		}
		next := gen(label)
		src.set(func(s *stubSource) { s.tags = next })
		if err := c.Refresh(ctx, Tags); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

func TestParseResource(t *testing.T) {
	cases := map[string]Resource{
		"categories":     Categories,
		"Tags":           Tags,
		"manualAccounts": ManualAccounts,
		"plaid_accounts": SyncedAccounts,
		"syncedAccounts": SyncedAccounts,
	}
	for in, want := range cases {
		got, err := ParseResource(in)
		if err != nil || got != want {
			t.Errorf("ParseResource(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseResource("budgets"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
}
