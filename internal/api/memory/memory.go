package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"lunchtools/internal/api"
	"lunchtools/internal/core"
)

// Ensure interface conformance
var _ api.Backend = (*Store)(nil)

// Seed is the initial content of a Store. It doubles as the format of the
// JSON seed file.
type Seed struct {
	User           core.User            `json:"user"`
	Categories     []core.Category      `json:"categories"`
	Tags           []core.Tag           `json:"tags"`
	ManualAccounts []core.ManualAccount `json:"manual_accounts"`
	SyncedAccounts []core.SyncedAccount `json:"synced_accounts"`
	Transactions   []core.Transaction   `json:"transactions"`
	Recurring      []core.RecurringItem `json:"recurring_items"`
}

// Store is an in-process backend. Records keep insertion order.
type Store struct {
	mu           sync.Mutex
	nextID       int64
	user         core.User
	categories   []core.Category
	tags         []core.Tag
	manual       []core.ManualAccount
	synced       []core.SyncedAccount
	transactions []core.Transaction
	recurring    []core.RecurringItem
}

func New(seed Seed) *Store {
	s := &Store{
		user:         seed.User,
		categories:   append([]core.Category(nil), seed.Categories...),
		tags:         append([]core.Tag(nil), seed.Tags...),
		manual:       append([]core.ManualAccount(nil), seed.ManualAccounts...),
		synced:       append([]core.SyncedAccount(nil), seed.SyncedAccounts...),
		transactions: append([]core.Transaction(nil), seed.Transactions...),
		recurring:    append([]core.RecurringItem(nil), seed.Recurring...),
	}
	for _, c := range s.categories {
		s.bump(c.ID)
	}
	for _, t := range s.tags {
		s.bump(t.ID)
	}
	for _, a := range s.manual {
		s.bump(a.ID)
	}
	for _, a := range s.synced {
		s.bump(a.ID)
	}
	for _, t := range s.transactions {
		s.bump(t.ID)
	}
	for _, r := range s.recurring {
		s.bump(r.ID)
	}
	return s
}

// NewFromFile loads a JSON seed. A missing file yields DefaultSeed.
func NewFromFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(DefaultSeed()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return New(seed), nil
}

// DefaultSeed is a small budget used when no seed file is present.
func DefaultSeed() Seed {
	food, rent, salary := int64(1), int64(2), int64(3)
	checking := int64(10)
	return Seed{
		User: core.User{ID: 1, Name: "Demo", Email: "demo@example.com", BudgetName: "Demo budget", PrimaryCurrency: "usd"},
		Categories: []core.Category{
			{ID: food, Name: "Food"},
			{ID: rent, Name: "Rent"},
			{ID: salary, Name: "Salary", IsIncome: true, ExcludeFromBudget: true},
		},
		Tags: []core.Tag{{ID: 20, Name: "work"}, {ID: 21, Name: "vacation"}},
		ManualAccounts: []core.ManualAccount{
			{ID: checking, Name: "Checking", Balance: decimal.NewFromInt(1200), Currency: "usd", Status: core.AccountActive, Type: "cash", Subtype: "checking"},
		},
		Transactions: []core.Transaction{
			{ID: 100, Date: core.NewDate(2025, 1, 3), Payee: "Grocer", Amount: decimal.RequireFromString("54.20"), Currency: "usd", CategoryID: &food, ManualAccountID: &checking, Status: core.TransactionCleared},
			{ID: 101, Date: core.NewDate(2025, 1, 1), Payee: "Landlord", Amount: decimal.NewFromInt(950), Currency: "usd", CategoryID: &rent, ManualAccountID: &checking, Status: core.TransactionCleared},
		},
	}
}

func (s *Store) bump(id int64) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

func (s *Store) newID() int64 {
	if s.nextID == 0 {
		s.nextID = 1
	}
	id := s.nextID
	s.nextID++
	return id
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, api.ErrNotFound)
}

// ListCategories returns the flattened category list.
func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...), nil
}

func (s *Store) ListTags(_ context.Context) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Tag(nil), s.tags...), nil
}

func (s *Store) ListManualAccounts(_ context.Context) ([]core.ManualAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ManualAccount(nil), s.manual...), nil
}

func (s *Store) ListSyncedAccounts(_ context.Context) ([]core.SyncedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SyncedAccount(nil), s.synced...), nil
}

// GetCategory returns a category; groups carry their children.
func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(id)
	if i < 0 {
		return core.Category{}, notFound("category", id)
	}
	c := s.categories[i]
	if c.IsGroup {
		c.Children = nil
		for _, child := range s.categories {
			if child.GroupID != nil && *child.GroupID == id {
				c.Children = append(c.Children, child)
			}
		}
	}
	return c, nil
}

func (s *Store) categoryIndex(id int64) int {
	for i, c := range s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) CreateCategory(_ context.Context, in core.CategoryInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.GroupID != nil {
		if i := s.categoryIndex(*in.GroupID); i < 0 || !s.categories[i].IsGroup {
			return 0, fmt.Errorf("group %d is not a category group", *in.GroupID)
		}
	}
	for _, c := range s.categories {
		if c.Name == in.Name {
			return 0, fmt.Errorf("a category named %q already exists", in.Name)
		}
	}
	c := core.Category{
		ID:                s.newID(),
		Name:              in.Name,
		Description:       in.Description,
		GroupID:           in.GroupID,
		IsIncome:          in.IsIncome,
		ExcludeFromBudget: in.ExcludeFromBudget,
		ExcludeFromTotals: in.ExcludeFromTotals,
		IsGroup:           in.IsGroup,
	}
	s.categories = append(s.categories, c)
	return c.ID, nil
}

func (s *Store) UpdateCategory(_ context.Context, id int64, u core.CategoryUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(id)
	if i < 0 {
		return notFound("category", id)
	}
	c := &s.categories[i]
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.IsIncome != nil {
		c.IsIncome = *u.IsIncome
	}
	if u.ExcludeFromBudget != nil {
		c.ExcludeFromBudget = *u.ExcludeFromBudget
	}
	if u.ExcludeFromTotals != nil {
		c.ExcludeFromTotals = *u.ExcludeFromTotals
	}
	if u.Archived != nil {
		c.Archived = *u.Archived
	}
	if u.GroupID != nil {
		gid := *u.GroupID
		c.GroupID = &gid
	}
	return nil
}

// DeleteCategory refuses to delete a category still referenced by
// transactions or recurring items.
func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(id)
	if i < 0 {
		return notFound("category", id)
	}
	used := 0
	for _, t := range s.transactions {
		if t.CategoryID != nil && *t.CategoryID == id {
			used++
		}
	}
	for _, r := range s.recurring {
		if r.CategoryID != nil && *r.CategoryID == id {
			used++
		}
	}
	if used > 0 {
		return fmt.Errorf("category %d is still used by %d records", id, used)
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	// Children of a deleted group become ungrouped.
	for j := range s.categories {
		if g := s.categories[j].GroupID; g != nil && *g == id {
			s.categories[j].GroupID = nil
		}
	}
	return nil
}

func (s *Store) tagIndex(id int64) int {
	for i, t := range s.tags {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) CreateTag(_ context.Context, in core.TagInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := core.Tag{ID: s.newID(), Name: in.Name, Description: in.Description}
	s.tags = append(s.tags, t)
	return t.ID, nil
}

func (s *Store) UpdateTag(_ context.Context, id int64, u core.TagUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.tagIndex(id)
	if i < 0 {
		return notFound("tag", id)
	}
	t := &s.tags[i]
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Archived != nil {
		t.Archived = *u.Archived
	}
	return nil
}

// DeleteTag removes the tag and detaches it from transactions.
func (s *Store) DeleteTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.tagIndex(id)
	if i < 0 {
		return notFound("tag", id)
	}
	s.tags = append(s.tags[:i], s.tags[i+1:]...)
	for j := range s.transactions {
		ids := s.transactions[j].TagIDs[:0:0]
		for _, tid := range s.transactions[j].TagIDs {
			if tid != id {
				ids = append(ids, tid)
			}
		}
		s.transactions[j].TagIDs = ids
	}
	return nil
}

func (s *Store) manualIndex(id int64) int {
	for i, a := range s.manual {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) CreateManualAccount(_ context.Context, in core.ManualAccountInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := core.ManualAccount{
		ID:              s.newID(),
		Name:            in.Name,
		DisplayName:     in.DisplayName,
		Balance:         in.Balance,
		Currency:        core.NewMoney(in.Balance, in.Currency).Currency,
		InstitutionName: in.InstitutionName,
		Status:          core.AccountActive,
		Type:            in.Type,
		Subtype:         in.Subtype,
	}
	s.manual = append(s.manual, a)
	return a.ID, nil
}

func (s *Store) UpdateManualAccount(_ context.Context, id int64, u core.ManualAccountUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.manualIndex(id)
	if i < 0 {
		return notFound("manual account", id)
	}
	a := &s.manual[i]
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.DisplayName != nil {
		name := *u.DisplayName
		a.DisplayName = &name
	}
	if u.Type != nil {
		a.Type = *u.Type
	}
	if u.Subtype != nil {
		a.Subtype = *u.Subtype
	}
	if u.Balance != nil {
		a.Balance = *u.Balance
	}
	if u.Currency != nil {
		a.Currency = core.NewMoney(a.Balance, *u.Currency).Currency
	}
	if u.InstitutionName != nil {
		a.InstitutionName = *u.InstitutionName
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	return nil
}

// DeleteManualAccount removes the account; its transactions become cash
// transactions.
func (s *Store) DeleteManualAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.manualIndex(id)
	if i < 0 {
		return notFound("manual account", id)
	}
	s.manual = append(s.manual[:i], s.manual[i+1:]...)
	for j := range s.transactions {
		if a := s.transactions[j].ManualAccountID; a != nil && *a == id {
			s.transactions[j].ManualAccountID = nil
		}
	}
	return nil
}

// ListTransactions returns matching transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if f.Matches(t) {
			t.TagIDs = append([]int64(nil), t.TagIDs...)
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) transactionIndex(id int64) int {
	for i, t := range s.transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.transactionIndex(id)
	if i < 0 {
		return core.Transaction{}, notFound("transaction", id)
	}
	t := s.transactions[i]
	t.TagIDs = append([]int64(nil), t.TagIDs...)
	return t, nil
}

func (s *Store) CreateTransaction(_ context.Context, in core.TransactionInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	currency := in.Currency
	if currency == "" {
		currency = s.user.PrimaryCurrency
	}
	status := in.Status
	if status == "" {
		status = core.TransactionUncleared
	}
	t := core.Transaction{
		ID:              s.newID(),
		Date:            in.Date,
		Payee:           in.Payee,
		Amount:          in.Amount,
		Currency:        core.NewMoney(in.Amount, currency).Currency,
		CategoryID:      in.CategoryID,
		ManualAccountID: in.ManualAccountID,
		TagIDs:          append([]int64(nil), in.TagIDs...),
		Notes:           in.Notes,
		Status:          status,
		ExternalID:      in.ExternalID,
	}
	s.transactions = append(s.transactions, t)
	return t.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id int64, u core.TransactionUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.transactionIndex(id)
	if i < 0 {
		return notFound("transaction", id)
	}
	t := &s.transactions[i]
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Payee != nil {
		t.Payee = *u.Payee
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Currency != nil {
		t.Currency = core.NewMoney(t.Amount, *u.Currency).Currency
	}
	if u.CategoryID != nil {
		cid := *u.CategoryID
		t.CategoryID = &cid
	}
	if u.ManualAccountID != nil {
		aid := *u.ManualAccountID
		t.ManualAccountID = &aid
	}
	if u.TagIDs != nil {
		t.TagIDs = append([]int64(nil), u.TagIDs...)
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.transactionIndex(id)
	if i < 0 {
		return notFound("transaction", id)
	}
	s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
	return nil
}

// GetSummary sums transaction amounts per category over [start, end].
// Categories appear in first-seen order; uncategorized activity last.
func (s *Store) GetSummary(_ context.Context, start, end core.Date) (core.Summary, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start.Time) {
		return core.Summary{}, core.ErrInvalidDateRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := core.Summary{StartDate: start, EndDate: end, Currency: s.user.PrimaryCurrency}
	index := map[int64]int{}
	var uncategorized *core.CategorySummary
	f := core.TransactionFilter{StartDate: start, EndDate: end}
	for _, t := range s.transactions {
		if !f.Matches(t) {
			continue
		}
		if t.CategoryID == nil {
			if uncategorized == nil {
				uncategorized = &core.CategorySummary{}
			}
			uncategorized.Activity = uncategorized.Activity.Add(t.Amount)
			uncategorized.TransactionCount++
			continue
		}
		i, ok := index[*t.CategoryID]
		if !ok {
			cid := *t.CategoryID
			cs := core.CategorySummary{CategoryID: &cid}
			if ci := s.categoryIndex(cid); ci >= 0 {
				cs.IsIncome = s.categories[ci].IsIncome
			}
			sum.Categories = append(sum.Categories, cs)
			i = len(sum.Categories) - 1
			index[cid] = i
		}
		sum.Categories[i].Activity = sum.Categories[i].Activity.Add(t.Amount)
		sum.Categories[i].TransactionCount++
	}
	if uncategorized != nil {
		sum.Categories = append(sum.Categories, *uncategorized)
	}
	return sum, nil
}

// ListRecurringItems returns items whose next occurrence falls in
// [start, end]; items without a next date are always included.
func (s *Store) ListRecurringItems(_ context.Context, start, end core.Date) ([]core.RecurringItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringItem
	for _, r := range s.recurring {
		if r.NextDate != nil {
			next, ok := projectNext(r, start)
			if !ok {
				continue
			}
			if !end.IsZero() && next.After(end.Time) {
				continue
			}
			if r.EndDate != nil && next.After(r.EndDate.Time) {
				continue
			}
			r.NextDate = &next
		}
		out = append(out, r)
	}
	return out, nil
}

// projectNext moves an item's next date forward to the first occurrence on
// or after start. Items with an unknown cadence keep their stored date, so
// an overdue item still shows up.
func projectNext(r core.RecurringItem, start core.Date) (core.Date, bool) {
	next := *r.NextDate
	if start.IsZero() || !next.Before(start.Time) {
		return next, true
	}
	c, err := core.CadenceFor(r.Cadence)
	if err != nil {
		return next, true
	}
	return core.NextOccurrence(c, next, start)
}

func (s *Store) Me(_ context.Context) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, nil
}
