package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 3 || d.Day() != 7 {
		t.Fatalf("got %v", d)
	}
	if _, err := ParseDate("07/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateJSON(t *testing.T) {
	var tx struct {
		Date Date  `json:"date"`
		Next *Date `json:"next"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-12-31T10:00:00Z","next":null}`), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Date.String() != "2024-12-31" {
		t.Fatalf("date = %q", tx.Date.String())
	}
	if tx.Next != nil {
		t.Fatalf("next should be nil")
	}
	b, err := json.Marshal(tx.Date)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-12-31"` {
		t.Fatalf("marshal = %s", b)
	}
}

func TestAccountLabel(t *testing.T) {
	a := ManualAccount{Name: "Checking"}
	if a.Label() != "Checking" {
		t.Fatalf("label = %q", a.Label())
	}
	a.DisplayName = ptr("  ")
	if a.Label() != "Checking" {
		t.Fatalf("blank display name should fall back, got %q", a.Label())
	}
	a.DisplayName = ptr("Main")
	if a.Label() != "Main" {
		t.Fatalf("label = %q", a.Label())
	}

	s := SyncedAccount{Name: "Visa", DisplayName: ptr("Card")}
	if s.Label() != "Card" {
		t.Fatalf("label = %q", s.Label())
	}
}

func TestInputValidate(t *testing.T) {
	cases := []struct {
		name string
		in   interface{ Validate() error }
		ok   bool
	}{
		{"category ok", CategoryInput{Name: "Food"}, true},
		{"category empty", CategoryInput{Name: " "}, false},
		{"category group in group", CategoryInput{Name: "G", IsGroup: true, GroupID: ptr(int64(1))}, false},
		{"category update empty", CategoryUpdate{}, false},
		{"category update name", CategoryUpdate{Name: ptr("x")}, true},
		{"tag ok", TagInput{Name: "work"}, true},
		{"tag empty", TagInput{}, false},
		{"tag update empty", TagUpdate{}, false},
		{"account ok", ManualAccountInput{Name: "Cash box", Type: "cash", Currency: "usd"}, true},
		{"account bad currency", ManualAccountInput{Name: "Cash box", Type: "cash", Currency: "dollars"}, false},
		{"account no type", ManualAccountInput{Name: "Cash box", Currency: "usd"}, false},
		{"account update status", ManualAccountUpdate{Status: ptr(AccountStatus("frozen"))}, false},
		{"account update ok", ManualAccountUpdate{Status: ptr(AccountClosed)}, true},
		{"tx ok", TransactionInput{Date: NewDate(2025, 1, 1), Payee: "Shop"}, true},
		{"tx no date", TransactionInput{Payee: "Shop"}, false},
		{"tx no payee", TransactionInput{Date: NewDate(2025, 1, 1)}, false},
		{"tx bad status", TransactionInput{Date: NewDate(2025, 1, 1), Payee: "Shop", Status: "done"}, false},
		{"tx update empty", TransactionUpdate{}, false},
		{"tx update tags", TransactionUpdate{TagIDs: []int64{1}}, true},
		{"filter range", TransactionFilter{StartDate: NewDate(2025, 2, 1), EndDate: NewDate(2025, 1, 1)}, false},
		{"filter ok", TransactionFilter{StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 2, 1)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTransactionFilterMatches(t *testing.T) {
	tx := Transaction{
		Date:       NewDate(2025, 1, 15),
		CategoryID: ptr(int64(1)),
		TagIDs:     []int64{10, 11},
		Status:     TransactionCleared,
	}
	cases := []struct {
		name string
		f    TransactionFilter
		want bool
	}{
		{"empty", TransactionFilter{}, true},
		{"in range", TransactionFilter{StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 31)}, true},
		{"before range", TransactionFilter{StartDate: NewDate(2025, 2, 1)}, false},
		{"category", TransactionFilter{CategoryID: ptr(int64(1))}, true},
		{"other category", TransactionFilter{CategoryID: ptr(int64(2))}, false},
		{"tag", TransactionFilter{TagID: ptr(int64(11))}, true},
		{"missing tag", TransactionFilter{TagID: ptr(int64(12))}, false},
		{"account", TransactionFilter{ManualAccountID: ptr(int64(3))}, false},
		{"status", TransactionFilter{Status: TransactionUncleared}, false},
	}
	for _, tc := range cases {
		if got := tc.f.Matches(tx); got != tc.want {
			t.Errorf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTransactionFilterKey(t *testing.T) {
	a := TransactionFilter{CategoryID: ptr(int64(1))}
	b := TransactionFilter{TagID: ptr(int64(1))}
	if a.Key() == b.Key() {
		t.Fatalf("distinct filters share a key: %s", a.Key())
	}
	if a.Key() != (TransactionFilter{CategoryID: ptr(int64(1))}).Key() {
		t.Fatalf("equal filters must share a key")
	}
}
