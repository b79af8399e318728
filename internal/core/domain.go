package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
)

const (
	TransactionCleared   TransactionStatus = "cleared"
	TransactionUncleared TransactionStatus = "uncleared"
	TransactionPending   TransactionStatus = "pending"
)

type (
	AccountStatus     string
	TransactionStatus string

	Date struct {
		time.Time
	}

	// Category is a budget category or a category group.
	Category struct {
		ID                int64      `json:"id"`
		Name              string     `json:"name"`
		Description       string     `json:"description,omitempty"`
		GroupID           *int64     `json:"group_id"`
		IsIncome          bool       `json:"is_income"`
		ExcludeFromBudget bool       `json:"exclude_from_budget"`
		ExcludeFromTotals bool       `json:"exclude_from_totals"`
		Archived          bool       `json:"archived"`
		IsGroup           bool       `json:"is_group"`
		Children          []Category `json:"children,omitempty"`
	}

	Tag struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Archived    bool   `json:"archived"`
	}

	// ManualAccount is an account maintained by hand by the user.
	ManualAccount struct {
		ID              int64           `json:"id"`
		Name            string          `json:"name"`
		DisplayName     *string         `json:"display_name"`
		Balance         decimal.Decimal `json:"balance"`
		Currency        string          `json:"currency"`
		InstitutionName string          `json:"institution_name"`
		Status          AccountStatus   `json:"status"`
		Type            string          `json:"type"`
		Subtype         string          `json:"subtype"`
	}

	// SyncedAccount is an account imported through Plaid. It is read-only.
	SyncedAccount struct {
		ID              int64           `json:"id"`
		Name            string          `json:"name"`
		DisplayName     *string         `json:"display_name"`
		Balance         decimal.Decimal `json:"balance"`
		Currency        string          `json:"currency"`
		InstitutionName string          `json:"institution_name"`
		Status          AccountStatus   `json:"status"`
		Type            string          `json:"type"`
		Subtype         string          `json:"subtype"`
		PlaidItemID     string          `json:"plaid_item_id,omitempty"`
		Mask            string          `json:"mask,omitempty"`
		LastImport      *time.Time      `json:"last_import"`
	}

	Transaction struct {
		ID              int64             `json:"id"`
		Date            Date              `json:"date"`
		Payee           string            `json:"payee"`
		Amount          decimal.Decimal   `json:"amount"`
		Currency        string            `json:"currency"`
		CategoryID      *int64            `json:"category_id"`
		ManualAccountID *int64            `json:"manual_account_id"`
		PlaidAccountID  *int64            `json:"plaid_account_id"`
		TagIDs          []int64           `json:"tag_ids"`
		Notes           string            `json:"notes,omitempty"`
		Status          TransactionStatus `json:"status"`
		IsPending       bool              `json:"is_pending"`
		RecurringID     *int64            `json:"recurring_id"`
		ExternalID      string            `json:"external_id,omitempty"`
		OriginalName    string            `json:"original_name,omitempty"`
	}

	RecurringItem struct {
		ID              int64           `json:"id"`
		Description     string          `json:"description"`
		Payee           string          `json:"payee"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		Cadence         string          `json:"cadence"`
		NextDate        *Date           `json:"next_date"`
		StartDate       *Date           `json:"start_date"`
		EndDate         *Date           `json:"end_date"`
		CategoryID      *int64          `json:"category_id"`
		ManualAccountID *int64          `json:"manual_account_id"`
		PlaidAccountID  *int64          `json:"plaid_account_id"`
		Status          string          `json:"status"`
	}

	// Summary aggregates budget activity per category over a date range.
	Summary struct {
		StartDate  Date              `json:"start_date"`
		EndDate    Date              `json:"end_date"`
		Currency   string            `json:"currency"`
		Categories []CategorySummary `json:"categories"`
	}

	CategorySummary struct {
		CategoryID       *int64           `json:"category_id"`
		IsIncome         bool             `json:"is_income"`
		Budgeted         *decimal.Decimal `json:"budgeted"`
		Activity         decimal.Decimal  `json:"activity"`
		TransactionCount int              `json:"transaction_count"`
	}

	User struct {
		ID              int64  `json:"user_id"`
		Name            string `json:"user_name"`
		Email           string `json:"user_email"`
		AccountID       int64  `json:"account_id"`
		BudgetName      string `json:"budget_name"`
		PrimaryCurrency string `json:"primary_currency"`
		APIKeyLabel     string `json:"api_key_label,omitempty"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyPayee       = errors.New("empty payee")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidDateRange = errors.New("end date must not be before start date")
	ErrNothingToUpdate  = errors.New("no fields to update")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	// Some endpoints return full timestamps where a date is expected.
	raw := *s
	if len(raw) > len(DateLayout) {
		raw = raw[:len(DateLayout)]
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Label returns the display name when set, the canonical name otherwise.
func (a ManualAccount) Label() string {
	if a.DisplayName != nil && strings.TrimSpace(*a.DisplayName) != "" {
		return *a.DisplayName
	}
	return a.Name
}

// Money returns the balance paired with the account currency.
func (a ManualAccount) Money() Money {
	return NewMoney(a.Balance, a.Currency)
}

// Label returns the display name when set, the canonical name otherwise.
func (a SyncedAccount) Label() string {
	if a.DisplayName != nil && strings.TrimSpace(*a.DisplayName) != "" {
		return *a.DisplayName
	}
	return a.Name
}

func (a SyncedAccount) Money() Money {
	return NewMoney(a.Balance, a.Currency)
}

func (t Transaction) Money() Money {
	return NewMoney(t.Amount, t.Currency)
}

func (r RecurringItem) Money() Money {
	return NewMoney(r.Amount, r.Currency)
}

func (s AccountStatus) Validate() error {
	switch s {
	case AccountActive, AccountClosed:
		return nil
	}
	return fmt.Errorf("%w %q: must be %q or %q", ErrInvalidStatus, s, AccountActive, AccountClosed)
}

func (s TransactionStatus) Validate() error {
	switch s {
	case TransactionCleared, TransactionUncleared, TransactionPending:
		return nil
	}
	return fmt.Errorf("%w %q: must be one of %q, %q, %q", ErrInvalidStatus, s,
		TransactionCleared, TransactionUncleared, TransactionPending)
}

// ValidateCurrency checks for a three letter ISO 4217 code.
func ValidateCurrency(code string) error {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return fmt.Errorf("%w %q: expected a 3-letter ISO code", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("%w %q: expected a 3-letter ISO code", ErrInvalidCurrency, code)
		}
	}
	return nil
}
