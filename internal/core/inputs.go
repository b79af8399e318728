package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Write payloads. Create inputs carry required fields by value, update
// inputs use pointers so that only the provided fields are sent.
type (
	CategoryInput struct {
		Name              string `json:"name"`
		Description       string `json:"description,omitempty"`
		IsIncome          bool   `json:"is_income"`
		ExcludeFromBudget bool   `json:"exclude_from_budget"`
		ExcludeFromTotals bool   `json:"exclude_from_totals"`
		IsGroup           bool   `json:"is_group"`
		GroupID           *int64 `json:"group_id,omitempty"`
	}

	CategoryUpdate struct {
		Name              *string `json:"name,omitempty"`
		Description       *string `json:"description,omitempty"`
		IsIncome          *bool   `json:"is_income,omitempty"`
		ExcludeFromBudget *bool   `json:"exclude_from_budget,omitempty"`
		ExcludeFromTotals *bool   `json:"exclude_from_totals,omitempty"`
		Archived          *bool   `json:"archived,omitempty"`
		GroupID           *int64  `json:"group_id,omitempty"`
	}

	TagInput struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}

	TagUpdate struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
		Archived    *bool   `json:"archived,omitempty"`
	}

	ManualAccountInput struct {
		Name            string          `json:"name"`
		DisplayName     *string         `json:"display_name,omitempty"`
		Type            string          `json:"type"`
		Subtype         string          `json:"subtype,omitempty"`
		Balance         decimal.Decimal `json:"balance"`
		Currency        string          `json:"currency"`
		InstitutionName string          `json:"institution_name,omitempty"`
	}

	ManualAccountUpdate struct {
		Name            *string          `json:"name,omitempty"`
		DisplayName     *string          `json:"display_name,omitempty"`
		Type            *string          `json:"type,omitempty"`
		Subtype         *string          `json:"subtype,omitempty"`
		Balance         *decimal.Decimal `json:"balance,omitempty"`
		Currency        *string          `json:"currency,omitempty"`
		InstitutionName *string          `json:"institution_name,omitempty"`
		Status          *AccountStatus   `json:"status,omitempty"`
	}

	TransactionInput struct {
		Date            Date              `json:"date"`
		Payee           string            `json:"payee"`
		Amount          decimal.Decimal   `json:"amount"`
		Currency        string            `json:"currency,omitempty"`
		CategoryID      *int64            `json:"category_id,omitempty"`
		ManualAccountID *int64            `json:"manual_account_id,omitempty"`
		TagIDs          []int64           `json:"tag_ids,omitempty"`
		Notes           string            `json:"notes,omitempty"`
		Status          TransactionStatus `json:"status,omitempty"`
		ExternalID      string            `json:"external_id,omitempty"`
	}

	TransactionUpdate struct {
		Date            *Date              `json:"date,omitempty"`
		Payee           *string            `json:"payee,omitempty"`
		Amount          *decimal.Decimal   `json:"amount,omitempty"`
		Currency        *string            `json:"currency,omitempty"`
		CategoryID      *int64             `json:"category_id,omitempty"`
		ManualAccountID *int64             `json:"manual_account_id,omitempty"`
		TagIDs          []int64            `json:"tag_ids,omitempty"`
		Notes           *string            `json:"notes,omitempty"`
		Status          *TransactionStatus `json:"status,omitempty"`
	}

	// TransactionFilter narrows a transaction listing. Zero values mean
	// "no constraint".
	TransactionFilter struct {
		StartDate       Date
		EndDate         Date
		CategoryID      *int64
		TagID           *int64
		ManualAccountID *int64
		PlaidAccountID  *int64
		Status          TransactionStatus
		Limit           int
		Offset          int
	}
)

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if len(in.Name) > 100 {
		return fmt.Errorf("category name too long (max 100 characters)")
	}
	if in.IsGroup && in.GroupID != nil {
		return fmt.Errorf("a category group cannot belong to another group")
	}
	return nil
}

func (u CategoryUpdate) Validate() error {
	if u == (CategoryUpdate{}) {
		return ErrNothingToUpdate
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (in TagInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (u TagUpdate) Validate() error {
	if u == (TagUpdate{}) {
		return ErrNothingToUpdate
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (in ManualAccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(in.Type) == "" {
		return fmt.Errorf("account type is required")
	}
	return ValidateCurrency(in.Currency)
}

func (u ManualAccountUpdate) Validate() error {
	if u == (ManualAccountUpdate{}) {
		return ErrNothingToUpdate
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrEmptyName
	}
	if u.Currency != nil {
		if err := ValidateCurrency(*u.Currency); err != nil {
			return err
		}
	}
	if u.Status != nil {
		return u.Status.Validate()
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Payee) == "" {
		return ErrEmptyPayee
	}
	if len(in.Payee) > 140 {
		return fmt.Errorf("payee too long (max 140 characters)")
	}
	if in.Currency != "" {
		if err := ValidateCurrency(in.Currency); err != nil {
			return err
		}
	}
	if in.Status != "" {
		return in.Status.Validate()
	}
	return nil
}

func (u TransactionUpdate) Validate() error {
	if u.Date == nil && u.Payee == nil && u.Amount == nil && u.Currency == nil &&
		u.CategoryID == nil && u.ManualAccountID == nil && u.TagIDs == nil &&
		u.Notes == nil && u.Status == nil {
		return ErrNothingToUpdate
	}
	if u.Payee != nil && strings.TrimSpace(*u.Payee) == "" {
		return ErrEmptyPayee
	}
	if u.Currency != nil {
		if err := ValidateCurrency(*u.Currency); err != nil {
			return err
		}
	}
	if u.Status != nil {
		return u.Status.Validate()
	}
	return nil
}

func (f TransactionFilter) Validate() error {
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate.Time) {
		return ErrInvalidDateRange
	}
	if f.Status != "" {
		if err := f.Status.Validate(); err != nil {
			return err
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	return nil
}

// Key is a stable identity of the filter, used to cache listings.
func (f TransactionFilter) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "start=%s;end=%s;status=%s;limit=%d;offset=%d",
		f.StartDate, f.EndDate, f.Status, f.Limit, f.Offset)
	for _, p := range []struct {
		name string
		id   *int64
	}{
		{"category", f.CategoryID},
		{"tag", f.TagID},
		{"manual", f.ManualAccountID},
		{"plaid", f.PlaidAccountID},
	} {
		if p.id != nil {
			fmt.Fprintf(&b, ";%s=%d", p.name, *p.id)
		}
	}
	return b.String()
}

// Matches reports whether t satisfies the filter. Limit and offset are
// applied by the caller.
func (f TransactionFilter) Matches(t Transaction) bool {
	if !f.StartDate.IsZero() && t.Date.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsZero() && t.Date.After(f.EndDate.Time) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
		return false
	}
	if f.ManualAccountID != nil && (t.ManualAccountID == nil || *t.ManualAccountID != *f.ManualAccountID) {
		return false
	}
	if f.PlaidAccountID != nil && (t.PlaidAccountID == nil || *t.PlaidAccountID != *f.PlaidAccountID) {
		return false
	}
	if f.TagID != nil {
		found := false
		for _, id := range t.TagIDs {
			if id == *f.TagID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
