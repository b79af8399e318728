package lunchmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"lunchtools/internal/core"
)

type createdResponse struct {
	ID int64 `json:"id"`
}

func (c *Client) create(ctx context.Context, path string, body any) (int64, error) {
	var out createdResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("POST %s: response carries no id", path)
	}
	return out.ID, nil
}

func itemPath(collection string, id int64) string {
	return "/" + collection + "/" + strconv.FormatInt(id, 10)
}

func dateRange(start, end core.Date) url.Values {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start_date", start.String())
	}
	if !end.IsZero() {
		q.Set("end_date", end.String())
	}
	return q
}

func (c *Client) Me(ctx context.Context) (core.User, error) {
	var u core.User
	err := c.do(ctx, http.MethodGet, "/me", nil, nil, &u)
	return u, err
}

// ListCategories fetches the flattened category list, groups included.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out struct {
		Categories []core.Category `json:"categories"`
	}
	q := url.Values{"format": {"flattened"}}
	if err := c.do(ctx, http.MethodGet, "/categories", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

func (c *Client) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var cat core.Category
	err := c.do(ctx, http.MethodGet, itemPath("categories", id), nil, nil, &cat)
	return cat, err
}

func (c *Client) CreateCategory(ctx context.Context, in core.CategoryInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return c.create(ctx, "/categories", in)
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, u core.CategoryUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, itemPath("categories", id), nil, u, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("categories", id), nil, nil, nil)
}

func (c *Client) ListTags(ctx context.Context) ([]core.Tag, error) {
	var out struct {
		Tags []core.Tag `json:"tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tags, nil
}

func (c *Client) CreateTag(ctx context.Context, in core.TagInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return c.create(ctx, "/tags", in)
}

func (c *Client) UpdateTag(ctx context.Context, id int64, u core.TagUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, itemPath("tags", id), nil, u, nil)
}

func (c *Client) DeleteTag(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("tags", id), nil, nil, nil)
}

func (c *Client) ListManualAccounts(ctx context.Context) ([]core.ManualAccount, error) {
	var out struct {
		Accounts []core.ManualAccount `json:"manual_accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/manual_accounts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *Client) CreateManualAccount(ctx context.Context, in core.ManualAccountInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return c.create(ctx, "/manual_accounts", in)
}

func (c *Client) UpdateManualAccount(ctx context.Context, id int64, u core.ManualAccountUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, itemPath("manual_accounts", id), nil, u, nil)
}

func (c *Client) DeleteManualAccount(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("manual_accounts", id), nil, nil, nil)
}

func (c *Client) ListSyncedAccounts(ctx context.Context) ([]core.SyncedAccount, error) {
	var out struct {
		Accounts []core.SyncedAccount `json:"plaid_accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/plaid_accounts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *Client) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	q := dateRange(f.StartDate, f.EndDate)
	setID := func(key string, id *int64) {
		if id != nil {
			q.Set(key, strconv.FormatInt(*id, 10))
		}
	}
	setID("category_id", f.CategoryID)
	setID("tag_id", f.TagID)
	setID("manual_account_id", f.ManualAccountID)
	setID("plaid_account_id", f.PlaidAccountID)
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var out struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/transactions", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

func (c *Client) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	err := c.do(ctx, http.MethodGet, itemPath("transactions", id), nil, nil, &t)
	return t, err
}

func (c *Client) CreateTransaction(ctx context.Context, in core.TransactionInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return c.create(ctx, "/transactions", in)
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, u core.TransactionUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, itemPath("transactions", id), nil, u, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("transactions", id), nil, nil, nil)
}

func (c *Client) GetSummary(ctx context.Context, start, end core.Date) (core.Summary, error) {
	var s core.Summary
	err := c.do(ctx, http.MethodGet, "/summary", dateRange(start, end), nil, &s)
	return s, err
}

func (c *Client) ListRecurringItems(ctx context.Context, start, end core.Date) ([]core.RecurringItem, error) {
	var out struct {
		Items []core.RecurringItem `json:"recurring_items"`
	}
	if err := c.do(ctx, http.MethodGet, "/recurring_items", dateRange(start, end), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
