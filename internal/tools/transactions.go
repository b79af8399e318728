package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lunchtools/internal/core"
	"lunchtools/internal/format"
)

const defaultChangeLogLimit = 20

var statusValues = []string{
	string(core.TransactionCleared),
	string(core.TransactionUncleared),
	string(core.TransactionPending),
}

var transactionIDParam = Param{Name: "transaction_id", Type: TypeInteger, Description: "Transaction id", Required: true}

func (r *Registry) registerTransactions() {
	r.add(Tool{
		Name:        "get_transactions",
		Description: "List transactions, newest first, with names resolved.",
		Params: []Param{
			{Name: "start_date", Type: TypeString, Description: "First day, YYYY-MM-DD"},
			{Name: "end_date", Type: TypeString, Description: "Last day, YYYY-MM-DD"},
			{Name: "category_id", Type: TypeInteger, Description: "Only this category"},
			{Name: "tag_id", Type: TypeInteger, Description: "Only transactions with this tag"},
			{Name: "manual_account_id", Type: TypeInteger, Description: "Only this manual account"},
			{Name: "plaid_account_id", Type: TypeInteger, Description: "Only this synced account"},
			{Name: "status", Type: TypeString, Description: "Only this status", Enum: statusValues},
			{Name: "limit", Type: TypeInteger, Description: "Maximum number of transactions"},
			{Name: "offset", Type: TypeInteger, Description: "Number of transactions to skip"},
		},
		Handler: r.getTransactions,
	})
	r.add(Tool{
		Name:        "get_transaction",
		Description: "Show one transaction.",
		Params:      []Param{transactionIDParam},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("transaction_id")
			if rd.err != nil {
				return "", rd.err
			}
			t, err := r.backend.GetTransaction(ctx, *id)
			if err != nil {
				return "", err
			}
			return format.Transaction(r.names, t), nil
		},
	})
	r.add(Tool{
		Name:        "create_transaction",
		Description: "Record a transaction. Currency defaults to the budget's primary currency.",
		Params: []Param{
			{Name: "date", Type: TypeString, Description: "Date, YYYY-MM-DD", Required: true},
			{Name: "payee", Type: TypeString, Description: "Payee (max 140 characters)", Required: true},
			{Name: "amount", Type: TypeNumber, Description: "Amount; positive for expenses", Required: true},
			{Name: "currency", Type: TypeString, Description: "ISO 4217 currency code"},
			{Name: "category_id", Type: TypeInteger, Description: "Category id"},
			{Name: "manual_account_id", Type: TypeInteger, Description: "Manual account id; omit for cash"},
			{Name: "tag_ids", Type: TypeIDList, Description: "Tag ids"},
			{Name: "notes", Type: TypeString, Description: "Notes"},
			{Name: "status", Type: TypeString, Description: "Status", Enum: statusValues},
			{Name: "external_id", Type: TypeString, Description: "Your own reference"},
		},
		Writes: true,
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			in := core.TransactionInput{
				Date:            deref(rd.date("date")),
				Payee:           strings.TrimSpace(deref(rd.str("payee"))),
				Amount:          deref(rd.amount("amount")),
				Currency:        strings.ToLower(deref(rd.str("currency"))),
				CategoryID:      rd.id("category_id"),
				ManualAccountID: rd.id("manual_account_id"),
				TagIDs:          rd.ids("tag_ids"),
				Notes:           deref(rd.str("notes")),
				Status:          core.TransactionStatus(deref(rd.str("status"))),
				ExternalID:      deref(rd.str("external_id")),
			}
			if rd.err != nil {
				return "", rd.err
			}
			id, err := r.backend.CreateTransaction(ctx, in)
			if err != nil {
				return "", err
			}
			return format.Created("transaction", id), nil
		},
	})
	r.add(Tool{
		Name:        "update_transaction",
		Description: "Change fields of a transaction. Omitted fields are left as they are.",
		Params: []Param{
			transactionIDParam,
			{Name: "date", Type: TypeString, Description: "New date, YYYY-MM-DD"},
			{Name: "payee", Type: TypeString, Description: "New payee"},
			{Name: "amount", Type: TypeNumber, Description: "New amount"},
			{Name: "currency", Type: TypeString, Description: "New currency"},
			{Name: "category_id", Type: TypeInteger, Description: "New category id"},
			{Name: "manual_account_id", Type: TypeInteger, Description: "New manual account id"},
			{Name: "tag_ids", Type: TypeIDList, Description: "Replacement tag ids"},
			{Name: "notes", Type: TypeString, Description: "New notes"},
			{Name: "status", Type: TypeString, Description: "New status", Enum: statusValues},
		},
		Writes: true,
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("transaction_id")
			u := core.TransactionUpdate{
				Date:            rd.date("date"),
				Payee:           rd.str("payee"),
				Amount:          rd.amount("amount"),
				Currency:        rd.str("currency"),
				CategoryID:      rd.id("category_id"),
				ManualAccountID: rd.id("manual_account_id"),
				TagIDs:          rd.ids("tag_ids"),
				Notes:           rd.str("notes"),
			}
			if s := rd.str("status"); s != nil {
				status := core.TransactionStatus(*s)
				u.Status = &status
			}
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.UpdateTransaction(ctx, *id, u); err != nil {
				return "", err
			}
			return format.Updated("transaction", *id), nil
		},
	})
	r.add(Tool{
		Name:        "delete_transaction",
		Description: "Delete a transaction.",
		Params:      []Param{transactionIDParam},
		Writes:      true,
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("transaction_id")
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.DeleteTransaction(ctx, *id); err != nil {
				return "", err
			}
			return format.Deleted("transaction", *id), nil
		},
	})
}

func (r *Registry) getTransactions(ctx context.Context, a Args) (string, error) {
	rd := reader{args: a}
	f := core.TransactionFilter{
		StartDate:       deref(rd.date("start_date")),
		EndDate:         deref(rd.date("end_date")),
		CategoryID:      rd.id("category_id"),
		TagID:           rd.id("tag_id"),
		ManualAccountID: rd.id("manual_account_id"),
		PlaidAccountID:  rd.id("plaid_account_id"),
		Status:          core.TransactionStatus(deref(rd.str("status"))),
		Limit:           rd.int("limit"),
		Offset:          rd.int("offset"),
	}
	if rd.err != nil {
		return "", rd.err
	}
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	key := f.Key()
	var gen uint64
	if r.listings != nil {
		if txs, ok := r.listings.Get(key); ok {
			return format.Transactions(r.names, txs), nil
		}
		gen = r.listingGeneration()
	}
	txs, err := r.backend.ListTransactions(ctx, f)
	if err != nil {
		return "", err
	}
	if r.listings != nil && !r.storeListing(key, gen, txs) {
		r.logger.DebugContext(ctx, "Listing fetched across a purge, not cached", "key", key)
	}
	return format.Transactions(r.names, txs), nil
}

func (r *Registry) registerReports() {
	r.add(Tool{
		Name:        "get_budget_summary",
		Description: "Summarize budgeted and actual amounts per category for a period.",
		Params: []Param{
			{Name: "start_date", Type: TypeString, Description: "First day, YYYY-MM-DD", Required: true},
			{Name: "end_date", Type: TypeString, Description: "Last day, YYYY-MM-DD", Required: true},
		},
		Handler: func(ctx context.Context, a Args) (string, error) {
			start, end, err := r.period(a)
			if err != nil {
				return "", err
			}
			s, err := r.backend.GetSummary(ctx, start, end)
			if err != nil {
				return "", err
			}
			return format.Summary(r.names, s), nil
		},
	})
	r.add(Tool{
		Name:        "get_recurring_items",
		Description: "List recurring items expected in a period. Defaults to the current month.",
		Params: []Param{
			{Name: "start_date", Type: TypeString, Description: "First day, YYYY-MM-DD"},
			{Name: "end_date", Type: TypeString, Description: "Last day, YYYY-MM-DD"},
		},
		Handler: func(ctx context.Context, a Args) (string, error) {
			start, end, err := r.period(a)
			if err != nil {
				return "", err
			}
			items, err := r.backend.ListRecurringItems(ctx, start, end)
			if err != nil {
				return "", err
			}
			return format.RecurringItems(r.names, items), nil
		},
	})
	r.add(Tool{
		Name:        "get_change_log",
		Description: "Show the most recent changes made through these tools.",
		Params: []Param{
			{Name: "limit", Type: TypeInteger, Description: "Number of entries, default 20"},
		},
		Handler: r.getChangeLog,
	})
}

// period reads start_date and end_date. Missing bounds default to the
// current calendar month.
func (r *Registry) period(a Args) (core.Date, core.Date, error) {
	rd := reader{args: a}
	start := rd.date("start_date")
	end := rd.date("end_date")
	if rd.err != nil {
		return core.Date{}, core.Date{}, rd.err
	}
	now := r.now().UTC()
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	if start == nil {
		start = &first
	}
	if end == nil {
		last := core.Date{Time: first.AddDate(0, 1, -1)}
		end = &last
	}
	if end.Before(start.Time) {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: %v", ErrInvalidArgument, core.ErrInvalidDateRange)
	}
	return *start, *end, nil
}

func (r *Registry) getChangeLog(ctx context.Context, a Args) (string, error) {
	if r.journal == nil {
		return "The change journal is not enabled.", nil
	}
	rd := reader{args: a}
	limit := rd.int("limit")
	if rd.err != nil {
		return "", rd.err
	}
	if limit <= 0 {
		limit = defaultChangeLogLimit
	}
	entries, err := r.journal.Recent(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No changes recorded.", nil
	}
	var b strings.Builder
	b.WriteString("Recent changes:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s: %s", e.CreatedAt.UTC().Format(time.RFC3339), e.Tool, e.Result)
		if e.Warning != "" {
			b.WriteString(" (warning: " + e.Warning + ")")
		}
		b.WriteString(" [#" + strconv.FormatInt(e.ID, 10) + "]\n")
	}
	return b.String(), nil
}
