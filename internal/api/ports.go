package api

import (
	"context"
	"errors"

	"lunchtools/internal/core"
)

// ErrNotFound is returned (possibly wrapped) when a record does not exist.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	// ReferenceReader fetches complete snapshots of the reference resources.
	// Each call returns the whole remote set, in the order the remote sends it.
	ReferenceReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		ListTags(ctx context.Context) ([]core.Tag, error)
		ListManualAccounts(ctx context.Context) ([]core.ManualAccount, error)
		ListSyncedAccounts(ctx context.Context) ([]core.SyncedAccount, error)
	}

	CategoryReader interface {
		GetCategory(ctx context.Context, id int64) (core.Category, error)
	}

	CategoryWriter interface {
		CreateCategory(ctx context.Context, in core.CategoryInput) (int64, error)
		UpdateCategory(ctx context.Context, id int64, u core.CategoryUpdate) error
		DeleteCategory(ctx context.Context, id int64) error
	}

	TagWriter interface {
		CreateTag(ctx context.Context, in core.TagInput) (int64, error)
		UpdateTag(ctx context.Context, id int64, u core.TagUpdate) error
		DeleteTag(ctx context.Context, id int64) error
	}

	ManualAccountWriter interface {
		CreateManualAccount(ctx context.Context, in core.ManualAccountInput) (int64, error)
		UpdateManualAccount(ctx context.Context, id int64, u core.ManualAccountUpdate) error
		DeleteManualAccount(ctx context.Context, id int64) error
	}

	TransactionReader interface {
		ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, in core.TransactionInput) (int64, error)
		UpdateTransaction(ctx context.Context, id int64, u core.TransactionUpdate) error
		DeleteTransaction(ctx context.Context, id int64) error
	}

	// SummaryReader returns budget activity per category between two dates.
	SummaryReader interface {
		GetSummary(ctx context.Context, start, end core.Date) (core.Summary, error)
	}

	RecurringReader interface {
		ListRecurringItems(ctx context.Context, start, end core.Date) ([]core.RecurringItem, error)
	}

	UserReader interface {
		Me(ctx context.Context) (core.User, error)
	}

	// Backend is everything a data backend provides.
	Backend interface {
		ReferenceReader
		CategoryReader
		CategoryWriter
		TagWriter
		ManualAccountWriter
		TransactionReader
		TransactionWriter
		SummaryReader
		RecurringReader
		UserReader
	}
)
