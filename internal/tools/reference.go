package tools

import (
	"context"
	"strings"

	"lunchtools/internal/core"
	"lunchtools/internal/format"
	"lunchtools/internal/refcache"
)

var (
	categoryIDParam = Param{Name: "category_id", Type: TypeInteger, Description: "Category id", Required: true}
	tagIDParam      = Param{Name: "tag_id", Type: TypeInteger, Description: "Tag id", Required: true}
	accountIDParam  = Param{Name: "manual_account_id", Type: TypeInteger, Description: "Manual account id", Required: true}
)

func (r *Registry) registerUser() {
	r.add(Tool{
		Name:        "get_user",
		Description: "Show the authenticated user and budget.",
		Handler: func(ctx context.Context, _ Args) (string, error) {
			u, err := r.backend.Me(ctx)
			if err != nil {
				return "", err
			}
			return format.User(u), nil
		},
	})
}

func (r *Registry) registerCategories() {
	r.add(Tool{
		Name:        "get_categories",
		Description: "List all categories and category groups.",
		Handler: func(ctx context.Context, _ Args) (string, error) {
			cats, err := r.backend.ListCategories(ctx)
			if err != nil {
				return "", err
			}
			return format.Categories(r.names, cats), nil
		},
	})
	r.add(Tool{
		Name:        "get_category",
		Description: "Show one category. For a group, its children are listed.",
		Params:      []Param{categoryIDParam},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("category_id")
			if rd.err != nil {
				return "", rd.err
			}
			c, err := r.backend.GetCategory(ctx, *id)
			if err != nil {
				return "", err
			}
			return format.Category(r.names, c), nil
		},
	})
	r.add(Tool{
		Name:        "create_category",
		Description: "Create a category or a category group.",
		Params: []Param{
			{Name: "name", Type: TypeString, Description: "Category name (max 100 characters)", Required: true},
			{Name: "description", Type: TypeString, Description: "Free-form description"},
			{Name: "is_income", Type: TypeBoolean, Description: "Treat transactions as income"},
			{Name: "exclude_from_budget", Type: TypeBoolean, Description: "Exclude from the budget"},
			{Name: "exclude_from_totals", Type: TypeBoolean, Description: "Exclude from totals"},
			{Name: "is_group", Type: TypeBoolean, Description: "Create a category group"},
			{Name: "group_id", Type: TypeInteger, Description: "Group to place the category in"},
		},
		Mutates: []refcache.Resource{refcache.Categories},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			in := core.CategoryInput{
				Name:              strings.TrimSpace(deref(rd.str("name"))),
				Description:       deref(rd.str("description")),
				IsIncome:          deref(rd.boolean("is_income")),
				ExcludeFromBudget: deref(rd.boolean("exclude_from_budget")),
				ExcludeFromTotals: deref(rd.boolean("exclude_from_totals")),
				IsGroup:           deref(rd.boolean("is_group")),
				GroupID:           rd.id("group_id"),
			}
			if rd.err != nil {
				return "", rd.err
			}
			id, err := r.backend.CreateCategory(ctx, in)
			if err != nil {
				return "", err
			}
			return format.Created("category", id), nil
		},
	})
	r.add(Tool{
		Name:        "update_category",
		Description: "Change fields of a category. Omitted fields are left as they are.",
		Params: []Param{
			categoryIDParam,
			{Name: "name", Type: TypeString, Description: "New name"},
			{Name: "description", Type: TypeString, Description: "New description"},
			{Name: "is_income", Type: TypeBoolean, Description: "Treat transactions as income"},
			{Name: "exclude_from_budget", Type: TypeBoolean, Description: "Exclude from the budget"},
			{Name: "exclude_from_totals", Type: TypeBoolean, Description: "Exclude from totals"},
			{Name: "archived", Type: TypeBoolean, Description: "Archive the category"},
			{Name: "group_id", Type: TypeInteger, Description: "Move into this group"},
		},
		Mutates: []refcache.Resource{refcache.Categories},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("category_id")
			u := core.CategoryUpdate{
				Name:              rd.str("name"),
				Description:       rd.str("description"),
				IsIncome:          rd.boolean("is_income"),
				ExcludeFromBudget: rd.boolean("exclude_from_budget"),
				ExcludeFromTotals: rd.boolean("exclude_from_totals"),
				Archived:          rd.boolean("archived"),
				GroupID:           rd.id("group_id"),
			}
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.UpdateCategory(ctx, *id, u); err != nil {
				return "", err
			}
			return format.Updated("category", *id), nil
		},
	})
	r.add(Tool{
		Name:        "delete_category",
		Description: "Delete a category. Fails while transactions or budgets still use it.",
		Params:      []Param{categoryIDParam},
		Mutates:     []refcache.Resource{refcache.Categories},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("category_id")
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.DeleteCategory(ctx, *id); err != nil {
				return "", err
			}
			return format.Deleted("category", *id), nil
		},
	})
}

func (r *Registry) registerTags() {
	r.add(Tool{
		Name:        "get_tags",
		Description: "List all tags.",
		Handler: func(ctx context.Context, _ Args) (string, error) {
			tags, err := r.backend.ListTags(ctx)
			if err != nil {
				return "", err
			}
			return format.Tags(tags), nil
		},
	})
	r.add(Tool{
		Name:        "create_tag",
		Description: "Create a tag.",
		Params: []Param{
			{Name: "name", Type: TypeString, Description: "Tag name", Required: true},
			{Name: "description", Type: TypeString, Description: "Free-form description"},
		},
		Mutates: []refcache.Resource{refcache.Tags},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			in := core.TagInput{
				Name:        strings.TrimSpace(deref(rd.str("name"))),
				Description: deref(rd.str("description")),
			}
			if rd.err != nil {
				return "", rd.err
			}
			id, err := r.backend.CreateTag(ctx, in)
			if err != nil {
				return "", err
			}
			return format.Created("tag", id), nil
		},
	})
	r.add(Tool{
		Name:        "update_tag",
		Description: "Rename, describe or archive a tag.",
		Params: []Param{
			tagIDParam,
			{Name: "name", Type: TypeString, Description: "New name"},
			{Name: "description", Type: TypeString, Description: "New description"},
			{Name: "archived", Type: TypeBoolean, Description: "Archive the tag"},
		},
		Mutates: []refcache.Resource{refcache.Tags},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("tag_id")
			u := core.TagUpdate{
				Name:        rd.str("name"),
				Description: rd.str("description"),
				Archived:    rd.boolean("archived"),
			}
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.UpdateTag(ctx, *id, u); err != nil {
				return "", err
			}
			return format.Updated("tag", *id), nil
		},
	})
	r.add(Tool{
		Name:        "delete_tag",
		Description: "Delete a tag and remove it from every transaction.",
		Params:      []Param{tagIDParam},
		Mutates:     []refcache.Resource{refcache.Tags},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("tag_id")
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.DeleteTag(ctx, *id); err != nil {
				return "", err
			}
			return format.Deleted("tag", *id), nil
		},
	})
}

func (r *Registry) registerAccounts() {
	r.add(Tool{
		Name:        "get_manual_accounts",
		Description: "List manually managed accounts with balances.",
		Handler: func(ctx context.Context, _ Args) (string, error) {
			accts, err := r.backend.ListManualAccounts(ctx)
			if err != nil {
				return "", err
			}
			return format.ManualAccounts(accts), nil
		},
	})
	r.add(Tool{
		Name:        "get_plaid_accounts",
		Description: "List accounts synced through Plaid.",
		Handler: func(ctx context.Context, _ Args) (string, error) {
			accts, err := r.backend.ListSyncedAccounts(ctx)
			if err != nil {
				return "", err
			}
			return format.SyncedAccounts(accts), nil
		},
	})
	r.add(Tool{
		Name:        "create_manual_account",
		Description: "Create a manually managed account.",
		Params: []Param{
			{Name: "name", Type: TypeString, Description: "Account name", Required: true},
			{Name: "type", Type: TypeString, Description: "Account type, e.g. cash, credit, investment", Required: true},
			{Name: "balance", Type: TypeNumber, Description: "Current balance", Required: true},
			{Name: "currency", Type: TypeString, Description: "ISO 4217 currency code", Required: true},
			{Name: "display_name", Type: TypeString, Description: "Name shown instead of the account name"},
			{Name: "subtype", Type: TypeString, Description: "Account subtype"},
			{Name: "institution_name", Type: TypeString, Description: "Bank or institution"},
		},
		Mutates: []refcache.Resource{refcache.ManualAccounts},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			in := core.ManualAccountInput{
				Name:            strings.TrimSpace(deref(rd.str("name"))),
				Type:            deref(rd.str("type")),
				Balance:         deref(rd.amount("balance")),
				Currency:        strings.ToLower(deref(rd.str("currency"))),
				DisplayName:     rd.str("display_name"),
				Subtype:         deref(rd.str("subtype")),
				InstitutionName: deref(rd.str("institution_name")),
			}
			if rd.err != nil {
				return "", rd.err
			}
			id, err := r.backend.CreateManualAccount(ctx, in)
			if err != nil {
				return "", err
			}
			return format.Created("manual account", id), nil
		},
	})
	r.add(Tool{
		Name:        "update_manual_account",
		Description: "Change fields of a manual account. Omitted fields are left as they are.",
		Params: []Param{
			accountIDParam,
			{Name: "name", Type: TypeString, Description: "New name"},
			{Name: "display_name", Type: TypeString, Description: "New display name"},
			{Name: "type", Type: TypeString, Description: "New type"},
			{Name: "subtype", Type: TypeString, Description: "New subtype"},
			{Name: "balance", Type: TypeNumber, Description: "New balance"},
			{Name: "currency", Type: TypeString, Description: "New currency"},
			{Name: "institution_name", Type: TypeString, Description: "New institution"},
			{Name: "status", Type: TypeString, Description: "Account status", Enum: []string{string(core.AccountActive), string(core.AccountClosed)}},
		},
		Mutates: []refcache.Resource{refcache.ManualAccounts},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("manual_account_id")
			u := core.ManualAccountUpdate{
				Name:            rd.str("name"),
				DisplayName:     rd.str("display_name"),
				Type:            rd.str("type"),
				Subtype:         rd.str("subtype"),
				Balance:         rd.amount("balance"),
				Currency:        rd.str("currency"),
				InstitutionName: rd.str("institution_name"),
			}
			if s := rd.str("status"); s != nil {
				status := core.AccountStatus(*s)
				u.Status = &status
			}
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.UpdateManualAccount(ctx, *id, u); err != nil {
				return "", err
			}
			return format.Updated("manual account", *id), nil
		},
	})
	r.add(Tool{
		Name:        "delete_manual_account",
		Description: "Delete a manual account. Its transactions become cash transactions.",
		Params:      []Param{accountIDParam},
		Mutates:     []refcache.Resource{refcache.ManualAccounts},
		Handler: func(ctx context.Context, a Args) (string, error) {
			rd := reader{args: a}
			id := rd.id("manual_account_id")
			if rd.err != nil {
				return "", rd.err
			}
			if err := r.backend.DeleteManualAccount(ctx, *id); err != nil {
				return "", err
			}
			return format.Deleted("manual account", *id), nil
		},
	})
}
