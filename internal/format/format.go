// Package format renders API records as the plain text returned by tools.
//
// Every function is pure: the output depends only on the record and on the
// names the Resolver hands back. Placeholders such as "Category #42" are
// printed as-is.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"lunchtools/internal/core"
	"lunchtools/internal/refcache"
)

func id(n int64) string {
	return "#" + strconv.FormatInt(n, 10)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}

// line appends "  Label: value" when value is not blank.
func line(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", label, value)
}

func block(items []string) string {
	return strings.Join(items, "\n")
}

// Transaction renders a single transaction with its names resolved.
func Transaction(r refcache.Resolver, t core.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s\n", id(t.ID), t.Date, t.Payee, t.Money())
	line(&b, "Category", r.CategoryName(t.CategoryID))
	line(&b, "Account", r.AccountName(t.ManualAccountID, t.PlaidAccountID))
	if len(t.TagIDs) > 0 {
		line(&b, "Tags", strings.Join(r.TagNames(t.TagIDs), ", "))
	}
	status := string(t.Status)
	if t.IsPending && t.Status != core.TransactionPending {
		status += " (pending)"
	}
	line(&b, "Status", status)
	line(&b, "Notes", t.Notes)
	if t.OriginalName != "" && t.OriginalName != t.Payee {
		line(&b, "Original name", t.OriginalName)
	}
	line(&b, "External ID", t.ExternalID)
	return b.String()
}

// Transactions renders a listing.
func Transactions(r refcache.Resolver, txs []core.Transaction) string {
	if len(txs) == 0 {
		return "No transactions found."
	}
	items := make([]string, len(txs))
	for i, t := range txs {
		items[i] = Transaction(r, t)
	}
	return "Found " + plural(len(txs), "transaction", "transactions") + ":\n\n" + block(items)
}

// Category renders a single category. Group membership is resolved
// through r so that a group missing from the cache shows its placeholder.
func Category(r refcache.Resolver, c core.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s%s\n", id(c.ID), c.Name, categoryFlags(c))
	line(&b, "Description", c.Description)
	if c.GroupID != nil {
		line(&b, "Group", r.CategoryName(c.GroupID))
	}
	if c.IsGroup && len(c.Children) > 0 {
		names := make([]string, len(c.Children))
		for i, ch := range c.Children {
			names[i] = ch.Name
		}
		line(&b, "Children", strings.Join(names, ", "))
	}
	return b.String()
}

func categoryFlags(c core.Category) string {
	var flags []string
	if c.IsGroup {
		flags = append(flags, "group")
	}
	if c.IsIncome {
		flags = append(flags, "income")
	}
	if c.ExcludeFromBudget {
		flags = append(flags, "excluded from budget")
	}
	if c.ExcludeFromTotals {
		flags = append(flags, "excluded from totals")
	}
	if c.Archived {
		flags = append(flags, "archived")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ", ") + "]"
}

// Categories renders a category listing.
func Categories(r refcache.Resolver, cats []core.Category) string {
	if len(cats) == 0 {
		return "No categories found."
	}
	items := make([]string, len(cats))
	for i, c := range cats {
		items[i] = Category(r, c)
	}
	return "Found " + plural(len(cats), "category", "categories") + ":\n\n" + block(items)
}

// Tags renders a tag listing.
func Tags(tags []core.Tag) string {
	if len(tags) == 0 {
		return "No tags found."
	}
	var b strings.Builder
	b.WriteString("Found " + plural(len(tags), "tag", "tags") + ":\n\n")
	for _, t := range tags {
		fmt.Fprintf(&b, "%s %s", id(t.ID), t.Name)
		if t.Archived {
			b.WriteString(" [archived]")
		}
		if t.Description != "" {
			b.WriteString(" - " + t.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ManualAccount renders one manually managed account.
func ManualAccount(a core.ManualAccount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", id(a.ID), a.Label(), a.Money())
	if a.Label() != a.Name {
		line(&b, "Name", a.Name)
	}
	line(&b, "Type", accountType(a.Type, a.Subtype))
	line(&b, "Institution", a.InstitutionName)
	line(&b, "Status", string(a.Status))
	return b.String()
}

// ManualAccounts renders a manual account listing.
func ManualAccounts(accts []core.ManualAccount) string {
	if len(accts) == 0 {
		return "No manual accounts found."
	}
	items := make([]string, len(accts))
	for i, a := range accts {
		items[i] = ManualAccount(a)
	}
	return "Found " + plural(len(accts), "manual account", "manual accounts") + ":\n\n" + block(items)
}

// SyncedAccounts renders a synced (Plaid) account listing.
func SyncedAccounts(accts []core.SyncedAccount) string {
	if len(accts) == 0 {
		return "No synced accounts found."
	}
	items := make([]string, len(accts))
	for i, a := range accts {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s %s\n", id(a.ID), a.Label(), a.Money())
		if a.Label() != a.Name {
			line(&b, "Name", a.Name)
		}
		line(&b, "Type", accountType(a.Type, a.Subtype))
		line(&b, "Institution", a.InstitutionName)
		if a.Mask != "" {
			line(&b, "Mask", "..."+a.Mask)
		}
		line(&b, "Status", string(a.Status))
		if a.LastImport != nil {
			line(&b, "Last import", a.LastImport.UTC().Format("2006-01-02 15:04 MST"))
		}
		items[i] = b.String()
	}
	return "Found " + plural(len(accts), "synced account", "synced accounts") + ":\n\n" + block(items)
}

func accountType(typ, subtype string) string {
	if subtype == "" {
		return typ
	}
	return typ + " / " + subtype
}

// Summary renders budget activity per category followed by totals.
// Income categories are summed separately from spending.
func Summary(r refcache.Resolver, s core.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget summary %s to %s\n\n", s.StartDate, s.EndDate)
	if len(s.Categories) == 0 {
		b.WriteString("No activity in this period.\n")
		return b.String()
	}
	var income, spent decimal.Decimal
	for _, c := range s.Categories {
		activity := core.NewMoney(c.Activity, s.Currency)
		fmt.Fprintf(&b, "%s: %s", r.CategoryName(c.CategoryID), activity)
		if c.Budgeted != nil {
			fmt.Fprintf(&b, " of %s budgeted", core.NewMoney(*c.Budgeted, s.Currency))
		}
		fmt.Fprintf(&b, " (%s)\n", plural(c.TransactionCount, "transaction", "transactions"))
		if c.IsIncome {
			income = income.Add(c.Activity)
		} else {
			spent = spent.Add(c.Activity)
		}
	}
	fmt.Fprintf(&b, "\nTotal income: %s\n", core.NewMoney(income, s.Currency))
	fmt.Fprintf(&b, "Total spending: %s\n", core.NewMoney(spent, s.Currency))
	return b.String()
}

// RecurringItems renders recurring expectations.
func RecurringItems(r refcache.Resolver, items []core.RecurringItem) string {
	if len(items) == 0 {
		return "No recurring items found."
	}
	out := make([]string, len(items))
	for i, it := range items {
		var b strings.Builder
		name := it.Payee
		if name == "" {
			name = it.Description
		}
		fmt.Fprintf(&b, "%s %s %s\n", id(it.ID), name, it.Money())
		if it.Payee != "" && it.Description != "" && it.Description != it.Payee {
			line(&b, "Description", it.Description)
		}
		line(&b, "Cadence", it.Cadence)
		if it.NextDate != nil {
			line(&b, "Next", it.NextDate.String())
		}
		line(&b, "Category", r.CategoryName(it.CategoryID))
		line(&b, "Account", r.AccountName(it.ManualAccountID, it.PlaidAccountID))
		line(&b, "Status", it.Status)
		out[i] = b.String()
	}
	return "Found " + plural(len(items), "recurring item", "recurring items") + ":\n\n" + block(out)
}

// User renders the authenticated user.
func User(u core.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", u.Name, u.Email)
	line(&b, "User ID", strconv.FormatInt(u.ID, 10))
	line(&b, "Budget", u.BudgetName)
	line(&b, "Primary currency", strings.ToUpper(u.PrimaryCurrency))
	line(&b, "API key", u.APIKeyLabel)
	return b.String()
}

// Created confirms a create call. what is a singular noun such as "tag".
func Created(what string, newID int64) string {
	return fmt.Sprintf("Created %s %s.", what, id(newID))
}

// Updated confirms an update call.
func Updated(what string, itemID int64) string {
	return fmt.Sprintf("Updated %s %s.", what, id(itemID))
}

// Deleted confirms a delete call.
func Deleted(what string, itemID int64) string {
	return fmt.Sprintf("Deleted %s %s.", what, id(itemID))
}

// WithWarnings appends non-fatal warnings to a tool result.
func WithWarnings(text string, warnings []string) string {
	if len(warnings) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	for _, w := range warnings {
		b.WriteString("\nWarning: " + w)
	}
	return b.String()
}
