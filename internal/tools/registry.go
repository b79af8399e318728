// Package tools implements the callable tools: argument checking, the
// API call, rendering, and the bookkeeping that follows a mutation.
//
// After a mutating tool succeeds the registry refreshes the reference
// tables that tool touches, purges cached transaction listings, announces
// the change to other instances and records it in the change journal.
// None of these follow-ups can fail the call: the write already happened
// remotely, so problems are reported as warnings next to the result.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lunchtools/internal/api"
	"lunchtools/internal/cache"
	"lunchtools/internal/core"
	"lunchtools/internal/format"
	"lunchtools/internal/log"
	"lunchtools/internal/refcache"
)

// ErrUnknownTool is returned by Call for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Handler runs a tool and returns its text output.
type Handler func(ctx context.Context, args Args) (string, error)

// Tool is one registered tool.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	// Mutates lists the reference tables the tool changes.
	Mutates []refcache.Resource
	// Writes is set on every tool that changes remote data.
	Writes  bool
	Handler Handler
}

// Notifier announces that a resource changed. Resource names are the
// reference table names plus "transactions".
type Notifier interface {
	Publish(ctx context.Context, resource string) error
}

// TransactionsResource names transaction data in notifications and the
// journal. It has no reference table.
const TransactionsResource = "transactions"

// Journal persists mutating calls.
type Journal interface {
	Record(ctx context.Context, e core.ChangeEntry) error
	Recent(ctx context.Context, limit int) ([]core.ChangeEntry, error)
}

// Result is the outcome of a successful call.
type Result struct {
	Text     string
	Warnings []string
}

// String renders the text followed by any warnings.
func (r Result) String() string {
	return format.WithWarnings(r.Text, r.Warnings)
}

// Deps wires a Registry. Backend and Cache are required.
type Deps struct {
	Backend  api.Backend
	Cache    *refcache.Cache
	Listings cache.Cache[[]core.Transaction]
	Notifier Notifier
	Journal  Journal
	Logger   *log.Logger
	Now      func() time.Time
}

// Registry holds the tools and the collaborators their handlers use.
type Registry struct {
	backend  api.Backend
	refs     *refcache.Cache
	names    refcache.Resolver
	listings cache.Cache[[]core.Transaction]
	notifier Notifier
	journal  Journal
	logger   *log.Logger
	calls    *log.StructuredLogger
	now      func() time.Time

	// listingsGen counts purges. A listing fetched across a purge is not
	// stored, since it may predate the write that caused the purge.
	listingsMu  sync.Mutex
	listingsGen uint64

	tools map[string]Tool
}

// New builds a registry with every tool registered.
func New(d Deps) *Registry {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentTools)
	now := d.Now
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		backend:  d.Backend,
		refs:     d.Cache,
		names:    refcache.Fallback(d.Cache),
		listings: d.Listings,
		notifier: d.Notifier,
		journal:  d.Journal,
		logger:   logger,
		calls:    log.NewStructuredLogger(logger),
		now:      now,
		tools:    make(map[string]Tool),
	}
	r.registerUser()
	r.registerCategories()
	r.registerTags()
	r.registerAccounts()
	r.registerTransactions()
	r.registerReports()
	return r
}

func (r *Registry) add(t Tool) {
	if _, dup := r.tools[t.Name]; dup {
		panic("tools: duplicate tool " + t.Name)
	}
	if len(t.Mutates) > 0 {
		t.Writes = true
	}
	r.tools[t.Name] = t
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Call runs a tool. The error is non-nil only when the call itself
// failed; post-mutation problems come back as Result.Warnings.
func (r *Registry) Call(ctx context.Context, name string, args Args) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownTool, name)
	}
	if args == nil {
		args = Args{}
	}

	start := time.Now()
	text, err := r.invoke(ctx, t, args)
	r.calls.LogToolCall(ctx, t.Name, time.Since(start).Milliseconds(), err)
	if err != nil {
		return Result{}, err
	}

	res := Result{Text: text}
	if t.Writes {
		res.Warnings = r.afterWrite(ctx, t, args, text)
	}
	return res, nil
}

func (r *Registry) invoke(ctx context.Context, t Tool, args Args) (string, error) {
	if err := check(t.Params, args); err != nil {
		return "", err
	}
	return t.Handler(ctx, args)
}

// afterWrite runs the follow-ups of a successful mutation and returns the
// warnings worth showing to the caller.
func (r *Registry) afterWrite(ctx context.Context, t Tool, args Args, text string) []string {
	var warnings []string

	if n := r.PurgeListings(); n > 0 {
		r.logger.DebugContext(ctx, "Transaction listings purged",
			log.FieldTool, t.Name,
			log.FieldCount, n)
	}

	warnings = append(warnings, r.refresh(ctx, t)...)

	if r.notifier != nil {
		for _, res := range t.resources() {
			if err := r.notifier.Publish(ctx, res); err != nil {
				r.logger.WarnContext(ctx, "Failed to publish invalidation",
					log.FieldOperation, log.OpInvalidate,
					log.FieldResource, res,
					log.FieldError, err.Error())
			}
		}
	}

	if r.journal != nil {
		r.record(ctx, t, args, text, warnings)
	}
	return warnings
}

// PurgeListings drops every cached transaction listing and invalidates
// fetches still in flight.
func (r *Registry) PurgeListings() int {
	if r.listings == nil {
		return 0
	}
	r.listingsMu.Lock()
	defer r.listingsMu.Unlock()
	r.listingsGen++
	return r.listings.Purge()
}

func (r *Registry) listingGeneration() uint64 {
	r.listingsMu.Lock()
	defer r.listingsMu.Unlock()
	return r.listingsGen
}

// storeListing caches txs unless a purge happened since gen was read.
func (r *Registry) storeListing(key string, gen uint64, txs []core.Transaction) bool {
	r.listingsMu.Lock()
	defer r.listingsMu.Unlock()
	if gen != r.listingsGen {
		return false
	}
	r.listings.Set(key, txs)
	return true
}

// resources names what a write changed.
func (t Tool) resources() []string {
	if len(t.Mutates) == 0 {
		return []string{TransactionsResource}
	}
	out := make([]string, len(t.Mutates))
	for i, res := range t.Mutates {
		out[i] = string(res)
	}
	return out
}

// refresh reloads the tables t mutates. A cache that never initialized is
// given another full attempt instead, after any write, which is how
// degraded mode recovers.
func (r *Registry) refresh(ctx context.Context, t Tool) []string {
	if r.refs == nil {
		return nil
	}
	if !r.refs.Ready() {
		if err := r.refs.Initialize(ctx); err != nil {
			r.logger.WarnContext(ctx, "Reference cache still unavailable",
				log.FieldTool, t.Name,
				log.FieldError, err.Error())
			return []string{"reference data is unavailable, names are shown as ids"}
		}
		return nil
	}

	var warnings []string
	for _, res := range t.Mutates {
		if err := r.refs.Refresh(ctx, res); err != nil {
			r.logger.WarnContext(ctx, "Reference refresh failed after mutation",
				log.FieldOperation, log.OpRefresh,
				log.FieldTool, t.Name,
				log.FieldResource, string(res),
				log.FieldError, err.Error())
			warnings = append(warnings, fmt.Sprintf("the change succeeded but cached %s could not be refreshed (%v); names may be stale", res, err))
		}
	}
	return warnings
}

func (r *Registry) record(ctx context.Context, t Tool, args Args, text string, warnings []string) {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	entry := core.ChangeEntry{
		Tool:      t.Name,
		Resources: t.resources(),
		Arguments: string(raw),
		Result:    text,
		CreatedAt: r.now().UTC(),
	}
	if len(warnings) > 0 {
		entry.Warning = warnings[0]
	}
	if err := r.journal.Record(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "Failed to record change",
			log.FieldOperation, log.OpRecord,
			log.FieldTool, t.Name,
			log.FieldError, err.Error())
	}
}
