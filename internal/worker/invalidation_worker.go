// Package worker applies invalidations announced by other instances to the
// local caches.
package worker

import (
	"context"
	"errors"
	"fmt"

	"lunchtools/internal/amqp"
	"lunchtools/internal/log"
	"lunchtools/internal/refcache"
	"lunchtools/internal/tools"
)

// Refresher is the part of the reference cache the worker drives.
type Refresher interface {
	Ready() bool
	Initialize(ctx context.Context) error
	Refresh(ctx context.Context, r refcache.Resource) error
}

// Purger drops cached transaction listings.
type Purger interface {
	PurgeListings() int
}

// Consumer delivers invalidation messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.InvalidationMessage) error) error
}

// InvalidationWorker keeps this instance's caches in step with changes made
// elsewhere.
type InvalidationWorker struct {
	refs     Refresher
	listings Purger
	origin   string
	logger   *log.Logger
}

// NewInvalidationWorker creates a worker. Messages stamped with origin are
// ignored; this instance already refreshed after its own writes.
func NewInvalidationWorker(refs Refresher, listings Purger, origin string, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &InvalidationWorker{
		refs:     refs,
		listings: listings,
		origin:   origin,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage applies one invalidation.
func (w *InvalidationWorker) HandleMessage(ctx context.Context, msg *amqp.InvalidationMessage) error {
	if msg.Origin != "" && msg.Origin == w.origin {
		return nil
	}

	w.logger.DebugContext(ctx, "Processing invalidation",
		log.FieldResource, msg.Resource,
		log.FieldOrigin, msg.Origin)

	// Every remote write can change what a listing shows.
	if w.listings != nil {
		w.listings.PurgeListings()
	}
	if msg.Resource == tools.TransactionsResource {
		return nil
	}

	res, err := refcache.ParseResource(msg.Resource)
	if err != nil {
		return err
	}
	if !w.refs.Ready() {
		if err := w.refs.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize after %s invalidation: %w", res, err)
		}
		return nil
	}
	if err := w.refs.Refresh(ctx, res); err != nil {
		return fmt.Errorf("refresh %s: %w", res, err)
	}

	w.logger.InfoContext(ctx, "Reference table refreshed from invalidation",
		log.FieldOperation, log.OpRefresh,
		log.FieldResource, string(res),
		log.FieldOrigin, msg.Origin)
	return nil
}

// Run consumes invalidations until ctx is cancelled.
func (w *InvalidationWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Invalidation worker started", "origin", w.origin)
	err := consumer.Consume(ctx, w.HandleMessage)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		w.logger.InfoContext(ctx, "Invalidation worker stopped")
		return nil
	}
	return err
}
