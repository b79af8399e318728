package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lunchtools/internal/amqp"
	"lunchtools/internal/api"
	"lunchtools/internal/backend"
	"lunchtools/internal/cache"
	"lunchtools/internal/config"
	"lunchtools/internal/core"
	"lunchtools/internal/log"
	"lunchtools/internal/refcache"
	"lunchtools/internal/storage"
	"lunchtools/internal/tools"
	"lunchtools/internal/worker"
)

const cacheCleanupInterval = time.Minute

// App is a fully wired process: backend, caches, optional journal and
// invalidation bus, and the tool registry on top.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Backend  api.Backend
	Refs     *refcache.Cache
	Listings *cache.LRUCache[[]core.Transaction]
	Journal  *storage.SQLiteRepository
	Bus      *amqp.Client
	Registry *tools.Registry

	origin  string
	caches  *cache.Manager
	closers []func() error
}

// NewApp wires an App from cfg. The reference cache is initialized here:
// a failure aborts when cfg.CacheStrict is set and otherwise leaves the
// app in degraded mode, where names are shown as ids until a later write
// or invalidation loads them.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, origin: InstanceID(cfg)}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a.Backend = res.Backend
	if res.Cleanup != nil {
		a.closers = append(a.closers, res.Cleanup)
	}

	a.Refs = refcache.New(a.Backend, logger)
	if err := a.Refs.Initialize(ctx); err != nil {
		if cfg.CacheStrict {
			log.NewStructuredLogger(logger.WithComponent(log.ComponentRefCache)).
				LogError(ctx, "Reference cache initialization failed", err, log.OpStartup, nil)
			a.Close()
			return nil, err
		}
		logger.WarnContext(ctx, "Starting without reference data, names will show as ids",
			log.FieldComponent, log.ComponentRefCache,
			log.FieldError, err.Error())
	}

	a.Listings = cache.NewLRUCache[[]core.Transaction](cfg.ResponseCacheSize, cfg.ResponseCacheTTL)
	a.caches = cache.NewManager(logger)
	a.caches.Register(a.Listings)

	a.Journal, err = InitJournal(ctx, logger, cfg.JournalDBPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Journal != nil {
		a.closers = append(a.closers, a.Journal.Close)
	}

	if cfg.AMQPURL != "" {
		bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, a.origin, logger)
		if err != nil {
			// The bus only speeds up convergence between instances.
			logger.WarnContext(ctx, "Invalidation bus unavailable, continuing without it",
				log.FieldComponent, log.ComponentAMQP,
				log.FieldError, err.Error())
		} else {
			a.Bus = bus
			a.closers = append(a.closers, bus.Close)
		}
	}

	deps := tools.Deps{
		Backend:  a.Backend,
		Cache:    a.Refs,
		Listings: a.Listings,
		Logger:   logger,
	}
	// Typed nil pointers must not leak into the interfaces.
	if a.Bus != nil {
		deps.Notifier = a.Bus
	}
	if a.Journal != nil {
		deps.Journal = a.Journal
	}
	a.Registry = tools.New(deps)
	return a, nil
}

// Origin identifies this process on the invalidation bus.
func (a *App) Origin() string {
	return a.origin
}

// Start launches the background work: listing cache cleanup and, when the
// bus is connected, the invalidation worker. It returns immediately.
func (a *App) Start(ctx context.Context) {
	a.caches.StartCleanup(cacheCleanupInterval)
	if a.Bus == nil {
		return
	}
	w := worker.NewInvalidationWorker(a.Refs, a.Registry, a.origin, a.Logger)
	go func() {
		if err := w.Run(ctx, a.Bus); err != nil {
			log.NewStructuredLogger(a.Logger.WithComponent(log.ComponentWorker)).
				LogError(ctx, "Invalidation worker stopped", err, log.OpInvalidate, nil)
		}
	}()
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close() error {
	if a.caches != nil {
		a.caches.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close app: %w", err)
	}
	return nil
}
