package backend

import (
	"context"
	"fmt"

	"lunchtools/internal/api/lunchmoney"
	"lunchtools/internal/api/memory"
	"lunchtools/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case LunchMoneyBackend:
		return f.createLunchMoneyBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createLunchMoneyBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := lunchmoney.New(config.APIBaseURL, config.APIToken, config.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Lunch Money client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Lunch Money backend",
		log.FieldBackend, config.Type.String(),
		"base_url", config.APIBaseURL,
		"timeout", config.HTTPTimeout.String())

	return &BackendResult{Backend: client}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.SeedPath == "" {
		f.logger.InfoContext(ctx, "Initialized memory backend with sample data",
			log.FieldBackend, config.Type.String())
		return &BackendResult{Backend: memory.New(memory.DefaultSeed())}, nil
	}

	store, err := memory.NewFromFile(config.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory seed: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend",
		log.FieldBackend, config.Type.String(),
		"seed_path", config.SeedPath)

	return &BackendResult{Backend: store}, nil
}
