// Package backend builds the data backend the tools talk to.
package backend

import (
	"context"
	"time"

	"lunchtools/internal/api"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend api.Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Lunch Money specific
	APIToken    string
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Memory specific; an empty path loads the built-in sample data
	SeedPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	LunchMoneyBackend BackendType = "lunchmoney"
	MemoryBackend     BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case LunchMoneyBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
