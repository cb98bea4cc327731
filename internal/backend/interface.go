package backend

import (
	"context"

	"hcms/internal/records"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready record repository plus its cleanup.
type BackendResult struct {
	Repository records.Repository
	Cleanup    CleanupFunc
}

// Factory creates record repositories from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects and locates a backend.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// SeedFile optionally loads a JSON snapshot into the memory backend.
	SeedFile string
}

// BackendType names a storage implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid reports whether bt is a known backend.
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
