package backend

import (
	"context"
	"fmt"
	"log/slog"

	"hcms/internal/records"
	"hcms/internal/records/memory"
	"hcms/internal/storage"
)

// DefaultFactory builds the sqlite and memory backends.
type DefaultFactory struct {
	logger *slog.Logger
}

var (
	_ records.Repository = (*storage.SQLiteRepository)(nil)
	_ records.Repository = (*memory.Store)(nil)
)

// NewFactory uses slog.Default when logger is nil.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend validates config and opens the selected repository.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createSQLiteBackend opens the database and runs pending migrations.
func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Repository: repo, Cleanup: repo.Close}, nil
}

// createMemoryBackend seeds from SeedFile, or the default catalog without one.
func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.SeedFile == "" {
		f.logger.InfoContext(ctx, "Initialized memory backend with default catalog")
		store := memory.New(records.DefaultSeed())
		return &BackendResult{Repository: store, Cleanup: store.Close}, nil
	}
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend seed: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Repository: store, Cleanup: store.Close}, nil
}
