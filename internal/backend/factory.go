package backend

import (
	"context"
	"fmt"

	"finboard/internal/log"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/sheets/memory"
	"finboard/internal/upstream"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	repo   TransactionRepository
}

// NewFactory creates a backend factory. repo is the local store the sqlite
// backend reads from; the caller owns its lifetime.
func NewFactory(repo TransactionRepository, logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		repo:   repo,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend()
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	client, err := upstream.New(config.UpstreamBaseURL, nil, config.UpstreamTimeout, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upstream client: %w", err)
	}

	f.logger.Info("Initialized API backend", "base_url", config.UpstreamBaseURL)

	return &BackendResult{Type: APIBackend, Source: client}, nil
}

func (f *DefaultFactory) createSQLiteBackend() (*BackendResult, error) {
	if f.repo == nil {
		return nil, fmt.Errorf("sqlite backend needs an open local store")
	}

	f.logger.Info("Initialized SQLite backend")

	return &BackendResult{Type: SQLiteBackend, Source: NewSQLite(f.repo, f.logger)}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, config.Sheets, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.Sheets.SpreadsheetID)

	return &BackendResult{Type: SheetsBackend, Source: NewSheet(cli, cli, nil, f.logger)}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir, log.FieldCount, store.Len())

	return &BackendResult{Type: MemoryBackend, Source: NewSheet(store, store, store, f.logger)}, nil
}
