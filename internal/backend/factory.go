package backend

import (
	"context"
	"fmt"

	"kobitar/internal/log"
	gsheet "kobitar/internal/sheets/google"
	"kobitar/internal/sheets/memory"
	"kobitar/internal/sheets/script"
	"kobitar/internal/storage"
)

const defaultDataDirectory = "data"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
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
	case ScriptBackend:
		return f.createScriptBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createScriptBackend(config Config) (*BackendResult, error) {
	cli, err := script.New(script.Config{
		CollectionsURL: config.CollectionsURL,
		ExpensesURL:    config.ExpensesURL,
		Timeout:        config.RemoteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize script client: %w", err)
	}

	f.logger.Info("Initialized script backend", "timeout", config.RemoteTimeout.String())

	return &BackendResult{Backend: cli}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		CollectionsSheet:   config.GoogleCollectionsSheet,
		ExpensesSheet:      config.GoogleExpensesSheet,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{Backend: cli}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	seed, err := memory.NewFromFiles(dataDirectory(config))
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to read seed data: %w", err)
	}
	cols, _ := seed.ListCollections(ctx)
	exps, _ := seed.ListExpenses(ctx)
	if err := repo.Seed(ctx, cols, exps); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to seed SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
		Ping:    repo.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dir := dataDirectory(config)
	store, err := memory.NewFromFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dir)

	return &BackendResult{Backend: store}, nil
}

func dataDirectory(config Config) string {
	if config.DataDirectory == "" {
		return defaultDataDirectory
	}
	return config.DataDirectory
}
