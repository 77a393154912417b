package backend

import (
	"context"
	"time"

	"kobitar/internal/sheets"
)

// Backend is the data source behind the dashboard.
type Backend interface {
	sheets.Store
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
	// Ping checks the backend for readiness; nil when the backend has no
	// cheap health check.
	Ping func(ctx context.Context) error
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Spreadsheet web-app endpoints
	CollectionsURL string
	ExpensesURL    string
	RemoteTimeout  time.Duration

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleCollectionsSheet   string
	GoogleExpensesSheet      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// SQLite specific
	SQLiteDBPath string

	// Seed files for the memory and sqlite backends
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	ScriptBackend BackendType = "script"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case ScriptBackend, SheetsBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
