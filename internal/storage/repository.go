package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kobitar/internal/core"
	ports "kobitar/internal/sheets"

	_ "modernc.org/sqlite"
)

var _ ports.Store = (*SQLiteRepository)(nil)

// activityTimeLayout has a fixed width so stored timestamps sort as text.
const activityTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ActivityEntry is one recorded household event.
type ActivityEntry struct {
	ID         string
	Kind       string
	Name       string
	Item       string
	Date       string
	Amount     decimal.Decimal
	Count      int
	OccurredAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection; used by readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListCollections(ctx context.Context) ([]core.CollectionRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, amount FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := []core.CollectionRow{}
	for rows.Next() {
		var name, amount string
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, core.CollectionRow{Name: name, Amount: core.LooseAmount(amount)})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, date, item, amount FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.ExpenseRecord{}
	for rows.Next() {
		var e core.ExpenseRecord
		var amount string
		if err := rows.Scan(&e.Name, &e.Date, &e.Item, &amount); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = core.LooseAmount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (name, date, item, amount) VALUES (?, ?, ?, ?)`,
		e.Name, e.Date, e.Item, e.Amount.String())
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	id, _ := res.LastInsertId()
	slog.InfoContext(ctx, "Expense saved to SQLite",
		"component", "storage",
		"id", id,
		"expense_name", e.Name,
		"expense_item", e.Item,
		"amount", e.Amount.String())
	return nil
}

func (r *SQLiteRepository) ClearExpenses(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses`)
	if err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Expenses cleared", "component", "storage", "count", n)
	return nil
}

func (r *SQLiteRepository) UpdateCollectionAmount(ctx context.Context, name string, amount decimal.Decimal) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.ErrEmptyName
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE collections SET amount = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE name = ?`,
		amount.String(), name)
	if err != nil {
		return "", fmt.Errorf("update collection: %w", err)
	}
	ack := fmt.Sprintf("Updated %s to %s", name, amount.String())
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections (name, amount) VALUES (?, ?)`, name, amount.String()); err != nil {
			return "", fmt.Errorf("insert collection: %w", err)
		}
		ack = fmt.Sprintf("Added %s with %s", name, amount.String())
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return ack, nil
}

// Seed fills empty tables with the given rows. Tables that already hold data
// are left alone.
func (r *SQLiteRepository) Seed(ctx context.Context, collections []core.CollectionRow, expenses []core.ExpenseRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&n); err != nil {
		return fmt.Errorf("count collections: %w", err)
	}
	if n == 0 {
		for _, c := range collections {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO collections (name, amount) VALUES (?, ?)`, c.Name, c.Amount.String()); err != nil {
				return fmt.Errorf("seed collection %q: %w", c.Name, err)
			}
		}
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return fmt.Errorf("count expenses: %w", err)
	}
	if n == 0 {
		for _, e := range expenses {
			if _, err := tx.ExecContext(ctx, `INSERT INTO expenses (name, date, item, amount) VALUES (?, ?, ?, ?)`,
				e.Name, e.Date, e.Item, e.Amount.String()); err != nil {
				return fmt.Errorf("seed expense: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RecordActivity stores an event. Redelivered events with a known ID are
// ignored and reported as not inserted.
func (r *SQLiteRepository) RecordActivity(ctx context.Context, a ActivityEntry) (bool, error) {
	if strings.TrimSpace(a.ID) == "" {
		return false, errors.New("activity id is required")
	}
	if strings.TrimSpace(a.Kind) == "" {
		return false, errors.New("activity kind is required")
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity (id, kind, name, item, date, amount, count, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Kind, a.Name, a.Item, a.Date, a.Amount.String(), a.Count,
		a.OccurredAt.UTC().Format(activityTimeLayout))
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListActivity returns the most recent events first. limit <= 0 means 50.
func (r *SQLiteRepository) ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, name, item, date, amount, count, occurred_at
		 FROM activity ORDER BY occurred_at DESC, received_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var a ActivityEntry
		var amount, occurred string
		if err := rows.Scan(&a.ID, &a.Kind, &a.Name, &a.Item, &a.Date, &amount, &a.Count, &occurred); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Amount = core.LooseAmount(amount)
		a.OccurredAt, _ = time.Parse(activityTimeLayout, occurred)
		out = append(out, a)
	}
	return out, rows.Err()
}
