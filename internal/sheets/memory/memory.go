package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"kobitar/internal/core"
	ports "kobitar/internal/sheets"
)

var _ ports.Store = (*Store)(nil)

// Store keeps both household lists in memory.
type Store struct {
	mu          sync.Mutex
	collections []core.CollectionRow
	expenses    []core.ExpenseRecord
}

func New(collections []core.CollectionRow, expenses []core.ExpenseRecord) *Store {
	return &Store{
		collections: append([]core.CollectionRow(nil), collections...),
		expenses:    append([]core.ExpenseRecord(nil), expenses...),
	}
}

type seedCollection struct {
	Name   string `json:"Name"`
	Amount any    `json:"Amount"`
}

type seedExpense struct {
	Name   string `json:"Name"`
	Goods  string `json:"Goods"`
	Date   string `json:"Date"`
	Amount any    `json:"Amount"`
}

// NewFromFiles seeds the store from collections.json and expenses.json in
// base. Missing files leave the corresponding list empty; malformed files
// are an error.
func NewFromFiles(base string) (*Store, error) {
	var cs []seedCollection
	if err := readJSON(filepath.Join(base, "collections.json"), &cs); err != nil {
		return nil, err
	}
	var es []seedExpense
	if err := readJSON(filepath.Join(base, "expenses.json"), &es); err != nil {
		return nil, err
	}
	s := &Store{}
	for _, c := range cs {
		s.collections = append(s.collections, core.CollectionRow{Name: strings.TrimSpace(c.Name), Amount: core.LooseAmount(c.Amount)})
	}
	for _, e := range es {
		s.expenses = append(s.expenses, core.ExpenseRecord{
			Name:   strings.TrimSpace(e.Name),
			Date:   strings.TrimSpace(e.Date),
			Item:   strings.TrimSpace(e.Goods),
			Amount: core.LooseAmount(e.Amount),
		})
	}
	return s, nil
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (s *Store) ListCollections(_ context.Context) ([]core.CollectionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CollectionRow{}, s.collections...), nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRecord{}, s.expenses...), nil
}

func (s *Store) AppendExpense(_ context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return nil
}

func (s *Store) ClearExpenses(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = nil
	return nil
}

// UpdateCollectionAmount sets the amount of the first matching row or adds a
// new row.
func (s *Store) UpdateCollectionAmount(_ context.Context, name string, amount decimal.Decimal) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.collections {
		if strings.EqualFold(s.collections[i].Name, name) {
			s.collections[i].Amount = amount
			return fmt.Sprintf("Updated %s to %s", name, amount.String()), nil
		}
	}
	s.collections = append(s.collections, core.CollectionRow{Name: name, Amount: amount})
	return fmt.Sprintf("Added %s with %s", name, amount.String()), nil
}
