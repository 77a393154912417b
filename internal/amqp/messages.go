package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kobitar/internal/core"
)

// ActivityKind names a household event.
type ActivityKind string

const (
	KindExpenseAdded      ActivityKind = "expense.added"
	KindExpensesCleared   ActivityKind = "expenses.cleared"
	KindCollectionUpdated ActivityKind = "collection.updated"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case KindExpenseAdded, KindExpensesCleared, KindCollectionUpdated:
		return true
	}
	return false
}

// ActivityMessage describes one successful mutation of the household data.
// Amount is the expense amount, the cleared total, or the new collection
// amount depending on Kind.
type ActivityMessage struct {
	ID        uuid.UUID       `json:"id"`
	Kind      ActivityKind    `json:"kind"`
	Name      string          `json:"name,omitempty"`
	Item      string          `json:"item,omitempty"`
	Date      string          `json:"date,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Count     int             `json:"count,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newActivity(kind ActivityKind) *ActivityMessage {
	return &ActivityMessage{ID: uuid.New(), Kind: kind, Timestamp: time.Now().UTC()}
}

// NewExpenseAdded records an appended expense.
func NewExpenseAdded(e core.ExpenseRecord) *ActivityMessage {
	m := newActivity(KindExpenseAdded)
	m.Name, m.Item, m.Date, m.Amount = e.Name, e.Item, e.Date, e.Amount
	m.Count = 1
	return m
}

// NewExpensesCleared records a bulk delete of count records totalling total.
func NewExpensesCleared(count int, total decimal.Decimal) *ActivityMessage {
	m := newActivity(KindExpensesCleared)
	m.Count, m.Amount = count, total
	return m
}

// NewCollectionUpdated records a member's new collected amount.
func NewCollectionUpdated(name string, amount decimal.Decimal) *ActivityMessage {
	m := newActivity(KindCollectionUpdated)
	m.Name, m.Amount = name, amount
	return m
}

// Validate rejects messages without an ID or with an unknown kind.
func (m *ActivityMessage) Validate() error {
	if m.ID == uuid.Nil {
		return errors.New("activity message without id")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown activity kind %q", m.Kind)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes and validates a message.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
