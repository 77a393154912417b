package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"kobitar/internal/core"
)

// Ports for outbound adapters.
type (
	CollectionReader interface {
		ListCollections(ctx context.Context) ([]core.CollectionRow, error)
	}

	// CollectionUpdater sets the amount collected from one member. The
	// returned string is the acknowledgement text of the data source.
	CollectionUpdater interface {
		UpdateCollectionAmount(ctx context.Context, name string, amount decimal.Decimal) (ack string, err error)
	}

	// ExpenseLister returns every recorded expense in source order.
	ExpenseLister interface {
		ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	}

	ExpenseWriter interface {
		AppendExpense(ctx context.Context, e core.ExpenseRecord) error
	}

	// ExpenseClearer removes every expense row.
	ExpenseClearer interface {
		ClearExpenses(ctx context.Context) error
	}

	// Store is the full set of capabilities a data backend provides.
	Store interface {
		CollectionReader
		CollectionUpdater
		ExpenseLister
		ExpenseWriter
		ExpenseClearer
	}
)
