// Package dashboard coordinates the household data flows: the concurrent
// fetch of both lists, the expense submission, the bulk delete and the
// collection update. Aggregates are recomputed from freshly fetched lists on
// every call; nothing is cached.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"kobitar/internal/amqp"
	"kobitar/internal/core"
	"kobitar/internal/form"
	"kobitar/internal/format"
	"kobitar/internal/log"
	"kobitar/internal/notify"
	"kobitar/internal/sheets"
)

var (
	// ErrInvalidForm is returned when a submission fails validation; no
	// request reaches the data source.
	ErrInvalidForm = errors.New("expense form has errors")
	// ErrNotConfirmed is returned by DeleteAllExpenses without confirmation.
	ErrNotConfirmed = errors.New("delete all expenses not confirmed")
	// ErrStaleConfirmation is matched by *StaleConfirmationError.
	ErrStaleConfirmation = errors.New("expenses changed since delete was confirmed")
)

// StaleConfirmationError is returned by DeleteAllExpenses when the expense
// list no longer matches what the user confirmed. Current is the prompt for
// the list as it is now.
type StaleConfirmationError struct {
	Current Confirmation
}

func (e *StaleConfirmationError) Error() string {
	return fmt.Sprintf("%s: now %d expenses totalling %s", ErrStaleConfirmation, e.Current.Count, e.Current.Total)
}

func (e *StaleConfirmationError) Is(target error) bool { return target == ErrStaleConfirmation }

// User-facing notification texts.
const (
	MsgExpenseAdded      = "Expense added successfully!"
	MsgFixErrors         = "Please fix all errors before submitting"
	MsgAddFailed         = "Failed to add expense"
	MsgLoadExpenses      = "Failed to load expenses"
	MsgLoadCollections   = "Failed to load collections"
	MsgDeleted           = "All expenses deleted successfully!"
	MsgDeleteSent        = "Delete request sent. Refresh if needed."
	MsgDeleteStale       = "Expenses changed since you confirmed. Please review and confirm again."
	MsgUpdateFailed      = "Failed to update collection"
	MsgInvalidCollection = "Collection name and a valid amount are required"
)

// ActivityPublisher receives an event after every successful mutation.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, msg *amqp.ActivityMessage) error
}

// Snapshot is the result of one fetch batch. A failed fetch leaves its list
// empty and records the error.
type Snapshot struct {
	Collections    []core.CollectionRow
	Expenses       []core.ExpenseRecord
	Summary        core.Summary
	FetchedAt      time.Time
	CollectionsErr error
	ExpensesErr    error
}

// Confirmation describes what a bulk delete would remove. Confirmed must be
// set by the user before DeleteAllExpenses proceeds.
type Confirmation struct {
	Count     int
	Total     decimal.Decimal
	Message   string
	Confirmed bool
}

type Service struct {
	store     sheets.Store
	notifier  notify.Notifier
	publisher ActivityPublisher
	formatter *format.Formatter
	plan      core.MealPlan
	now       func() time.Time
	logger    *log.Logger

	inflight atomic.Int32
}

func NewService(store sheets.Store) *Service {
	return &Service{
		store:     store,
		notifier:  notify.Discard,
		formatter: format.Default(),
		plan:      core.DefaultMealPlan(),
		now:       time.Now,
		logger:    log.Default(log.ComponentDashboard),
	}
}

func (s *Service) WithNotifier(n notify.Notifier) *Service {
	if n == nil {
		n = notify.Discard
	}
	s.notifier = n
	return s
}

// WithPublisher enables activity events. A nil publisher disables them.
func (s *Service) WithPublisher(p ActivityPublisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) WithFormatter(f *format.Formatter) *Service {
	if f != nil {
		s.formatter = f
	}
	return s
}

func (s *Service) WithMealPlan(p core.MealPlan) *Service {
	s.plan = p
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) WithLogger(l *log.Logger) *Service {
	if l != nil {
		s.logger = l.WithComponent(log.ComponentDashboard)
	}
	return s
}

func (s *Service) MealPlan() core.MealPlan { return s.plan }

func (s *Service) Formatter() *format.Formatter { return s.formatter }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Loading reports whether a fetch batch is in flight.
func (s *Service) Loading() bool { return s.inflight.Load() > 0 }

// Load fetches both lists concurrently and waits for both to settle. One
// failing fetch never cancels or invalidates the other.
func (s *Service) Load(ctx context.Context) Snapshot {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	var snap Snapshot
	var g errgroup.Group
	g.Go(func() error {
		snap.Collections, snap.CollectionsErr = s.fetchCollections(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Expenses, snap.ExpensesErr = s.fetchExpenses(ctx)
		return nil
	})
	_ = g.Wait()

	snap.FetchedAt = s.now()
	snap.Summary = core.Summarize(snap.Collections, snap.Expenses, snap.FetchedAt, s.plan)
	return snap
}

// Expenses fetches the expense list alone, empty on failure.
func (s *Service) Expenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	return s.fetchExpenses(ctx)
}

// Collections fetches the collections list alone, empty on failure.
func (s *Service) Collections(ctx context.Context) ([]core.CollectionRow, error) {
	return s.fetchCollections(ctx)
}

func (s *Service) fetchCollections(ctx context.Context) ([]core.CollectionRow, error) {
	rows, err := s.store.ListCollections(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Fetch failed", log.FieldDataset, log.DatasetCollections, log.FieldError, err)
		s.notifier.Notify(ctx, MsgLoadCollections, notify.Error)
		return []core.CollectionRow{}, err
	}
	if rows == nil {
		rows = []core.CollectionRow{}
	}
	return rows, nil
}

func (s *Service) fetchExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := s.store.ListExpenses(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Fetch failed", log.FieldDataset, log.DatasetExpenses, log.FieldError, err)
		s.notifier.Notify(ctx, MsgLoadExpenses, notify.Error)
		return []core.ExpenseRecord{}, err
	}
	if rows == nil {
		rows = []core.ExpenseRecord{}
	}
	return rows, nil
}

// SubmitExpense validates the form and, when valid, appends the record and
// re-fetches the expense list. The form is reset on success and keeps its
// values on failure.
func (s *Service) SubmitExpense(ctx context.Context, st *form.State) ([]core.ExpenseRecord, error) {
	if !st.BeginSubmit() {
		s.notifier.Notify(ctx, MsgFixErrors, notify.Error)
		return nil, ErrInvalidForm
	}

	rec := st.Record()
	if err := s.store.AppendExpense(ctx, rec); err != nil {
		st.Complete(err)
		s.logger.ErrorContext(ctx, "Append expense failed",
			log.FieldExpenseName, rec.Name,
			log.FieldExpenseItem, rec.Item,
			log.FieldAmount, rec.Amount.String(),
			log.FieldError, err)
		s.notifier.Notify(ctx, MsgAddFailed, notify.Error)
		return nil, fmt.Errorf("append expense: %w", err)
	}
	st.Complete(nil)

	s.logger.InfoContext(ctx, "Expense added",
		log.FieldExpenseName, rec.Name,
		log.FieldExpenseItem, rec.Item,
		log.FieldAmount, rec.Amount.String())
	s.notifier.Notify(ctx, MsgExpenseAdded, notify.Success)
	s.publish(ctx, amqp.NewExpenseAdded(rec))

	list, _ := s.fetchExpenses(ctx)
	return list, nil
}

// PrepareDeleteAll fetches the current expenses and builds the confirmation
// prompt naming their count and total.
func (s *Service) PrepareDeleteAll(ctx context.Context) Confirmation {
	list, _ := s.fetchExpenses(ctx)
	return s.ConfirmationFor(list)
}

// ConfirmationFor builds the bulk delete prompt for an already fetched list.
func (s *Service) ConfirmationFor(list []core.ExpenseRecord) Confirmation {
	total := core.TotalSpent(list)
	return Confirmation{
		Count:   len(list),
		Total:   total,
		Message: fmt.Sprintf("⚠️ WARNING: Are you sure you want to delete ALL %d expenses?\nTotal: %s", len(list), s.formatter.Money(total)),
	}
}

// DeleteAllExpenses clears every expense once confirmed. The list is fetched
// again first; if its count or total differs from the confirmation, nothing
// is deleted and a *StaleConfirmationError carries the new prompt. On success
// the list is re-fetched. When the data source reports an error on clear the
// list is still shown empty and the user is told the request was sent.
func (s *Service) DeleteAllExpenses(ctx context.Context, c Confirmation) ([]core.ExpenseRecord, error) {
	if !c.Confirmed {
		return nil, ErrNotConfirmed
	}

	current, err := s.fetchExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify expenses before delete: %w", err)
	}
	now := s.ConfirmationFor(current)
	if now.Count != c.Count || !now.Total.Equal(c.Total) {
		s.logger.WarnContext(ctx, "Delete all expenses confirmation is stale",
			"confirmed_count", c.Count, "confirmed_total", c.Total.String(),
			log.FieldCount, now.Count, log.FieldAmount, now.Total.String())
		s.notifier.Notify(ctx, MsgDeleteStale, notify.Warning)
		return nil, &StaleConfirmationError{Current: now}
	}

	if err := s.store.ClearExpenses(ctx); err != nil {
		s.logger.WarnContext(ctx, "Delete all expenses not confirmed by data source",
			log.FieldCount, now.Count, log.FieldError, err)
		s.notifier.Notify(ctx, MsgDeleteSent, notify.Success)
		return []core.ExpenseRecord{}, nil
	}

	s.logger.InfoContext(ctx, "All expenses deleted", log.FieldCount, now.Count, log.FieldAmount, now.Total.String())
	s.notifier.Notify(ctx, MsgDeleted, notify.Success)
	s.publish(ctx, amqp.NewExpensesCleared(now.Count, now.Total))

	list, _ := s.fetchExpenses(ctx)
	return list, nil
}

// UpdateCollectionAmount sets one member's collected amount and re-fetches
// the collections list whether or not the update succeeded. The
// acknowledgement text from the data source is passed to the user as is.
func (s *Service) UpdateCollectionAmount(ctx context.Context, name, amount string) (string, []core.CollectionRow, error) {
	name = strings.TrimSpace(name)
	value, err := core.ParseAmount(amount)
	if name == "" || err != nil || value.IsNegative() {
		s.notifier.Notify(ctx, MsgInvalidCollection, notify.Error)
		if name == "" {
			return "", nil, core.ErrEmptyName
		}
		return "", nil, core.ErrInvalidAmount
	}

	ack, updateErr := s.store.UpdateCollectionAmount(ctx, name, value)
	if updateErr != nil {
		s.logger.ErrorContext(ctx, "Update collection failed",
			log.FieldCollectionName, name, log.FieldAmount, value.String(), log.FieldError, updateErr)
		msg := MsgUpdateFailed
		var rt responseTexter
		if errors.As(updateErr, &rt) && rt.ResponseText() != "" {
			msg = rt.ResponseText()
		}
		s.notifier.Notify(ctx, msg, notify.Error)
	} else {
		s.logger.InfoContext(ctx, "Collection updated", log.FieldCollectionName, name, log.FieldAmount, value.String())
		if ack != "" {
			s.notifier.Notify(ctx, ack, notify.Info)
		}
		s.publish(ctx, amqp.NewCollectionUpdated(name, value))
	}

	rows, _ := s.fetchCollections(ctx)
	if updateErr != nil {
		return "", rows, fmt.Errorf("update collection %q: %w", name, updateErr)
	}
	return ack, rows, nil
}

// responseTexter is implemented by data source errors that carry the body
// of a failed response.
type responseTexter interface {
	ResponseText() string
}

// publish sends an activity event. Failures are logged only; the mutation
// already happened.
func (s *Service) publish(ctx context.Context, msg *amqp.ActivityMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishActivity(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish activity", log.FieldEventKind, msg.Kind, log.FieldError, err)
	}
}
