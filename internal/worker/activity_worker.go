// Package worker turns household activity messages into rows of the local
// activity log.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"kobitar/internal/amqp"
	"kobitar/internal/log"
	"kobitar/internal/storage"
)

// ActivityRecorder persists activity entries. Implemented by
// storage.SQLiteRepository.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a storage.ActivityEntry) (bool, error)
}

// Stats counts processed messages since start.
type Stats struct {
	Recorded   int64
	Duplicates int64
	Failed     int64
}

type ActivityWorker struct {
	store  ActivityRecorder
	logger *log.Logger

	recorded   atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func NewActivityWorker(store ActivityRecorder, logger *log.Logger) *ActivityWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ActivityWorker{store: store, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleActivity records one message. It has the amqp.ActivityHandler
// signature; a returned error makes the broker redeliver the message.
func (w *ActivityWorker) HandleActivity(ctx context.Context, msg *amqp.ActivityMessage) error {
	if err := msg.Validate(); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("invalid activity message: %w", err)
	}
	inserted, err := w.store.RecordActivity(ctx, storage.ActivityEntry{
		ID:         msg.ID.String(),
		Kind:       string(msg.Kind),
		Name:       msg.Name,
		Item:       msg.Item,
		Date:       msg.Date,
		Amount:     msg.Amount,
		Count:      msg.Count,
		OccurredAt: msg.Timestamp,
	})
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("record activity %s: %w", msg.ID, err)
	}
	if !inserted {
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "Duplicate activity message ignored", "id", msg.ID, log.FieldEventKind, msg.Kind)
		return nil
	}
	w.recorded.Add(1)
	w.logger.InfoContext(ctx, "Activity recorded",
		"id", msg.ID,
		log.FieldEventKind, msg.Kind,
		log.FieldExpenseName, msg.Name,
		log.FieldAmount, msg.Amount.String())
	return nil
}

func (w *ActivityWorker) Stats() Stats {
	return Stats{
		Recorded:   w.recorded.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}
