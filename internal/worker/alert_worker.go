// Package worker turns budget alert messages into stored notifications
// the API can serve back to the user.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spendtrack/internal/amqp"
	"spendtrack/internal/storage"
)

// NotificationStore is the slice of storage the worker writes to.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n storage.Notification) error
}

// AlertWorker consumes budget alerts and records them.
type AlertWorker struct {
	store NotificationStore
	now   func() time.Time
}

func NewAlertWorker(store NotificationStore) *AlertWorker {
	return &AlertWorker{
		store: store,
		now:   time.Now,
	}
}

// HandleAlert processes a single budget alert message. Returning an
// error makes the consumer nack and requeue the delivery.
func (w *AlertWorker) HandleAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	if msg.UserID == "" || msg.Message == "" {
		// Malformed payloads are dropped, not requeued forever.
		slog.WarnContext(ctx, "Dropping malformed budget alert", "user_id", msg.UserID)
		return nil
	}

	n := storage.Notification{
		ID:             uuid.NewString(),
		UserID:         msg.UserID,
		Category:       msg.Category,
		Month:          msg.Month,
		Message:        msg.Message,
		SpentCents:     msg.SpentCents,
		AllocatedCents: msg.AllocatedCents,
		CreatedAt:      w.now(),
	}
	if err := w.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert recorded",
		"user_id", msg.UserID,
		"category", msg.Category,
		"month", msg.Month)
	return nil
}
