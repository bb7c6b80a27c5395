package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
	"scadenze/internal/storage"
)

// TransactionReader is the slice of storage the notification worker needs.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	MarkTransactionNotified(ctx context.Context, id int64, at time.Time) error
}

// NotifyWorker handles transaction-created messages published by the
// orchestrator. It records the notification dispatch on the transaction;
// the actual delivery channel (push, email) sits behind this boundary.
type NotifyWorker struct {
	storage TransactionReader
	now     func() time.Time
}

func NewNotifyWorker(storage TransactionReader) *NotifyWorker {
	return &NotifyWorker{
		storage: storage,
		now:     time.Now,
	}
}

// HandleTransactionCreated processes a single transaction-created
// message. Redeliveries are idempotent: an already-notified transaction
// is left untouched.
func (w *NotifyWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"transaction_id", msg.TransactionID,
		"rule_id", msg.RuleID,
		"run_id", msg.RunID)

	t, err := w.storage.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The transaction vanished; nothing to notify about. Drop the
			// message instead of requeueing it forever.
			slog.WarnContext(ctx, "Transaction in message no longer exists",
				"transaction_id", msg.TransactionID)
			return nil
		}
		return fmt.Errorf("get transaction %d: %w", msg.TransactionID, err)
	}

	if !t.NotifiedAt.IsZero() {
		slog.DebugContext(ctx, "Transaction already notified",
			"transaction_id", t.ID,
			"notified_at", t.NotifiedAt)
		return nil
	}

	if err := w.storage.MarkTransactionNotified(ctx, t.ID, w.now()); err != nil {
		return fmt.Errorf("mark transaction %d notified: %w", t.ID, err)
	}

	slog.InfoContext(ctx, "Recorded payment notification",
		"transaction_id", t.ID,
		"rule_id", t.RuleID,
		"amount_cents", t.Amount.Cents,
		"occurrence", t.Date.String())

	return nil
}
