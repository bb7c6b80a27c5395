package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
	"scadenze/internal/storage"
)

type fakeTransactionReader struct {
	transactions map[int64]core.Transaction
	getErr       error
	markErr      error
	marked       []int64
}

func (f *fakeTransactionReader) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	if f.getErr != nil {
		return core.Transaction{}, f.getErr
	}
	t, ok := f.transactions[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeTransactionReader) MarkTransactionNotified(_ context.Context, id int64, _ time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	return nil
}

func testMessage(id int64) *amqp.TransactionCreatedMessage {
	return &amqp.TransactionCreatedMessage{
		TransactionID:  id,
		RuleID:         1,
		RunID:          "run-1",
		AmountCents:    4500,
		OccurrenceDate: "2024-03-15",
		Timestamp:      time.Now(),
	}
}

func TestHandleTransactionCreated(t *testing.T) {
	reader := &fakeTransactionReader{transactions: map[int64]core.Transaction{
		42: {ID: 42, RuleID: 1, Amount: core.Money{Cents: 4500}, Date: core.NewDate(2024, 3, 15)},
	}}
	worker := NewNotifyWorker(reader)

	if err := worker.HandleTransactionCreated(context.Background(), testMessage(42)); err != nil {
		t.Fatalf("HandleTransactionCreated() error = %v", err)
	}
	if len(reader.marked) != 1 || reader.marked[0] != 42 {
		t.Errorf("marked = %v, want [42]", reader.marked)
	}
}

func TestHandleTransactionCreatedAlreadyNotified(t *testing.T) {
	reader := &fakeTransactionReader{transactions: map[int64]core.Transaction{
		42: {ID: 42, NotifiedAt: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)},
	}}
	worker := NewNotifyWorker(reader)

	// Redelivery of an already-handled message is a no-op.
	if err := worker.HandleTransactionCreated(context.Background(), testMessage(42)); err != nil {
		t.Fatalf("HandleTransactionCreated() error = %v", err)
	}
	if len(reader.marked) != 0 {
		t.Errorf("re-marked an already notified transaction: %v", reader.marked)
	}
}

func TestHandleTransactionCreatedMissingTransaction(t *testing.T) {
	reader := &fakeTransactionReader{transactions: map[int64]core.Transaction{}}
	worker := NewNotifyWorker(reader)

	// A vanished transaction drops the message instead of requeueing it.
	if err := worker.HandleTransactionCreated(context.Background(), testMessage(42)); err != nil {
		t.Errorf("HandleTransactionCreated() error = %v, want nil for missing transaction", err)
	}
}

func TestHandleTransactionCreatedStorageErrors(t *testing.T) {
	t.Run("get fails", func(t *testing.T) {
		reader := &fakeTransactionReader{getErr: errors.New("database locked")}
		worker := NewNotifyWorker(reader)
		if err := worker.HandleTransactionCreated(context.Background(), testMessage(42)); err == nil {
			t.Error("expected error so the message is requeued")
		}
	})

	t.Run("mark fails", func(t *testing.T) {
		reader := &fakeTransactionReader{
			transactions: map[int64]core.Transaction{42: {ID: 42}},
			markErr:      errors.New("database locked"),
		}
		worker := NewNotifyWorker(reader)
		if err := worker.HandleTransactionCreated(context.Background(), testMessage(42)); err == nil {
			t.Error("expected error so the message is requeued")
		}
	})
}
