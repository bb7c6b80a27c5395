package services

import (
	"context"

	"scadenze/internal/core"
)

// Ports for the storage and messaging adapters the engine drives.
type (
	// RuleExecutionTx is the slice of storage operations available inside
	// one atomic rule execution. Either every write made through it is
	// kept or none is.
	RuleExecutionTx interface {
		// GetRule re-reads the rule inside the transaction, guarding
		// against stale due-selection reads.
		GetRule(ctx context.Context, id int64) (core.Rule, error)

		CategoryExists(ctx context.Context, id int64) (bool, error)

		InsertTransaction(ctx context.Context, t core.Transaction) (id int64, err error)

		// AdvanceRuleClock moves the rule's next occurrence forward. The
		// expected previous occurrence is the optimistic check: if the
		// clock moved underneath us the update reports
		// core.ErrConcurrentModification.
		AdvanceRuleClock(ctx context.Context, id int64, expected, next core.Date) error

		// DeactivateRule flips the rule inactive, leaving its clock
		// pointing past the end date.
		DeactivateRule(ctx context.Context, id int64, expected, next core.Date) error
	}

	// RuleStore selects due rules and hosts atomic executions.
	RuleStore interface {
		// ListDue returns active rules whose next occurrence is on or
		// before now, ordered by rule id.
		ListDue(ctx context.Context, now core.Date) ([]core.Rule, error)

		// InTransaction runs fn inside one storage transaction,
		// committing only when fn returns nil.
		InTransaction(ctx context.Context, fn func(tx RuleExecutionTx) error) error
	}

	// ExecutionLogStore is the append-only audit trail of past runs.
	ExecutionLogStore interface {
		AppendExecution(ctx context.Context, report core.ExecutionReport) error

		// LastExecution returns the most recent report, or
		// core.ErrNoExecutions when no run has completed yet.
		LastExecution(ctx context.Context) (core.ExecutionReport, error)
	}

	// TransactionPublisher announces generated transactions to the
	// notification pipeline. Publication is best-effort: the transaction
	// is already durably committed by the time it is announced.
	TransactionPublisher interface {
		PublishTransactionCreated(ctx context.Context, t core.Transaction) error
	}
)
