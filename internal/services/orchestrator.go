package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"scadenze/internal/core"
	"scadenze/internal/log"
)

// ErrRunInProgress is returned when an execution run is requested while
// another run is still in flight. No report is produced in that case.
var ErrRunInProgress = errors.New("execution run already in progress")

// Orchestrator drives one execution run: it selects the due rules,
// executes them one by one, aggregates the outcomes into an
// ExecutionReport, and appends the report to the execution log.
//
// Runs are serialized by a run-level lock. Rules are processed in rule
// id order so the same due set always yields the same report details,
// and one rule's failure never aborts the others.
type Orchestrator struct {
	rules     RuleStore
	logs      ExecutionLogStore
	executor  *PaymentExecutor
	publisher TransactionPublisher // optional

	running *semaphore.Weighted
}

func NewOrchestrator(rules RuleStore, logs ExecutionLogStore, publisher TransactionPublisher) *Orchestrator {
	return &Orchestrator{
		rules:     rules,
		logs:      logs,
		executor:  NewPaymentExecutor(rules),
		publisher: publisher,
		running:   semaphore.NewWeighted(1),
	}
}

// RunExecution performs one execution run as of now and returns its
// report. Re-invoking it when nothing is due yields an empty report:
// due-ness is driven by each rule's clock, which only advances after a
// successful execution.
//
// Returns ErrRunInProgress when another run holds the lock.
func (o *Orchestrator) RunExecution(ctx context.Context, now time.Time) (core.ExecutionReport, error) {
	if !o.running.TryAcquire(1) {
		return core.ExecutionReport{}, ErrRunInProgress
	}
	defer o.running.Release(1)

	runID := uuid.NewString()
	today := core.DateOf(now)

	due, err := o.rules.ListDue(ctx, today)
	if err != nil {
		return core.ExecutionReport{}, fmt.Errorf("list due rules: %w", err)
	}

	slog.InfoContext(ctx, "Starting execution run",
		"run_id", runID,
		"execution_date", today.String(),
		"due_rules", len(due))

	report := core.ExecutionReport{
		RunID:         runID,
		ExecutionDate: now,
		Details:       make([]core.ExecutionDetail, 0, len(due)),
	}

	for _, rule := range due {
		report.ProcessedPayments++

		t, err := o.executor.Execute(ctx, rule.ID, runID, today)
		if err != nil {
			reason := core.FailureReason(err)
			fields := log.NewFields().
				WithComponent(log.ComponentOrchestrator).
				WithRun(runID).
				WithRule(rule.ID, rule.Name).
				WithError(err)
			fields[log.FieldReason] = reason
			slog.WarnContext(ctx, "Recurring payment failed", fields.ToSlice()...)
			report.Details = append(report.Details, core.ExecutionDetail{
				RuleID:         rule.ID,
				RuleName:       rule.Name,
				AmountCents:    rule.Amount.Cents,
				Amount:         rule.Amount.Euros(),
				OccurrenceDate: rule.NextOccurrence,
				Outcome:        core.OutcomeFailed,
				FailureReason:  reason,
			})
			continue
		}

		report.CreatedTransactions++
		report.TotalAmountCents += t.Amount.Cents
		report.Details = append(report.Details, core.ExecutionDetail{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			AmountCents:    t.Amount.Cents,
			Amount:         t.Amount.Euros(),
			OccurrenceDate: t.Date,
			Outcome:        core.OutcomeSuccess,
		})

		o.announce(ctx, t)
	}
	report.TotalAmount = core.Money{Cents: report.TotalAmountCents}.Euros()

	if err := o.logs.AppendExecution(ctx, report); err != nil {
		return report, fmt.Errorf("append execution log: %w", err)
	}

	slog.InfoContext(ctx, "Execution run complete",
		"run_id", runID,
		"processed", report.ProcessedPayments,
		"created", report.CreatedTransactions,
		"total_amount_cents", report.TotalAmountCents)

	return report, nil
}

// LastExecution returns the most recent run's report, or
// core.ErrNoExecutions when none exists.
func (o *Orchestrator) LastExecution(ctx context.Context) (core.ExecutionReport, error) {
	return o.logs.LastExecution(ctx)
}

// announce publishes a transaction-created message for the notification
// worker. The transaction is already committed; a publish failure is
// logged and otherwise ignored.
func (o *Orchestrator) announce(ctx context.Context, t core.Transaction) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishTransactionCreated(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction message",
			"transaction_id", t.ID,
			"rule_id", t.RuleID,
			"error", err)
	}
}
