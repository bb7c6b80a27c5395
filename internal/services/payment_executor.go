package services

import (
	"context"
	"fmt"
	"log/slog"

	"scadenze/internal/core"
	"scadenze/internal/log"
)

// PaymentExecutor turns one due rule into a transaction and advances the
// rule's clock, all inside a single storage transaction. A failure
// leaves the rule untouched: no orphaned transaction, no stuck clock.
type PaymentExecutor struct {
	store RuleStore
}

func NewPaymentExecutor(store RuleStore) *PaymentExecutor {
	return &PaymentExecutor{store: store}
}

// Execute processes a single due rule under run id runID, as of the
// calendar date now. It returns the generated transaction, or a typed
// error describing why the rule could not be paid:
//
//   - core.ErrRuleNotDue: the rule was deactivated or already processed
//     between due selection and execution
//   - core.ErrPastEndDate: the rule's clock points past its end date;
//     the rule is deactivated without creating a payment
//   - core.ErrCategoryNotFound: the referenced category was deleted
//   - core.ErrInvalidAmount: the amount is no longer positive
//   - core.ErrInvalidRecurrence: interval/day combination that creation
//     validation should have rejected
//   - core.ErrConcurrentModification: the occurrence slot or rule clock
//     changed underneath us; safe to retry on the next run
func (e *PaymentExecutor) Execute(ctx context.Context, ruleID int64, runID string, now core.Date) (core.Transaction, error) {
	var created core.Transaction
	var expired bool

	err := e.store.InTransaction(ctx, func(tx RuleExecutionTx) error {
		rule, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return fmt.Errorf("reload rule %d: %w", ruleID, err)
		}

		// Re-validate inside the transaction: the due selection read may
		// be stale by the time we get here.
		if !rule.DueAt(now) {
			return core.ErrRuleNotDue
		}

		// An active rule whose clock already points past its end date
		// violates rule validation; it must not be paid. Retire it. The
		// deactivation still has to commit, so it cannot ride on an
		// error return.
		if !rule.EndDate.IsEmpty() && rule.NextOccurrence.After(rule.EndDate.Time) {
			if err := tx.DeactivateRule(ctx, rule.ID, rule.NextOccurrence, rule.NextOccurrence); err != nil {
				return fmt.Errorf("retire rule %d: %w", rule.ID, err)
			}
			expired = true
			return nil
		}

		if err := rule.Amount.Validate(); err != nil {
			return err
		}

		ok, err := tx.CategoryExists(ctx, rule.CategoryID)
		if err != nil {
			return fmt.Errorf("check category %d: %w", rule.CategoryID, err)
		}
		if !ok {
			return core.ErrCategoryNotFound
		}

		occurrence := rule.NextOccurrence
		newNext, err := NextOccurrence(rule, occurrence)
		if err != nil {
			return err
		}

		t := core.Transaction{
			OwnerID:     rule.OwnerID,
			CategoryID:  rule.CategoryID,
			Description: rule.Name,
			Amount:      rule.Amount,
			Date:        occurrence,
			RuleID:      rule.ID,
			RunID:       runID,
		}
		id, err := tx.InsertTransaction(ctx, t)
		if err != nil {
			return fmt.Errorf("insert transaction for rule %d: %w", rule.ID, err)
		}
		t.ID = id

		if !rule.EndDate.IsEmpty() && newNext.After(rule.EndDate.Time) {
			// The occurrence just paid was the last one.
			if err := tx.DeactivateRule(ctx, rule.ID, occurrence, newNext); err != nil {
				return fmt.Errorf("deactivate rule %d: %w", rule.ID, err)
			}
		} else {
			if err := tx.AdvanceRuleClock(ctx, rule.ID, occurrence, newNext); err != nil {
				return fmt.Errorf("advance rule %d clock: %w", rule.ID, err)
			}
		}

		created = t
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	if expired {
		return core.Transaction{}, core.ErrPastEndDate
	}

	slog.InfoContext(ctx, "Executed recurring payment",
		log.NewFields().
			WithComponent(log.ComponentExecutor).
			WithRun(runID).
			WithRule(created.RuleID, created.Description).
			WithPayment(created.ID, created.Amount.Cents, created.Date.String()).
			ToSlice()...)

	return created, nil
}
