package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

type (
	// Outcome is the per-rule result recorded in an execution report.
	Outcome string

	// ExecutionDetail is one line of an execution report: what happened
	// to a single due rule during a run. Amount is the euro value of
	// AmountCents, derived for display.
	ExecutionDetail struct {
		RuleID         int64   `json:"rule_id"`
		RuleName       string  `json:"rule_name"`
		AmountCents    int64   `json:"amount_cents"`
		Amount         float64 `json:"amount"`
		OccurrenceDate Date    `json:"occurrence_date"`
		Outcome        Outcome `json:"outcome"`
		FailureReason  string  `json:"failure_reason,omitempty"`
	}

	// ExecutionReport summarizes one orchestration run. It is built once
	// at the end of a run, appended to the execution log, and never
	// modified afterward. TotalAmount is the euro value of
	// TotalAmountCents, derived for display. Summary listings omit
	// Details; only full reports carry them.
	ExecutionReport struct {
		RunID               string            `json:"run_id"`
		ExecutionDate       time.Time         `json:"execution_date"`
		ProcessedPayments   int               `json:"processed_payments"`
		CreatedTransactions int               `json:"created_transactions"`
		TotalAmountCents    int64             `json:"total_amount_cents"`
		TotalAmount         float64           `json:"total_amount"`
		Details             []ExecutionDetail `json:"details,omitempty"`
	}
)

// ErrNoExecutions is returned by the execution log when no run has
// completed yet.
var ErrNoExecutions = errors.New("no execution yet")

// Validate checks the report's internal consistency: the created count
// never exceeds the processed count, both counts match the details, and
// the total equals the sum of successful amounts.
func (r ExecutionReport) Validate() error {
	if r.CreatedTransactions > r.ProcessedPayments {
		return fmt.Errorf("created transactions (%d) exceed processed payments (%d)",
			r.CreatedTransactions, r.ProcessedPayments)
	}
	if len(r.Details) != r.ProcessedPayments {
		return fmt.Errorf("detail count (%d) does not match processed payments (%d)",
			len(r.Details), r.ProcessedPayments)
	}
	var created int
	var total int64
	for _, d := range r.Details {
		if d.Outcome == OutcomeSuccess {
			created++
			total += d.AmountCents
		}
	}
	if created != r.CreatedTransactions {
		return fmt.Errorf("success details (%d) do not match created transactions (%d)",
			created, r.CreatedTransactions)
	}
	if total != r.TotalAmountCents {
		return fmt.Errorf("success amounts (%d) do not match total (%d)",
			total, r.TotalAmountCents)
	}
	return nil
}

// FailureReason maps an execution error to the human-readable reason
// recorded in report details and shown to the user.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrCategoryNotFound):
		return "category not found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid amount"
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, ErrRuleNotDue):
		return "concurrent modification"
	case errors.Is(err, ErrPastEndDate):
		return "past end date"
	case errors.Is(err, ErrInvalidRecurrence), errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrInvalidDayOfMonth), errors.Is(err, ErrInvalidDayOfWeek):
		return "invalid recurrence configuration"
	default:
		return err.Error()
	}
}
