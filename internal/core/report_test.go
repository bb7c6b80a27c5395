package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExecutionReportValidate(t *testing.T) {
	good := ExecutionReport{
		RunID:               "run-1",
		ExecutionDate:       time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC),
		ProcessedPayments:   3,
		CreatedTransactions: 2,
		TotalAmountCents:    7000,
		Details: []ExecutionDetail{
			{RuleID: 1, RuleName: "Affitto", AmountCents: 4500, OccurrenceDate: NewDate(2024, 3, 3), Outcome: OutcomeSuccess},
			{RuleID: 2, RuleName: "Palestra", AmountCents: 2500, OccurrenceDate: NewDate(2024, 3, 10), Outcome: OutcomeSuccess},
			{RuleID: 3, RuleName: "Netflix", AmountCents: 1299, OccurrenceDate: NewDate(2024, 3, 12), Outcome: OutcomeFailed, FailureReason: "category not found"},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid report, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ExecutionReport)
	}{
		{"created exceeds processed", func(r *ExecutionReport) { r.CreatedTransactions = 4 }},
		{"detail count mismatch", func(r *ExecutionReport) { r.Details = r.Details[:2] }},
		{"success count mismatch", func(r *ExecutionReport) { r.Details[0].Outcome = OutcomeFailed }},
		{"total mismatch", func(r *ExecutionReport) { r.TotalAmountCents = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			r.Details = append([]ExecutionDetail(nil), good.Details...)
			tt.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Errorf("Validate() expected error for %s", tt.name)
			}
		})
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrCategoryNotFound, "category not found"},
		{fmt.Errorf("check category: %w", ErrCategoryNotFound), "category not found"},
		{ErrInvalidAmount, "invalid amount"},
		{ErrConcurrentModification, "concurrent modification"},
		{ErrRuleNotDue, "concurrent modification"},
		{ErrPastEndDate, "past end date"},
		{fmt.Errorf("retire rule 3: %w", ErrPastEndDate), "past end date"},
		{ErrInvalidRecurrence, "invalid recurrence configuration"},
		{fmt.Errorf("%w: unknown interval %q", ErrInvalidRecurrence, "biweekly"), "invalid recurrence configuration"},
		{errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		if got := FailureReason(tt.err); got != tt.want {
			t.Errorf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
