package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scadenze/internal/core"
)

// The execution log is append-only: runs are inserted once and never
// updated or deleted. It implements services.ExecutionLogStore.

// AppendExecution persists a run report and its detail entries in one
// transaction.
func (r *SQLiteRepository) AppendExecution(ctx context.Context, report core.ExecutionReport) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid execution report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO execution_logs
			(run_id, execution_date, processed_payments, created_transactions, total_amount_cents)
		VALUES (?, ?, ?, ?, ?)`,
		report.RunID, report.ExecutionDate.UTC().Format(time.RFC3339),
		report.ProcessedPayments, report.CreatedTransactions, report.TotalAmountCents)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}

	logID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("execution log insert id: %w", err)
	}

	for i, d := range report.Details {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO execution_details
				(log_id, position, rule_id, rule_name, amount_cents, occurrence_date, outcome, failure_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			logID, i, d.RuleID, d.RuleName, d.AmountCents,
			d.OccurrenceDate.Format(dateLayout), string(d.Outcome), d.FailureReason); err != nil {
			return fmt.Errorf("insert execution detail %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit execution log: %w", err)
	}

	slog.InfoContext(ctx, "Execution log appended",
		"run_id", report.RunID,
		"processed", report.ProcessedPayments,
		"created", report.CreatedTransactions)

	return nil
}

// LastExecution returns the most recent run report, or
// core.ErrNoExecutions when no run has completed yet.
func (r *SQLiteRepository) LastExecution(ctx context.Context) (core.ExecutionReport, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, run_id, execution_date, processed_payments, created_transactions, total_amount_cents
		FROM execution_logs ORDER BY id DESC LIMIT 1`)

	report, logID, err := scanExecutionLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExecutionReport{}, core.ErrNoExecutions
	}
	if err != nil {
		return core.ExecutionReport{}, err
	}

	report.Details, err = r.executionDetails(ctx, logID)
	if err != nil {
		return core.ExecutionReport{}, err
	}
	return report, nil
}

// ListExecutions returns up to limit run reports, most recent first,
// without their detail entries.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, limit int) ([]core.ExecutionReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, execution_date, processed_payments, created_transactions, total_amount_cents
		FROM execution_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var out []core.ExecutionReport
	for rows.Next() {
		report, _, err := scanExecutionLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func scanExecutionLog(row rowScanner) (core.ExecutionReport, int64, error) {
	var (
		report core.ExecutionReport
		logID  int64
		date   string
	)
	err := row.Scan(&logID, &report.RunID, &date,
		&report.ProcessedPayments, &report.CreatedTransactions, &report.TotalAmountCents)
	if err != nil {
		return core.ExecutionReport{}, 0, err
	}
	report.ExecutionDate, err = time.Parse(time.RFC3339, date)
	if err != nil {
		return core.ExecutionReport{}, 0, fmt.Errorf("parse execution date: %w", err)
	}
	report.TotalAmount = core.Money{Cents: report.TotalAmountCents}.Euros()
	return report, logID, nil
}

func (r *SQLiteRepository) executionDetails(ctx context.Context, logID int64) ([]core.ExecutionDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, rule_name, amount_cents, occurrence_date, outcome, failure_reason
		FROM execution_details WHERE log_id = ? ORDER BY position`, logID)
	if err != nil {
		return nil, fmt.Errorf("list execution details: %w", err)
	}
	defer rows.Close()

	details := make([]core.ExecutionDetail, 0, 4)
	for rows.Next() {
		var (
			d       core.ExecutionDetail
			date    string
			outcome string
		)
		if err := rows.Scan(&d.RuleID, &d.RuleName, &d.AmountCents,
			&date, &outcome, &d.FailureReason); err != nil {
			return nil, fmt.Errorf("scan execution detail: %w", err)
		}
		if d.OccurrenceDate, err = parseDate(date); err != nil {
			return nil, err
		}
		d.Amount = core.Money{Cents: d.AmountCents}.Euros()
		d.Outcome = core.Outcome(outcome)
		details = append(details, d)
	}
	return details, rows.Err()
}
