package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"scadenze/internal/core"
	"scadenze/internal/services"
)

// InTransaction executes fn within a database transaction. If fn returns
// an error the transaction is rolled back, otherwise it is committed.
// It implements services.RuleStore.
func (r *SQLiteRepository) InTransaction(ctx context.Context, fn func(tx services.RuleExecutionTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(&ruleTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ruleTx exposes the storage operations of one atomic rule execution.
type ruleTx struct {
	tx *sql.Tx
}

func (t *ruleTx) GetRule(ctx context.Context, id int64) (core.Rule, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	return scanRule(row)
}

func (t *ruleTx) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM categories WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count category: %w", err)
	}
	return n > 0, nil
}

func (t *ruleTx) InsertTransaction(ctx context.Context, tr core.Transaction) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
			(owner_id, category_id, description, amount_cents, date, rule_id, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.OwnerID, tr.CategoryID, tr.Description, tr.Amount.Cents,
		tr.Date.Format(dateLayout), tr.RuleID, tr.RunID)
	if err != nil {
		// The unique (rule_id, date) index is the idempotency key: a
		// duplicate occurrence means another run got here first.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, core.ErrConcurrentModification
		}
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}
	return id, nil
}

func (t *ruleTx) AdvanceRuleClock(ctx context.Context, id int64, expected, next core.Date) error {
	return t.updateClock(ctx, id, expected, next, true)
}

func (t *ruleTx) DeactivateRule(ctx context.Context, id int64, expected, next core.Date) error {
	return t.updateClock(ctx, id, expected, next, false)
}

// updateClock moves the rule clock forward with an optimistic check on
// the previous occurrence. Zero rows affected means the rule changed
// underneath us.
func (t *ruleTx) updateClock(ctx context.Context, id int64, expected, next core.Date, stayActive bool) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE recurring_rules
		SET next_occurrence = ?, active = ?, updated_at = ?
		WHERE id = ? AND next_occurrence = ? AND active = 1`,
		next.Format(dateLayout), boolToInt(stayActive),
		time.Now().UTC().Format(time.RFC3339),
		id, expected.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("update rule clock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rule clock rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrConcurrentModification
	}
	return nil
}
