package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scadenze/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SQLiteRepository persists rules, transactions, and the execution log
// in a single SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// A single writer connection keeps SQLite transactions serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateRule validates and stores a new recurring payment rule,
// returning its id. A zero NextOccurrence defaults to the start date.
func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.Rule) (int64, error) {
	if rule.NextOccurrence.IsZero() {
		rule.NextOccurrence = rule.StartDate
	}
	if err := rule.Validate(); err != nil {
		return 0, fmt.Errorf("validate rule: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules
			(owner_id, name, description, category_id, amount_cents, interval,
			 day_of_month, day_of_week, start_date, next_occurrence, end_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.OwnerID, rule.Name, rule.Description, rule.CategoryID,
		rule.Amount.Cents, string(rule.Interval),
		rule.DayOfMonth, rule.DayOfWeek,
		rule.StartDate.Format(dateLayout), rule.NextOccurrence.Format(dateLayout),
		nullDate(rule.EndDate), boolToInt(rule.Active))
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rule insert id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule created",
		"rule_id", id,
		"name", rule.Name,
		"interval", rule.Interval,
		"next_occurrence", rule.NextOccurrence.String())

	return id, nil
}

const ruleColumns = `id, owner_id, name, description, category_id, amount_cents,
	interval, day_of_month, day_of_week, start_date, next_occurrence, end_date, active`

// GetRule returns a rule by id, or ErrNotFound.
func (r *SQLiteRepository) GetRule(ctx context.Context, id int64) (core.Rule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	return scanRule(row)
}

// ListRules returns all rules ordered by id.
func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListDue returns the active rules whose next occurrence is on or
// before now, in rule id order. It implements services.RuleStore.
func (r *SQLiteRepository) ListDue(ctx context.Context, now core.Date) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules
		 WHERE active = 1 AND next_occurrence <= ?
		 ORDER BY id`, now.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// CreateCategory inserts a category and returns its id.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category insert id: %w", err)
	}
	return id, nil
}

// DeleteCategory removes a category. Rules referencing it will fail
// execution with a category-not-found reason until they are repointed.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// GetTransaction returns a generated transaction by id, or ErrNotFound.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, category_id, description, amount_cents, date,
		       rule_id, run_id, notified_at
		FROM transactions WHERE id = ?`, id)

	var (
		t          core.Transaction
		date       string
		notifiedAt sql.NullString
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.CategoryID, &t.Description,
		&t.Amount.Cents, &date, &t.RuleID, &t.RunID, &notifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	t.Date, err = parseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	if notifiedAt.Valid {
		at, err := time.Parse(time.RFC3339, notifiedAt.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse notified_at: %w", err)
		}
		t.NotifiedAt = at
	}
	return t, nil
}

// ListTransactionsByRun returns the transactions created by one run.
func (r *SQLiteRepository) ListTransactionsByRun(ctx context.Context, runID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, category_id, description, amount_cents, date,
		       rule_id, run_id, notified_at
		FROM transactions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by run: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			date       string
			notifiedAt sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.CategoryID, &t.Description,
			&t.Amount.Cents, &date, &t.RuleID, &t.RunID, &notifiedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date, err = parseDate(date)
		if err != nil {
			return nil, err
		}
		if notifiedAt.Valid {
			at, err := time.Parse(time.RFC3339, notifiedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse notified_at: %w", err)
			}
			t.NotifiedAt = at
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkTransactionNotified records that the notification for a generated
// transaction was dispatched. Already-notified transactions are left
// untouched so redeliveries stay idempotent.
func (r *SQLiteRepository) MarkTransactionNotified(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET notified_at = ?
		WHERE id = ? AND notified_at IS NULL`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("mark transaction notified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "Transaction already notified", "transaction_id", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (core.Rule, error) {
	var (
		rule       core.Rule
		interval   string
		start      string
		next       string
		end        sql.NullString
		active     int
	)
	err := row.Scan(&rule.ID, &rule.OwnerID, &rule.Name, &rule.Description,
		&rule.CategoryID, &rule.Amount.Cents, &interval,
		&rule.DayOfMonth, &rule.DayOfWeek, &start, &next, &end, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Rule{}, ErrNotFound
	}
	if err != nil {
		return core.Rule{}, fmt.Errorf("scan rule: %w", err)
	}

	rule.Interval = core.Interval(interval)
	rule.Active = active != 0
	if rule.StartDate, err = parseDate(start); err != nil {
		return core.Rule{}, err
	}
	if rule.NextOccurrence, err = parseDate(next); err != nil {
		return core.Rule{}, err
	}
	if end.Valid {
		if rule.EndDate, err = parseDate(end.String); err != nil {
			return core.Rule{}, err
		}
	}
	return rule, nil
}

func collectRules(rows *sql.Rows) ([]core.Rule, error) {
	var out []core.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func parseDate(s string) (core.Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func nullDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.Format(dateLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
