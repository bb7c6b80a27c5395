package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scadenze/internal/core"
)

// fakeStore is an in-memory RuleStore and ExecutionLogStore. Writes made
// inside InTransaction are staged and applied only when the callback
// returns nil, mirroring the commit/rollback behavior of the SQLite
// repository.
type fakeStore struct {
	mu           sync.Mutex
	rules        map[int64]core.Rule
	categories   map[int64]bool
	transactions []core.Transaction
	nextTxID     int64
	reports      []core.ExecutionReport

	onListDue  func() // called before ListDue returns, for concurrency tests
	listDueErr error
	appendErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rules:      make(map[int64]core.Rule),
		categories: make(map[int64]bool),
	}
}

func (s *fakeStore) addRule(r core.Rule) {
	s.rules[r.ID] = r
	if r.CategoryID != 0 {
		s.categories[r.CategoryID] = true
	}
}

func (s *fakeStore) rule(id int64) core.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules[id]
}

func (s *fakeStore) ListDue(_ context.Context, now core.Date) ([]core.Rule, error) {
	if s.onListDue != nil {
		s.onListDue()
	}
	if s.listDueErr != nil {
		return nil, s.listDueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []core.Rule
	for _, r := range s.rules {
		if r.DueAt(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *fakeStore) InTransaction(_ context.Context, fn func(tx RuleExecutionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &fakeTx{store: s, pendingRules: make(map[int64]core.Rule)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, r := range tx.pendingRules {
		s.rules[id] = r
	}
	s.transactions = append(s.transactions, tx.pendingTxs...)
	return nil
}

func (s *fakeStore) AppendExecution(_ context.Context, report core.ExecutionReport) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	if err := report.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *fakeStore) LastExecution(_ context.Context) (core.ExecutionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return core.ExecutionReport{}, core.ErrNoExecutions
	}
	return s.reports[len(s.reports)-1], nil
}

// fakeTx stages mutations until the enclosing InTransaction commits.
type fakeTx struct {
	store        *fakeStore
	pendingRules map[int64]core.Rule
	pendingTxs   []core.Transaction
}

func (tx *fakeTx) GetRule(_ context.Context, id int64) (core.Rule, error) {
	if r, ok := tx.pendingRules[id]; ok {
		return r, nil
	}
	r, ok := tx.store.rules[id]
	if !ok {
		return core.Rule{}, fmt.Errorf("rule %d not found", id)
	}
	return r, nil
}

func (tx *fakeTx) CategoryExists(_ context.Context, id int64) (bool, error) {
	return tx.store.categories[id], nil
}

func (tx *fakeTx) InsertTransaction(_ context.Context, t core.Transaction) (int64, error) {
	for _, existing := range tx.store.transactions {
		if existing.RuleID == t.RuleID && existing.Date.Equal(t.Date) {
			return 0, fmt.Errorf("insert transaction: %w", core.ErrConcurrentModification)
		}
	}
	for _, pending := range tx.pendingTxs {
		if pending.RuleID == t.RuleID && pending.Date.Equal(t.Date) {
			return 0, fmt.Errorf("insert transaction: %w", core.ErrConcurrentModification)
		}
	}
	tx.store.nextTxID++
	t.ID = tx.store.nextTxID
	tx.pendingTxs = append(tx.pendingTxs, t)
	return t.ID, nil
}

func (tx *fakeTx) AdvanceRuleClock(ctx context.Context, id int64, expected, next core.Date) error {
	return tx.updateClock(ctx, id, expected, next, true)
}

func (tx *fakeTx) DeactivateRule(ctx context.Context, id int64, expected, next core.Date) error {
	return tx.updateClock(ctx, id, expected, next, false)
}

func (tx *fakeTx) updateClock(ctx context.Context, id int64, expected, next core.Date, active bool) error {
	r, err := tx.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if !r.Active || !r.NextOccurrence.Equal(expected) {
		return core.ErrConcurrentModification
	}
	r.NextOccurrence = next
	r.Active = active
	tx.pendingRules[id] = r
	return nil
}

// capturingPublisher records every published transaction.
type capturingPublisher struct {
	mu        sync.Mutex
	published []core.Transaction
	err       error
}

func (p *capturingPublisher) PublishTransactionCreated(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, t)
	return nil
}
