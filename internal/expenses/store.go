// Package expenses holds the in-memory expense collection of the signed-in
// user, kept in step with the gateway.
package expenses

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
)

// Store is single-writer, multi-reader. The lock is never held across a
// gateway call; every mutation is applied only after the gateway confirmed it.
type Store struct {
	gw     gateway.ExpenseGateway
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	owner core.ID
	items []core.Expense
	gen   uint64
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the createdAt source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(gw gateway.ExpenseGateway, opts ...Option) *Store {
	s := &Store{gw: gw, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches every expense of owner, orders them newest date first (gateway
// order among equal dates) and replaces the collection. On failure the
// previous snapshot stays. A load overtaken by Reset or a newer Load is dropped.
func (s *Store) Load(ctx context.Context, owner core.ID) ([]core.Expense, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.owner.IsZero() && len(s.items) == 0 {
		s.owner = owner
	}
	s.mu.Unlock()

	fetched, err := s.gw.ListExpenses(ctx, owner)
	if err != nil {
		return s.Snapshot(), &core.FetchError{Op: "load expenses", Cause: err}
	}

	items := make([]core.Expense, 0, len(fetched))
	for _, e := range fetched {
		if e.OwnerID != owner {
			s.logger.Warn("Dropping expense of another user", "expense_id", e.ID.String(), "owner", e.OwnerID.String())
			continue
		}
		items = append(items, e)
	}
	sortNewestFirst(items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return slices.Clone(s.items), nil
	}
	s.owner = owner
	s.items = items
	s.logger.Debug("Expenses loaded", "owner", owner.String(), "count", len(items))
	return slices.Clone(items), nil
}

// Add validates the draft, creates it through the gateway and puts the
// returned record at the front, whatever its date.
func (s *Store) Add(ctx context.Context, d core.Draft) (core.Expense, error) {
	s.mu.RLock()
	owner := s.owner
	s.mu.RUnlock()

	e, err := d.Validate(owner)
	if err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = s.now().UTC()

	created, err := s.gw.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, &core.FetchError{Op: "add expense", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != owner {
		return created, nil
	}
	s.items = slices.Insert(s.items, 0, created)
	return created, nil
}

// Remove deletes through the gateway and, once confirmed, drops the record.
func (s *Store) Remove(ctx context.Context, id core.ID) error {
	if err := s.gw.DeleteExpense(ctx, id); err != nil {
		return &core.FetchError{Op: "remove expense", Cause: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(e core.Expense) bool { return e.ID == id })
	return nil
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Get returns the expense with the given id from the snapshot.
func (s *Store) Get(id core.ID) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.items, func(e core.Expense) bool { return e.ID == id })
	if i < 0 {
		return core.Expense{}, false
	}
	return s.items[i], true
}

func (s *Store) Owner() core.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Reset empties the store and discards any load in flight.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.owner = ""
	s.items = nil
}

func sortNewestFirst(items []core.Expense) {
	slices.SortStableFunc(items, func(a, b core.Expense) int {
		return b.Date.Compare(a.Date.Time)
	})
}
