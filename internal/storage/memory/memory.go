// Package memory is a process-local storage.Repository, handy for demos
// and tests. Everything is lost on restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	users    []core.UserRecord
	expenses []core.Expense
	newID    func() core.ID
}

type Option func(*Store)

// WithIDs replaces the uuid generator.
func WithIDs(fn func() core.ID) Option {
	return func(s *Store) { s.newID = fn }
}

func New(opts ...Option) *Store {
	s := &Store{newID: func() core.ID { return core.ID(uuid.NewString()) }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeeded returns a store preloaded with seed.
func NewSeeded(ctx context.Context, seed storage.Seed, opts ...Option) (*Store, error) {
	s := New(opts...)
	if _, err := storage.SeedIfEmpty(ctx, s, seed); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users), nil
}

// FindUsersByUsername matches exactly, as a json-server filter does.
func (s *Store) FindUsersByUsername(_ context.Context, username string) ([]core.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.UserRecord{}
	for _, u := range s.users {
		if u.Username == username {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id core.ID) (core.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.users, func(u core.UserRecord) bool { return u.ID == id })
	if i < 0 {
		return core.UserRecord{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return s.users[i], nil
}

func (s *Store) CreateUser(_ context.Context, rec core.UserRecord) (core.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID.IsZero() {
		rec.ID = s.newID()
	}
	for _, u := range s.users {
		if u.ID == rec.ID {
			return core.UserRecord{}, fmt.Errorf("user id %s: %w", rec.ID, storage.ErrConflict)
		}
		if u.Username == rec.Username {
			return core.UserRecord{}, fmt.Errorf("username %s: %w", rec.Username, storage.ErrConflict)
		}
	}
	s.users = append(s.users, rec)
	return rec, nil
}

func (s *Store) UpdateUser(_ context.Context, id core.ID, patch core.UserPatch) (core.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.users, func(u core.UserRecord) bool { return u.ID == id })
	if i < 0 {
		return core.UserRecord{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	s.users[i].Name = patch.Name
	return s.users[i], nil
}

func (s *Store) ListExpenses(_ context.Context, owner core.ID) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if owner.IsZero() || e.OwnerID == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id core.ID) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
	if i < 0 {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	return s.expenses[i], nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = s.newID()
	}
	if slices.ContainsFunc(s.expenses, func(x core.Expense) bool { return x.ID == e.ID }) {
		return core.Expense{}, fmt.Errorf("expense id %s: %w", e.ID, storage.ErrConflict)
	}
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.expenses)
	s.expenses = slices.DeleteFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
	if len(s.expenses) == n {
		return fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
