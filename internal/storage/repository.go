// Package storage defines the gateway server's persistence port and the
// json-server style seed document shared by every backend.
package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"expensetracker/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Repository stores user and expense documents. Create methods keep a
// caller-supplied id and assign one otherwise.
type Repository interface {
	ListUsers(ctx context.Context) ([]core.UserRecord, error)
	FindUsersByUsername(ctx context.Context, username string) ([]core.UserRecord, error)
	GetUser(ctx context.Context, id core.ID) (core.UserRecord, error)
	CreateUser(ctx context.Context, rec core.UserRecord) (core.UserRecord, error)
	UpdateUser(ctx context.Context, id core.ID, patch core.UserPatch) (core.UserRecord, error)

	// ListExpenses returns expenses in insertion order. A zero owner lists all.
	ListExpenses(ctx context.Context, owner core.ID) ([]core.Expense, error)
	GetExpense(ctx context.Context, id core.ID) (core.Expense, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id core.ID) error

	Ping(ctx context.Context) error
	Close() error
}

// Seed is the db.json document json-server serves.
type Seed struct {
	Users    []core.UserRecord `json:"users"`
	Expenses []core.Expense    `json:"expenses"`
}

//go:embed db.json
var defaultSeed []byte

// DefaultSeed returns the bundled demo accounts and expenses.
func DefaultSeed() (Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads a seed document, falling back to the bundled one when
// path is empty.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// SeedIfEmpty loads seed into repo when it holds no users yet and reports
// whether it did.
func SeedIfEmpty(ctx context.Context, repo Repository, seed Seed) (bool, error) {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return false, nil
	}
	for _, u := range seed.Users {
		if _, err := repo.CreateUser(ctx, u); err != nil {
			return false, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	for _, e := range seed.Expenses {
		if _, err := repo.CreateExpense(ctx, e); err != nil {
			return false, fmt.Errorf("seed expense %s: %w", e.ID, err)
		}
	}
	return true, nil
}
