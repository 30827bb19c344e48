// Package gateway declares the remote data gateway used by the session and
// the expense store. It is the only place the client performs network I/O.
package gateway

import (
	"context"

	"expensetracker/internal/core"
)

// Ports for outbound adapters.
type (
	UserGateway interface {
		// FindUsersByUsername returns every user record whose username matches,
		// passwords included.
		FindUsersByUsername(ctx context.Context, username string) ([]core.UserRecord, error)
		CreateUser(ctx context.Context, u core.UserRecord) (core.UserRecord, error)
		UpdateUser(ctx context.Context, id core.ID, patch core.UserPatch) (core.UserRecord, error)
	}

	ExpenseGateway interface {
		// ListExpenses returns the owner's expenses in gateway order.
		ListExpenses(ctx context.Context, owner core.ID) ([]core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, id core.ID) error
	}

	Gateway interface {
		UserGateway
		ExpenseGateway
	}
)
