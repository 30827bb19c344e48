// Package app wires the session, the expense store and the listing state
// into the single state container a client front end talks to.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/analytics"
	"expensetracker/internal/core"
	"expensetracker/internal/expenses"
	"expensetracker/internal/filter"
	"expensetracker/internal/gateway"
	"expensetracker/internal/session"
)

type Options struct {
	Policy   session.CredentialPolicy
	PageSize int
	Logger   *slog.Logger
	Now      func() time.Time
}

// App owns one session and the expenses that belong to it.
type App struct {
	Session  *session.Manager
	Expenses *expenses.Store
	Listing  *filter.Listing

	logger *slog.Logger
	now    func() time.Time
}

func New(gw gateway.Gateway, storage session.Storage, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sessOpts := []session.Option{session.WithLogger(opts.Logger.With("component", "session"))}
	if opts.Policy != nil {
		sessOpts = append(sessOpts, session.WithPolicy(opts.Policy))
	}
	return &App{
		Session:  session.NewManager(gw, storage, sessOpts...),
		Expenses: expenses.NewStore(gw, expenses.WithLogger(opts.Logger.With("component", "expenses")), expenses.WithClock(opts.Now)),
		Listing:  filter.NewListing(opts.PageSize),
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Start restores the persisted session and, when signed in, loads the
// user's expenses. A load failure is returned but the session stays.
func (a *App) Start(ctx context.Context) (core.Session, error) {
	s := a.Session.Restore()
	if !s.IsAuthenticated() {
		return s, nil
	}
	_, err := a.Expenses.Load(ctx, s.User.ID)
	return s, err
}

func (a *App) Login(ctx context.Context, username, password string) (core.Session, error) {
	s, err := a.Session.Login(ctx, username, password)
	if err != nil {
		return s, err
	}
	return s, a.afterAuth(ctx, s)
}

func (a *App) Signup(ctx context.Context, username, password, name string) (core.Session, error) {
	s, err := a.Session.Signup(ctx, username, password, name)
	if err != nil {
		return s, err
	}
	return s, a.afterAuth(ctx, s)
}

func (a *App) afterAuth(ctx context.Context, s core.Session) error {
	a.Expenses.Reset()
	a.Listing.ClearFilters()
	_, err := a.Expenses.Load(ctx, s.User.ID)
	return err
}

// Logout ends the session and drops every expense from memory.
func (a *App) Logout() core.Session {
	s := a.Session.Logout()
	a.Expenses.Reset()
	a.Listing.ClearFilters()
	return s
}

// Refresh re-reads the user record and the expense list concurrently.
func (a *App) Refresh(ctx context.Context) error {
	s := a.Session.Current()
	if !s.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.Session.Refresh(ctx)
		return err
	})
	g.Go(func() error {
		_, err := a.Expenses.Load(ctx, s.User.ID)
		return err
	})
	return g.Wait()
}

func (a *App) AddExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	if !a.Session.Current().IsAuthenticated() {
		return core.Expense{}, session.ErrNotAuthenticated
	}
	return a.Expenses.Add(ctx, d)
}

func (a *App) RemoveExpense(ctx context.Context, id core.ID) error {
	if !a.Session.Current().IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return a.Expenses.Remove(ctx, id)
}

// Summary computes the dashboard figures for the current snapshot.
func (a *App) Summary() core.Summary {
	return analytics.Summarize(a.Expenses.Snapshot(), a.now())
}

// Page renders the current listing page.
func (a *App) Page() filter.Page {
	return a.Listing.View(a.Expenses.Snapshot())
}

// UserMessage turns an operation error into the text shown to the user.
func UserMessage(err error) string {
	var (
		ve *core.ValidationError
		ae *core.AuthError
		fe *core.FetchError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Field + " " + ve.Reason
	case errors.Is(err, core.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, core.ErrUsernameExists):
		return "Username already exists"
	case errors.As(err, &ae):
		return "Could not reach the server, please try again"
	case errors.Is(err, session.ErrNotAuthenticated):
		return "Please log in first"
	case errors.Is(err, session.ErrSuperseded):
		return "Request replaced by a newer one"
	case errors.As(err, &fe):
		return "Failed to " + fe.Op + ", please try again"
	default:
		return err.Error()
	}
}
