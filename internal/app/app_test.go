package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/session"
)

// memGateway is a minimal in-process document store.
type memGateway struct {
	mu       sync.Mutex
	users    []core.UserRecord
	expenses []core.Expense
	nextID   int
	failList bool
}

func (g *memGateway) FindUsersByUsername(_ context.Context, username string) ([]core.UserRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []core.UserRecord
	for _, u := range g.users {
		if u.Username == username {
			out = append(out, u)
		}
	}
	return out, nil
}

func (g *memGateway) CreateUser(_ context.Context, u core.UserRecord) (core.UserRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	u.ID = core.ID(fmt.Sprintf("u%d", g.nextID))
	g.users = append(g.users, u)
	return u, nil
}

func (g *memGateway) UpdateUser(_ context.Context, id core.ID, p core.UserPatch) (core.UserRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.users {
		if g.users[i].ID == id {
			g.users[i].Name = p.Name
			return g.users[i], nil
		}
	}
	return core.UserRecord{}, errors.New("404")
}

func (g *memGateway) ListExpenses(_ context.Context, owner core.ID) ([]core.Expense, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failList {
		return nil, errors.New("503")
	}
	var out []core.Expense
	for _, e := range g.expenses {
		if e.OwnerID == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *memGateway) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	e.ID = core.ID(fmt.Sprintf("e%d", g.nextID))
	g.expenses = append(g.expenses, e)
	return e, nil
}

func (g *memGateway) DeleteExpense(_ context.Context, id core.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, e := range g.expenses {
		if e.ID == id {
			g.expenses = append(g.expenses[:i], g.expenses[i+1:]...)
			return nil
		}
	}
	return errors.New("404")
}

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newFixture() (*App, *memGateway, *session.MemoryStorage) {
	gw := &memGateway{
		users: []core.UserRecord{
			{ID: "1", Username: "admin", Password: "admin123", Name: "Admin User"},
			{ID: "2", Username: "jane", Password: "jane123", Name: "Jane Doe"},
		},
		expenses: []core.Expense{
			{ID: "a", OwnerID: "1", Category: core.Food, Amount: core.NewAmount(50), Date: core.NewDate(2024, 3, 15), Description: "Lunch"},
			{ID: "b", OwnerID: "1", Category: core.Bills, Amount: core.NewAmount(20), Date: core.NewDate(2024, 3, 15), Description: "Phone"},
			{ID: "c", OwnerID: "1", Category: core.Housing, Amount: core.NewAmount(100), Date: core.NewDate(2024, 2, 1), Description: "Rent"},
			{ID: "z", OwnerID: "2", Category: core.Food, Amount: core.NewAmount(9), Date: core.NewDate(2024, 3, 1), Description: "Jane's"},
		},
	}
	storage := &session.MemoryStorage{}
	a := New(gw, storage, Options{Now: func() time.Time { return fixedNow }, PageSize: 2})
	return a, gw, storage
}

func TestLoginLoadsExpenses(t *testing.T) {
	a, _, _ := newFixture()
	if _, err := a.Login(context.Background(), "admin", "admin123"); err != nil {
		t.Fatal(err)
	}
	snap := a.Expenses.Snapshot()
	if len(snap) != 3 || snap[2].ID != "c" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	s := a.Summary()
	if s.Total.String() != "170" || s.Today.String() != "70" || s.LastMonth.String() != "100" {
		t.Fatalf("unexpected summary %+v", s)
	}
	p := a.Page()
	if len(p.Items) != 2 || p.PageCount != 2 {
		t.Fatalf("unexpected page %+v", p)
	}
}

func TestLogoutClearsStoreAndListing(t *testing.T) {
	a, _, storage := newFixture()
	if _, err := a.Login(context.Background(), "admin", "admin123"); err != nil {
		t.Fatal(err)
	}
	a.Listing.SetSearch("rent")
	a.Logout()
	if len(a.Expenses.Snapshot()) != 0 {
		t.Fatal("expenses survived logout")
	}
	if c, _, _ := a.Listing.State(); !c.IsZero() {
		t.Fatal("filters survived logout")
	}
	if data, _ := storage.Read(); data != nil {
		t.Fatal("persisted session survived logout")
	}
	if _, err := a.AddExpense(context.Background(), core.Draft{}); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("got %v", err)
	}
}

func TestStartRestoresAndLoads(t *testing.T) {
	a, gw, storage := newFixture()
	if _, err := a.Login(context.Background(), "jane", "jane123"); err != nil {
		t.Fatal(err)
	}

	b := New(gw, storage, Options{Now: func() time.Time { return fixedNow }})
	s, err := b.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.User.Username != "jane" || len(b.Expenses.Snapshot()) != 1 {
		t.Fatalf("unexpected start %+v / %d", s, len(b.Expenses.Snapshot()))
	}

	gw.failList = true
	c := New(gw, storage, Options{})
	s, err = c.Start(context.Background())
	var fe *core.FetchError
	if !errors.As(err, &fe) || !s.IsAuthenticated() {
		t.Fatalf("load failure should keep the session: %+v, %v", s, err)
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	a, gw, _ := newFixture()
	if _, err := a.Login(context.Background(), "admin", "admin123"); err != nil {
		t.Fatal(err)
	}
	e, err := a.AddExpense(context.Background(), core.Draft{Category: "Transport", Amount: "3.20", Date: "2024-03-14", Description: "Bus"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Expenses.Snapshot()[0].ID != e.ID || !e.CreatedAt.Equal(fixedNow) {
		t.Fatalf("added expense not first: %+v", e)
	}
	if err := a.RemoveExpense(context.Background(), e.ID); err != nil {
		t.Fatal(err)
	}
	if len(a.Expenses.Snapshot()) != 3 || len(gw.expenses) != 4 {
		t.Fatalf("remove did not apply: %d / %d", len(a.Expenses.Snapshot()), len(gw.expenses))
	}
}

func TestRefresh(t *testing.T) {
	a, gw, _ := newFixture()
	if err := a.Refresh(context.Background()); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("got %v", err)
	}
	if _, err := a.Login(context.Background(), "admin", "admin123"); err != nil {
		t.Fatal(err)
	}
	gw.mu.Lock()
	gw.users[0].Name = "Boss"
	gw.expenses = append(gw.expenses, core.Expense{ID: "d", OwnerID: "1", Category: core.Other, Amount: core.NewAmount(1), Date: core.NewDate(2024, 3, 16), Description: "new"})
	gw.mu.Unlock()

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a.Session.Current().User.Name != "Boss" || a.Expenses.Snapshot()[0].ID != "d" {
		t.Fatalf("refresh missed changes")
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&core.ValidationError{Field: "amount", Reason: "must be a positive number"}, "amount must be a positive number"},
		{&core.AuthError{Reason: core.ErrInvalidCredentials}, "Invalid username or password"},
		{&core.AuthError{Reason: core.ErrUsernameExists}, "Username already exists"},
		{&core.AuthError{Reason: core.ErrRequestFailed, Cause: errors.New("x")}, "Could not reach the server, please try again"},
		{&core.FetchError{Op: "load expenses", Cause: errors.New("x")}, "Failed to load expenses, please try again"},
		{session.ErrNotAuthenticated, "Please log in first"},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
