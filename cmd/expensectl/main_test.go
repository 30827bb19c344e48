package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/server"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
	"expensetracker/internal/storage/memory"
)

func startGateway(t *testing.T) {
	t.Helper()
	seed, err := storage.DefaultSeed()
	if err != nil {
		t.Fatal(err)
	}
	repo, err := memory.NewSeeded(context.Background(), seed)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := server.New(server.Config{}, repo, nil, applog.New(applog.Config{Output: io.Discard}), nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	t.Setenv("GATEWAY_URL", ts.URL)
	t.Setenv("SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CURRENCY_SYMBOL", "$")
	t.Setenv("PAGE_SIZE", "10")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--plain"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestSessionCommands(t *testing.T) {
	startGateway(t)

	if _, err := execute(t, "list"); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("list before login err = %v", err)
	}
	if _, err := execute(t, "login", "admin", "nope"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("bad login err = %v", err)
	}

	out, err := execute(t, "login", "admin", "admin123")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Signed in as Admin User") {
		t.Fatalf("login output = %q", out)
	}

	out, err = execute(t, "whoami")
	if err != nil || !strings.Contains(out, "@admin") {
		t.Fatalf("whoami = %q, %v", out, err)
	}

	out, err = execute(t, "profile", "set-name", "Site", "Admin")
	if err != nil || !strings.Contains(out, "Signed in as Site Admin") {
		t.Fatalf("set-name = %q, %v", out, err)
	}

	if _, err := execute(t, "logout"); err != nil {
		t.Fatal(err)
	}
	out, _ = execute(t, "whoami")
	if !strings.Contains(out, "Not signed in.") {
		t.Fatalf("whoami after logout = %q", out)
	}
}

func TestExpenseCommands(t *testing.T) {
	startGateway(t)
	if _, err := execute(t, "login", "admin", "admin123"); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Groceries", "Bus pass top-up", "Electricity bill", "3 expenses"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "add", "--category", "Food", "--amount", "9,99", "--date", "2024-03-05", "Street", "food")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Street food") || !strings.Contains(out, "$9.99") {
		t.Fatalf("add output = %q", out)
	}
	id := strings.Fields(out)[0]

	if _, err := execute(t, "add", "--category", "Travel", "--amount", "5", "Taxi"); err == nil {
		t.Fatal("expected validation error for unknown category")
	}

	out, err = execute(t, "list", "--category", "Food", "--search", "street")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Street food") || strings.Contains(out, "Groceries") || !strings.Contains(out, "1 expense ") {
		t.Fatalf("filtered list:\n%s", out)
	}

	out, err = execute(t, "summary")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Total spent") || !strings.Contains(out, "$147.74") {
		t.Fatalf("summary:\n%s", out)
	}

	if _, err := execute(t, "rm", id); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "refresh")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "3 expenses loaded.") {
		t.Fatalf("refresh = %q", out)
	}
}

func TestCategoriesCommand(t *testing.T) {
	startGateway(t)
	out, err := execute(t, "categories")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Fields(out); len(got) != len(core.Categories()) || got[0] != "Food" {
		t.Fatalf("categories = %q", got)
	}
}

func TestExportRequiresSheetConfig(t *testing.T) {
	startGateway(t)
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	if _, err := execute(t, "export"); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("export err = %v", err)
	}
}

func TestSheetsAuthRequiresClient(t *testing.T) {
	startGateway(t)
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	if _, err := execute(t, "sheets-auth"); err == nil || !strings.Contains(err.Error(), "GOOGLE_OAUTH_CLIENT_JSON") {
		t.Fatalf("sheets-auth err = %v", err)
	}
}
