// Package sqlstore implements storage.Repository on database/sql, for
// SQLite (modernc, no cgo) and PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

var _ storage.Repository = (*Store)(nil)

type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	newID   func() core.ID
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDs replaces the uuid generator.
func WithIDs(fn func() core.ID) Option {
	return func(s *Store) { s.newID = fn }
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return open(SQLite, dsn, opts...)
}

// OpenPostgres connects to databaseURL and migrates it.
func OpenPostgres(databaseURL string, opts ...Option) (*Store, error) {
	return open(Postgres, databaseURL, opts...)
}

func open(d Dialect, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if d == SQLite {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: d,
		logger:  slog.Default(),
		newID:   func() core.ID { return core.ID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const userColumns = "id, username, password, name"

func scanUser(row interface{ Scan(...any) error }) (core.UserRecord, error) {
	var u core.UserRecord
	var id string
	if err := row.Scan(&id, &u.Username, &u.Password, &u.Name); err != nil {
		return core.UserRecord{}, err
	}
	u.ID = core.ID(id)
	return u, nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]core.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	out := []core.UserRecord{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListUsers(ctx context.Context) ([]core.UserRecord, error) {
	return s.queryUsers(ctx, "SELECT "+userColumns+" FROM users ORDER BY seq")
}

func (s *Store) FindUsersByUsername(ctx context.Context, username string) ([]core.UserRecord, error) {
	return s.queryUsers(ctx, "SELECT "+userColumns+" FROM users WHERE username = ? ORDER BY seq", username)
}

func (s *Store) GetUser(ctx context.Context, id core.ID) (core.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id.String())
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserRecord{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, rec core.UserRecord) (core.UserRecord, error) {
	if rec.ID.IsZero() {
		rec.ID = s.newID()
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO users (id, username, password, name) VALUES (?, ?, ?, ?)"),
		rec.ID.String(), rec.Username, rec.Password, rec.Name)
	if err != nil {
		return core.UserRecord{}, s.mapWriteError("create user", err)
	}
	s.logger.InfoContext(ctx, "User saved", "user_id", rec.ID, "username", rec.Username, "dialect", s.dialect)
	return rec, nil
}

func (s *Store) UpdateUser(ctx context.Context, id core.ID, patch core.UserPatch) (core.UserRecord, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE users SET name = ? WHERE id = ?"), patch.Name, id.String())
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.UserRecord{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

const expenseColumns = "id, user_id, category, amount, date, description, created_at"

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var e core.Expense
	var id, owner, category, date, createdAt string
	if err := row.Scan(&id, &owner, &category, &e.Amount.Decimal, &date, &e.Description, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.ID = core.ID(id)
	e.OwnerID = core.ID(owner)
	e.Category = core.Category(category)
	if d, err := core.ParseDate(date); err == nil {
		e.Date = d
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, owner core.ID) ([]core.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses"
	var args []any
	if !owner.IsZero() {
		query += " WHERE user_id = ?"
		args = append(args, owner.String())
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query+" ORDER BY seq"), args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetExpense(ctx context.Context, id core.ID) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+expenseColumns+" FROM expenses WHERE id = ?"), id.String())
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID.IsZero() {
		e.ID = s.newID()
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		e.ID.String(), e.OwnerID.String(), e.Category.String(), e.Amount.Decimal.String(),
		e.Date.String(), e.Description, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return core.Expense{}, s.mapWriteError("create expense", err)
	}
	s.logger.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"user_id", e.OwnerID,
		"category", e.Category,
		"amount", e.Amount.Decimal.String(),
		"dialect", s.dialect)
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id core.ID) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM expenses WHERE id = ?"), id.String())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) mapWriteError(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
