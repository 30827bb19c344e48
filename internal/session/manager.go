// Package session owns the client's authentication state: login, signup,
// logout and the persisted session restored at startup.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
)

var (
	// ErrSuperseded is returned by a login or signup whose result arrived
	// after a newer login, signup or logout was issued. State is untouched.
	ErrSuperseded = errors.New("session: superseded by a newer request")

	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrUserGone         = errors.New("session: user no longer exists")
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// Manager is the single session container of a running client. Each login,
// signup and logout takes the next request token; only the holder of the
// latest token may apply its result.
type Manager struct {
	users   gateway.UserGateway
	storage Storage
	policy  CredentialPolicy
	logger  *slog.Logger

	mu    sync.Mutex
	cur   core.Session
	token uint64
}

type Option func(*Manager)

func WithPolicy(p CredentialPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(users gateway.UserGateway, storage Storage, opts ...Option) *Manager {
	m := &Manager{
		users:   users,
		storage: storage,
		policy:  PlaintextPolicy{},
		logger:  slog.Default(),
		cur:     core.Anonymous(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a copy of the session.
func (m *Manager) Current() core.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.Clone()
}

// Restore loads the persisted session. Missing, unreadable or corrupt state
// yields an anonymous session.
func (m *Manager) Restore() core.Session {
	s := core.Anonymous()
	data, err := m.storage.Read()
	switch {
	case err != nil:
		m.logger.Warn("Failed to read persisted session", "error", err)
	case data != nil:
		restored, ok := decodeSession(data)
		if ok {
			s = restored
		} else {
			m.logger.Warn("Ignoring unusable persisted session")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = s
	return m.cur.Clone()
}

func (m *Manager) Login(ctx context.Context, username, password string) (core.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return m.Current(), &core.ValidationError{Field: "username", Reason: "is required"}
	}
	if password == "" {
		return m.Current(), &core.ValidationError{Field: "password", Reason: "is required"}
	}

	token := m.begin()
	records, err := m.users.FindUsersByUsername(ctx, username)
	if err != nil {
		return m.fail(token, &core.AuthError{Reason: core.ErrRequestFailed, Cause: err})
	}
	for _, r := range records {
		if r.Username == username && m.policy.Matches(r.Password, password) {
			return m.succeed(token, r.User())
		}
	}
	return m.fail(token, &core.AuthError{Reason: core.ErrInvalidCredentials})
}

func (m *Manager) Signup(ctx context.Context, username, password, name string) (core.Session, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	switch {
	case utf8.RuneCountInString(username) < minUsernameLen:
		return m.Current(), &core.ValidationError{Field: "username", Reason: fmt.Sprintf("must be at least %d characters", minUsernameLen)}
	case utf8.RuneCountInString(password) < minPasswordLen:
		return m.Current(), &core.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	case name == "":
		return m.Current(), &core.ValidationError{Field: "name", Reason: "is required"}
	}

	sealed, err := m.policy.Seal(password)
	if err != nil {
		return m.Current(), err
	}

	token := m.begin()
	existing, err := m.users.FindUsersByUsername(ctx, username)
	if err != nil {
		return m.fail(token, &core.AuthError{Reason: core.ErrRequestFailed, Cause: err})
	}
	if len(existing) > 0 {
		return m.fail(token, &core.AuthError{Reason: core.ErrUsernameExists})
	}
	created, err := m.users.CreateUser(ctx, core.UserRecord{Username: username, Password: sealed, Name: name})
	if err != nil {
		return m.fail(token, &core.AuthError{Reason: core.ErrRequestFailed, Cause: err})
	}
	if created.ID.IsZero() {
		return m.fail(token, &core.AuthError{Reason: core.ErrRequestFailed, Cause: errors.New("gateway returned a user without id")})
	}
	return m.succeed(token, created.User())
}

// Logout clears the session and its persisted copy. It always succeeds and
// supersedes any login or signup still in flight.
func (m *Manager) Logout() core.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token++
	m.cur = core.Anonymous()
	m.erasePersisted()
	return m.cur.Clone()
}

// ClearError drops the message of the last failed attempt.
func (m *Manager) ClearError() core.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur.LastError = ""
	if m.cur.Status == core.StatusFailed {
		m.cur.Status = core.StatusAnonymous
	}
	return m.cur.Clone()
}

// UpdateProfile changes the display name of the signed-in user. The result
// is dropped if the session changed while the request was in flight.
func (m *Manager) UpdateProfile(ctx context.Context, name string) (core.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return m.Current(), &core.ValidationError{Field: "name", Reason: "is required"}
	}

	m.mu.Lock()
	if !m.cur.IsAuthenticated() {
		m.mu.Unlock()
		return m.Current(), ErrNotAuthenticated
	}
	token, id := m.token, m.cur.User.ID
	m.mu.Unlock()

	rec, err := m.users.UpdateUser(ctx, id, core.UserPatch{Name: name})
	if err != nil {
		return m.Current(), &core.FetchError{Op: "update profile", Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if token != m.token || !m.cur.IsAuthenticated() || m.cur.User.ID != id {
		return m.cur.Clone(), ErrSuperseded
	}
	u := rec.User()
	if u.ID.IsZero() {
		u.ID = id
	}
	m.cur.User = &u
	m.persist()
	return m.cur.Clone(), nil
}

// Refresh re-reads the signed-in user from the gateway so profile changes
// made elsewhere show up. The session is kept if the user record is gone.
func (m *Manager) Refresh(ctx context.Context) (core.Session, error) {
	m.mu.Lock()
	if !m.cur.IsAuthenticated() {
		m.mu.Unlock()
		return m.Current(), ErrNotAuthenticated
	}
	token, u := m.token, *m.cur.User
	m.mu.Unlock()

	records, err := m.users.FindUsersByUsername(ctx, u.Username)
	if err != nil {
		return m.Current(), &core.FetchError{Op: "refresh user", Cause: err}
	}
	idx := slices.IndexFunc(records, func(r core.UserRecord) bool { return r.ID == u.ID })
	if idx < 0 {
		return m.Current(), &core.FetchError{Op: "refresh user", Cause: ErrUserGone}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if token != m.token || !m.cur.IsAuthenticated() || m.cur.User.ID != u.ID {
		return m.cur.Clone(), ErrSuperseded
	}
	fresh := records[idx].User()
	if fresh != *m.cur.User {
		m.cur.User = &fresh
		m.persist()
	}
	return m.cur.Clone(), nil
}

func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token++
	m.cur.Status = core.StatusAuthenticating
	m.cur.LastError = ""
	return m.token
}

func (m *Manager) succeed(token uint64, u core.User) (core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != m.token {
		m.logger.Debug("Discarding superseded auth result", "username", u.Username)
		return m.cur.Clone(), ErrSuperseded
	}
	m.cur = core.Session{User: &u, Status: core.StatusAuthenticated}
	m.persist()
	m.logger.Info("User authenticated", "user_id", u.ID.String(), "username", u.Username)
	return m.cur.Clone(), nil
}

func (m *Manager) fail(token uint64, authErr *core.AuthError) (core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != m.token {
		return m.cur.Clone(), ErrSuperseded
	}
	m.cur = core.Session{Status: core.StatusFailed, LastError: authErr.Reason.Error()}
	m.erasePersisted()
	if authErr.Cause != nil {
		m.logger.Warn("Authentication request failed", "error", authErr.Cause)
	}
	return m.cur.Clone(), authErr
}

// persist and erasePersisted must be called with mu held. A storage failure
// leaves the in-memory session as is.
func (m *Manager) persist() {
	data, err := encodeSession(m.cur)
	if err == nil {
		err = m.storage.Write(data)
	}
	if err != nil {
		m.logger.Error("Failed to persist session", "error", err)
	}
}

func (m *Manager) erasePersisted() {
	if err := m.storage.Delete(); err != nil {
		m.logger.Error("Failed to erase persisted session", "error", err)
	}
}
