package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"expensetracker/internal/core"
)

// Storage is the durable local slot holding the persisted session blob.
// Read returns (nil, nil) when nothing is stored.
type Storage interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Delete() error
}

// snapshot is the persisted shape: {user, isAuthenticated, loading, error}.
type snapshot struct {
	User            *core.User `json:"user"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	Loading         bool       `json:"loading"`
	Error           *string    `json:"error"`
}

func encodeSession(s core.Session) ([]byte, error) {
	snap := snapshot{User: s.User, IsAuthenticated: s.IsAuthenticated()}
	if s.LastError != "" {
		msg := s.LastError
		snap.Error = &msg
	}
	return json.Marshal(snap)
}

// decodeSession accepts only blobs describing an authenticated user with an id.
func decodeSession(data []byte) (core.Session, bool) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Anonymous(), false
	}
	if !snap.IsAuthenticated || snap.User == nil || snap.User.ID.IsZero() {
		return core.Anonymous(), false
	}
	u := *snap.User
	return core.Session{User: &u, Status: core.StatusAuthenticated}, true
}

// FileStorage keeps the blob in a single file, replaced atomically.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Read() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return data, nil
}

func (f *FileStorage) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (f *FileStorage) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemoryStorage) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryStorage) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
