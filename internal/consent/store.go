package consent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StoreFileName is the fixed key under which approvals are persisted.
const StoreFileName = "approved-collectors.json"

// Store persists the approval set.
type Store interface {
	Load() ([]string, error) // returns nil, nil if nothing has been saved
	Save(names []string) error
}

// CorruptError is returned by Load when the saved data cannot be parsed.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return "corrupt approval store " + e.Path + ": " + e.Err.Error()
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// diskStore keeps a JSON array of collector names in a single file.
type diskStore struct {
	path string
}

// NewStore returns a Store backed by the XDG data directory.
// Path: $XDG_DATA_HOME/statebridge/approved-collectors.json or
// ~/.local/share/statebridge/approved-collectors.json
func NewStore() (Store, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	return NewStoreAt(filepath.Join(dir, StoreFileName))
}

// NewStoreAt returns a Store writing to path, creating its directory.
func NewStoreAt(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: path}, nil
}

// DataDir returns the statebridge-specific XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "statebridge"), nil
}

func (d *diskStore) Path() string { return d.path }

// Save writes names atomically via a temp file + os.Rename.
func (d *diskStore) Save(names []string) (err error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to persist approvals: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), "approvals-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist approvals: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist approvals: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist approvals: %w", err)
	}
	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist approvals: %w", err)
	}
	return nil
}

func (d *diskStore) Load() ([]string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read approvals: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, &CorruptError{Path: d.path, Err: err}
	}
	return names, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	Names   []string
	SaveErr error
	LoadErr error
	Saves   int
}

func (m *MemoryStore) Load() ([]string, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return append([]string(nil), m.Names...), nil
}

func (m *MemoryStore) Save(names []string) error {
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Names = append([]string(nil), names...)
	return nil
}
