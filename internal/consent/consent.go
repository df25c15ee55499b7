// Package consent gates sensitive collectors behind explicit user approval
// that persists across sessions.
package consent

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DebounceWindow is how long an unresolved request suppresses a new prompt
// for the same collector.
const DebounceWindow = 30 * time.Second

// Status of a pending approval record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Record tracks the most recent approval request for one collector.
type Record struct {
	RequestedAt time.Time
	Status      Status
}

// Prompt is what the user is asked to approve.
type Prompt struct {
	Name        string
	Description string
}

// Manager owns the approval set and the pending records.
type Manager struct {
	mu       sync.Mutex
	approved map[string]bool
	pending  map[string]Record
	store    Store
	surface  Surface
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager returns a Manager with an empty approval set. Call Load to read
// the persisted set.
func NewManager(store Store, surface Surface, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = &MemoryStore{}
	}
	return &Manager{
		approved: make(map[string]bool),
		pending:  make(map[string]Record),
		store:    store,
		surface:  surface,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Load replaces the in-memory set with the persisted one. Read failures and
// corrupt data leave the set empty; they are logged, never returned.
func (m *Manager) Load() {
	names, err := m.store.Load()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approved = make(map[string]bool, len(names))
	if err != nil {
		var corrupt *CorruptError
		if errors.As(err, &corrupt) {
			m.logger.Warn("approvals_corrupt_discarded", zap.String("path", corrupt.Path), zap.Error(err))
		} else {
			m.logger.Warn("approvals_load_failed", zap.Error(err))
		}
		return
	}
	for _, n := range names {
		m.approved[n] = true
	}
}

// IsApproved reports whether name is in the approval set.
func (m *Manager) IsApproved(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approved[name]
}

// Approved returns the approval set, sorted.
func (m *Manager) Approved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

// Pending returns the latest request record for name.
func (m *Manager) Pending(name string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.pending[name]
	return r, ok
}

// Request asks the user to approve p.Name. It returns true immediately if
// the name is already approved, and false without prompting while an
// earlier request for the same name is unresolved and younger than
// DebounceWindow. A surface error counts as a rejection and is returned.
func (m *Manager) Request(ctx context.Context, p Prompt) (bool, error) {
	m.mu.Lock()
	if m.approved[p.Name] {
		m.mu.Unlock()
		return true, nil
	}
	now := m.now()
	if rec, ok := m.pending[p.Name]; ok && rec.Status == StatusPending && now.Sub(rec.RequestedAt) < DebounceWindow {
		m.mu.Unlock()
		m.logger.Debug("approval_request_debounced", zap.String("collector", p.Name))
		return false, nil
	}
	m.pending[p.Name] = Record{RequestedAt: now, Status: StatusPending}
	m.mu.Unlock()

	if m.surface == nil {
		m.resolve(p.Name, now, false)
		return false, errors.New("no confirmation surface configured")
	}

	ok, err := m.surface.Confirm(ctx, p)
	if err != nil {
		m.resolve(p.Name, now, false)
		m.logger.Warn("approval_prompt_failed", zap.String("collector", p.Name), zap.Error(err))
		return false, err
	}
	m.resolve(p.Name, now, ok)
	if ok {
		m.logger.Info("collector_approved", zap.String("collector", p.Name))
	} else {
		m.logger.Info("collector_rejected", zap.String("collector", p.Name))
	}
	return ok, nil
}

// resolve settles the pending record created at requestedAt. A newer
// request for the same name keeps its own record.
func (m *Manager) resolve(name string, requestedAt time.Time, ok bool) {
	m.mu.Lock()
	status := StatusRejected
	if ok {
		status = StatusApproved
		m.approved[name] = true
	}
	if rec, exists := m.pending[name]; !exists || rec.RequestedAt.Equal(requestedAt) {
		m.pending[name] = Record{RequestedAt: requestedAt, Status: status}
	}
	names := m.sortedLocked()
	m.mu.Unlock()

	if ok {
		m.persist(names)
	}
}

// Grant adds name to the approval set without prompting.
func (m *Manager) Grant(name string) {
	m.mu.Lock()
	m.approved[name] = true
	names := m.sortedLocked()
	m.mu.Unlock()
	m.persist(names)
}

// Clear empties the approval set and persists the empty set.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.approved = make(map[string]bool)
	m.pending = make(map[string]Record)
	m.mu.Unlock()
	m.persist(nil)
}

func (m *Manager) persist(names []string) {
	if err := m.store.Save(names); err != nil {
		m.logger.Warn("approvals_save_failed", zap.Error(err))
	}
}

func (m *Manager) sortedLocked() []string {
	names := make([]string, 0, len(m.approved))
	for n := range m.approved {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
