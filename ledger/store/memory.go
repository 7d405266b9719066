// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries map[ledger.EmployeeID][]ledger.Entry
	keys    map[ledger.Key]int // index into entries[employee] for keyed types
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[ledger.EmployeeID][]ledger.Entry),
		keys:    make(map[ledger.Key]int),
	}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

func (m *Memory) appendLocked(e ledger.Entry) error {
	if e.Type.Idempotent() {
		k := e.Key()
		if _, exists := m.keys[k]; exists {
			return &ledger.DuplicateKeyError{Key: k}
		}
		m.keys[k] = len(m.entries[e.EmployeeID])
	}
	m.entries[e.EmployeeID] = append(m.entries[e.EmployeeID], e)
	return nil
}

// Upsert inserts or replaces a keyed entry.
func (m *Memory) Upsert(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := e.Key()
	i, exists := m.keys[k]
	if !exists {
		if err := m.appendLocked(e); err != nil {
			return ledger.Entry{}, err
		}
		return e, nil
	}

	stored := m.entries[e.EmployeeID][i]
	stored.AmountMinutes = e.AmountMinutes
	stored.Notes = e.Notes
	stored.CreatedBy = e.CreatedBy
	stored.LeaveRequestID = e.LeaveRequestID
	stored.UpdatedAt = e.CreatedAt
	m.entries[e.EmployeeID][i] = stored
	return stored, nil
}

func (m *Memory) Query(_ context.Context, employeeID ledger.EmployeeID, f ledger.Filter) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Entry
	for _, e := range m.entries[employeeID] {
		if f.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) Count(_ context.Context, employeeID ledger.EmployeeID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[employeeID]), nil
}
