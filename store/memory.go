package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/personamesh/core"
)

// Memory is an in-memory Store used by tests and zero-configuration runs.
// Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	personas map[string]*core.PersonaRecord
	sessions map[string]*core.SessionRecord
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		personas: make(map[string]*core.PersonaRecord),
		sessions: make(map[string]*core.SessionRecord),
	}
}

// GetPersona implements Store.
func (m *Memory) GetPersona(_ context.Context, id string) (*core.PersonaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.personas[id], nil
}

// ListPersonas implements Store.
func (m *Memory) ListPersonas(_ context.Context) ([]*core.PersonaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*core.PersonaRecord, 0, len(m.personas))
	for _, rec := range m.personas {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// PutPersona implements Store.
func (m *Memory) PutPersona(_ context.Context, rec *core.PersonaRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.personas[rec.ID]; exists {
		return false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	m.personas[rec.ID] = rec
	return true, nil
}

// SaveSessions implements Store.
func (m *Memory) SaveSessions(_ context.Context, records []*core.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		m.sessions[rec.ID] = rec
	}
	return nil
}

// GetSession implements Store.
func (m *Memory) GetSession(_ context.Context, id string) (*core.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id], nil
}

// ListSessions implements Store.
func (m *Memory) ListSessions(_ context.Context, personaID string) ([]*core.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*core.SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		if personaID != "" && rec.PersonaID != personaID {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
