package contact

import (
	"context"
	"sync"
)

// MemStore is an in-process [Store]. Sessions are copied on the way in and
// out so callers never share state with the store.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	records  []Record
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]Session)}
}

// Load implements [Store].
func (m *MemStore) Load(ctx context.Context, contactID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[contactID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Upsert implements [Store].
func (m *MemStore) Upsert(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "upsert", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ContactID] = *s
	return nil
}

// InsertRecord implements [Store].
func (m *MemStore) InsertRecord(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "insert_record", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *r)
	return nil
}

// Records returns a copy of every record for contactID, oldest first.
func (m *MemStore) Records(contactID string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if r.ContactID == contactID {
			out = append(out, r)
		}
	}
	return out
}

// Ping implements [Pinger].
func (m *MemStore) Ping(context.Context) error { return nil }

var (
	_ Store  = (*MemStore)(nil)
	_ Pinger = (*MemStore)(nil)
)
