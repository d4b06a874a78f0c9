package storage

import "sync"

// MemoryStateStore keeps the persisted state in memory. Used by tests and as
// a fallback when the SQLite store cannot be opened; state does not survive
// a restart. Save/Load round-trip through the JSON envelope so the in-memory
// path exercises the same encoding as the durable one.
type MemoryStateStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// Load returns the last saved state, or nil when nothing has been saved.
func (s *MemoryStateStore) Load() (*PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil, nil
	}
	return DecodeState(s.data)
}

// Save encodes and retains the state.
func (s *MemoryStateStore) Save(state *PersistedState) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStateStore) Close() error { return nil }
