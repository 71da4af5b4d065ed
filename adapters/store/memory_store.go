package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
)

// MemoryStore is an in-memory implementation of the SessionStore interface
// Sessions are lost on restart
type MemoryStore struct {
	sessions map[string]*memoryEntry
	opts     options
	mu       sync.RWMutex
}

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

var _ ports.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		opts:     buildOptions(opts),
	}
}

// Create starts an empty session
func (s *MemoryStore) Create(ctx context.Context) (ports.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.sessions[id] = &memoryEntry{
		values:    make(map[string]string),
		expiresAt: s.opts.expiry(),
	}
	return &memorySession{id: id, store: s}, nil
}

// Load returns the session with the given ID
func (s *MemoryStore) Load(ctx context.Context, id string) (ports.Session, error) {
	if _, err := s.entry(id); err != nil {
		return nil, err
	}
	return &memorySession{id: id, store: s}, nil
}

// Destroy removes a session
func (s *MemoryStore) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// entry returns the live entry for id, evicting it when expired
func (s *MemoryStore) entry(id string) (*memoryEntry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if s.opts.expired(e.expiresAt) {
		_ = s.Destroy(context.Background(), id)
		return nil, core.ErrSessionNotFound
	}
	return e, nil
}

type memorySession struct {
	id    string
	store *MemoryStore
}

func (m *memorySession) ID() string {
	return m.id
}

func (m *memorySession) Get(ctx context.Context, key string) (string, bool, error) {
	e, err := m.store.entry(m.id)
	if err != nil {
		return "", false, err
	}

	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	value, ok := e.values[key]
	return value, ok, nil
}

func (m *memorySession) Set(ctx context.Context, key, value string) error {
	e, err := m.store.entry(m.id)
	if err != nil {
		return err
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	e.values[key] = value
	if !e.expiresAt.IsZero() {
		e.expiresAt = m.store.opts.expiry()
	}
	return nil
}

func (m *memorySession) Delete(ctx context.Context, key string) error {
	e, err := m.store.entry(m.id)
	if err != nil {
		return err
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	delete(e.values, key)
	return nil
}
