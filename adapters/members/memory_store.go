package members

import (
	"context"
	"strings"
	"sync"

	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
)

// MemoryStore is an in-memory implementation of the MemberStore interface
type MemoryStore struct {
	members map[string]*core.Member
	mu      sync.RWMutex
}

var _ ports.MemberStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding copies of the given members
func NewMemoryStore(members ...*core.Member) *MemoryStore {
	s := &MemoryStore{members: make(map[string]*core.Member, len(members))}
	for _, m := range members {
		s.members[m.ID] = m.Clone()
	}
	return s
}

// Get returns a copy of the member with the given ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, core.ErrMemberNotFound
	}
	return m.Clone(), nil
}

// FindByEmail returns a copy of the member with the given email, compared case-insensitively
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members {
		if strings.EqualFold(m.Email, email) {
			return m.Clone(), nil
		}
	}
	return nil, core.ErrMemberNotFound
}

// Save stores a copy of the member
func (s *MemoryStore) Save(ctx context.Context, member *core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[member.ID] = member.Clone()
	return nil
}
