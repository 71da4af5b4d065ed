package ports

import (
	"context"

	"github.com/layer-3/sudomode/core"
)

// Session is a per-user key/value mapping owned by the host session mechanism
type Session interface {
	ID() string
	// Get returns the value stored under key, ok is false when the key is absent
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SessionStore creates, loads and destroys sessions
type SessionStore interface {
	Create(ctx context.Context) (Session, error)
	// Load returns core.ErrSessionNotFound for unknown or expired sessions
	Load(ctx context.Context, id string) (Session, error)
	Destroy(ctx context.Context, id string) error
}

// MemberStore interface for member lookups and updates
type MemberStore interface {
	Get(ctx context.Context, id string) (*core.Member, error)
	FindByEmail(ctx context.Context, email string) (*core.Member, error)
	Save(ctx context.Context, member *core.Member) error
}
