package ports

import (
	"context"
	"time"

	"github.com/layer-3/sudomode/core"
)

// Clock is the authoritative source of the current time
type Clock interface {
	Now() time.Time
}

// Authenticator verifies submitted credentials and returns the matching member
type Authenticator interface {
	Authenticate(ctx context.Context, creds core.Credentials) (*core.Member, error)
}

// AuthenticationListener is invoked synchronously after a successful login
type AuthenticationListener interface {
	OnAuthenticationSuccess(ctx context.Context, member *core.Member, session Session) error
}

// SudoModeAuthorizer checks and activates the sudo mode window of a session
type SudoModeAuthorizer interface {
	Check(ctx context.Context, session Session) (bool, error)
	Activate(ctx context.Context, session Session) (bool, error)
	Lifetime() int
}
