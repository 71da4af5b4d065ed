package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/sudomode/adapters/clock"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
)

// AuthService handles authentication business logic
type AuthService struct {
	members        ports.MemberStore
	authenticators []ports.Authenticator
	listeners      []ports.AuthenticationListener
	eventPub       ports.EventPublisher
	clock          ports.Clock
	logger         watermill.LoggerAdapter
}

// AuthOption configures an AuthService
type AuthOption func(*AuthService)

// WithListeners registers listeners run after every successful login, in order
func WithListeners(listeners ...ports.AuthenticationListener) AuthOption {
	return func(s *AuthService) {
		s.listeners = append(s.listeners, listeners...)
	}
}

// WithAuthEventPublisher publishes login and logout events
func WithAuthEventPublisher(pub ports.EventPublisher) AuthOption {
	return func(s *AuthService) {
		s.eventPub = pub
	}
}

// WithAuthClock sets the clock used for password expiry checks
func WithAuthClock(c ports.Clock) AuthOption {
	return func(s *AuthService) {
		s.clock = c
	}
}

// WithAuthLogger sets the logger
func WithAuthLogger(logger watermill.LoggerAdapter) AuthOption {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// NewAuthService creates a new authentication service.
// Authenticators are tried in order and the first success wins.
func NewAuthService(members ports.MemberStore, authenticators []ports.Authenticator, opts ...AuthOption) *AuthService {
	s := &AuthService{
		members:        members,
		authenticators: authenticators,
		clock:          clock.NewSystem(),
		logger:         watermill.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates a member, binds it to the session and notifies the listeners
func (s *AuthService) Login(ctx context.Context, session ports.Session, email, password string) (*core.Member, error) {
	member, err := s.authenticate(ctx, core.Credentials{Identifier: email, Password: password})
	if err != nil {
		return nil, err
	}

	if err := session.Set(ctx, core.SessionMemberIDKey, member.ID); err != nil {
		return nil, fmt.Errorf("failed to bind member to session: %w", err)
	}

	for _, l := range s.listeners {
		if err := l.OnAuthenticationSuccess(ctx, member, session); err != nil {
			return nil, fmt.Errorf("login listener failed: %w", err)
		}
	}

	s.logger.Info("Member logged in", watermill.LogFields{"member_id": member.ID, "session_id": session.ID()})
	s.publish(ctx, "login", member.ID, session.ID())

	return member, nil
}

// VerifyPassword re-checks the password of an already authenticated member.
// The authentication data is the member's unique identifier plus the submitted password.
func (s *AuthService) VerifyPassword(ctx context.Context, member *core.Member, password string) error {
	if member == nil || password == "" {
		return core.ErrInvalidCredentials
	}

	verified, err := s.authenticate(ctx, core.Credentials{Identifier: member.Email, Password: password})
	if err != nil {
		return err
	}
	if verified.ID != member.ID {
		return core.ErrInvalidCredentials
	}
	return nil
}

// CurrentMember returns the member bound to the session
func (s *AuthService) CurrentMember(ctx context.Context, session ports.Session) (*core.Member, error) {
	id, ok, err := session.Get(ctx, core.SessionMemberIDKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok || id == "" {
		return nil, core.ErrNotAuthenticated
	}

	member, err := s.members.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrMemberNotFound) {
			return nil, core.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	return member, nil
}

// Logout destroys the session, dropping the sudo mode state along with it
func (s *AuthService) Logout(ctx context.Context, store ports.SessionStore, session ports.Session) error {
	memberID, _, err := session.Get(ctx, core.SessionMemberIDKey)
	if err != nil {
		s.logger.Error("Failed to read member before logout", err, watermill.LogFields{"session_id": session.ID()})
	}

	if err := store.Destroy(ctx, session.ID()); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	s.logger.Info("Member logged out", watermill.LogFields{"member_id": memberID, "session_id": session.ID()})
	s.publish(ctx, "logout", memberID, session.ID())

	return nil
}

// PasswordChangeRequired reports whether the member must change their password
func (s *AuthService) PasswordChangeRequired(member *core.Member) bool {
	return member.IsPasswordExpired(s.clock.Now())
}

func (s *AuthService) authenticate(ctx context.Context, creds core.Credentials) (*core.Member, error) {
	var lastErr error = core.ErrInvalidCredentials
	for _, a := range s.authenticators {
		member, err := a.Authenticate(ctx, creds)
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, core.ErrInvalidCredentials) {
			s.logger.Debug("Authenticator rejected credentials", watermill.LogFields{"error": err.Error()})
		}
		lastErr = err
	}

	// locked members and unknown hashes surface as invalid credentials to callers
	if errors.Is(lastErr, core.ErrMemberLocked) || errors.Is(lastErr, core.ErrUnsupportedHash) {
		return nil, core.ErrInvalidCredentials
	}
	return nil, lastErr
}

func (s *AuthService) publish(ctx context.Context, event, memberID, sessionID string) {
	if s.eventPub == nil {
		return
	}

	var err error
	switch event {
	case "login":
		err = s.eventPub.PublishLogin(ctx, memberID, sessionID)
	case "logout":
		err = s.eventPub.PublishLogout(ctx, memberID, sessionID)
	}
	if err != nil {
		// Log the error but don't fail the operation
		s.logger.Error("Failed to publish "+event+" event", err, watermill.LogFields{"session_id": sessionID})
	}
}
