package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/sudomode/adapters/clock"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
)

// SudoModeService activates and checks the elevated permission window of a session.
// The state is a single timestamp stored in the session under core.SudoModeSessionKey.
type SudoModeService struct {
	lifetimeMinutes int
	clock           ports.Clock
	eventPub        ports.EventPublisher
	logger          watermill.LoggerAdapter
}

var (
	_ ports.SudoModeAuthorizer     = (*SudoModeService)(nil)
	_ ports.AuthenticationListener = (*SudoModeService)(nil)
)

// SudoModeOption configures a SudoModeService
type SudoModeOption func(*SudoModeService)

// WithSudoClock sets the clock used to stamp and compare activations
func WithSudoClock(c ports.Clock) SudoModeOption {
	return func(s *SudoModeService) {
		s.clock = c
	}
}

// WithSudoEventPublisher publishes an event on every activation
func WithSudoEventPublisher(pub ports.EventPublisher) SudoModeOption {
	return func(s *SudoModeService) {
		s.eventPub = pub
	}
}

// WithSudoLogger sets the logger
func WithSudoLogger(logger watermill.LoggerAdapter) SudoModeOption {
	return func(s *SudoModeService) {
		s.logger = logger
	}
}

// NewSudoModeService creates a new sudo mode service
func NewSudoModeService(cfg core.SudoModeConfig, opts ...SudoModeOption) (*SudoModeService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &SudoModeService{
		lifetimeMinutes: cfg.LifetimeMinutes,
		clock:           clock.NewSystem(),
		logger:          watermill.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check reports whether sudo mode was activated within the configured lifetime.
// Missing or malformed values count as not activated; only store failures are returned.
func (s *SudoModeService) Check(ctx context.Context, session ports.Session) (bool, error) {
	raw, ok, err := session.Get(ctx, core.SudoModeSessionKey)
	if err != nil {
		return false, fmt.Errorf("failed to read sudo mode state: %w", err)
	}
	if !ok {
		return false, nil
	}

	lastActivated, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || lastActivated <= 0 {
		return false, nil
	}

	now := s.clock.Now().Unix()
	if s.lifetimeMinutes == 0 {
		// only the activation second itself
		return lastActivated >= now, nil
	}
	return lastActivated > now-int64(s.lifetimeMinutes)*60, nil
}

// Activate stamps the current time into the session, restarting the window
func (s *SudoModeService) Activate(ctx context.Context, session ports.Session) (bool, error) {
	now := s.clock.Now()
	if err := session.Set(ctx, core.SudoModeSessionKey, strconv.FormatInt(now.Unix(), 10)); err != nil {
		return false, fmt.Errorf("failed to store sudo mode state: %w", err)
	}

	fields := watermill.LogFields{"session_id": session.ID(), "lifetime_minutes": s.lifetimeMinutes}
	s.logger.Debug("Sudo mode activated", fields)

	if s.eventPub != nil {
		memberID, _, err := session.Get(ctx, core.SessionMemberIDKey)
		if err != nil {
			s.logger.Error("Failed to read member for sudo mode activation event", err, fields)
		}
		if err := s.eventPub.PublishSudoModeActivated(ctx, memberID, session.ID(), now); err != nil {
			// the activation is already stored, which is the critical part
			s.logger.Error("Failed to publish sudo mode activation", err, fields)
		}
	}

	return true, nil
}

// Lifetime returns how long an activation lasts, in minutes
func (s *SudoModeService) Lifetime() int {
	return s.lifetimeMinutes
}

// OnAuthenticationSuccess activates sudo mode as part of a successful login
func (s *SudoModeService) OnAuthenticationSuccess(ctx context.Context, member *core.Member, session ports.Session) error {
	_, err := s.Activate(ctx, session)
	return err
}
