package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/sudomode/adapters/clock"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
)

// MemberService manages the security settings of member profiles
type MemberService struct {
	members ports.MemberStore
	clock   ports.Clock
	logger  watermill.LoggerAdapter
}

// NewMemberService creates a new member service. A nil clock means the wall clock.
func NewMemberService(members ports.MemberStore, c ports.Clock, logger watermill.LoggerAdapter) *MemberService {
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &MemberService{members: members, clock: c, logger: logger}
}

// Get returns the member with the given ID
func (s *MemberService) Get(ctx context.Context, id string) (*core.Member, error) {
	return s.members.Get(ctx, id)
}

// CanEdit reports whether actor may edit target
func (s *MemberService) CanEdit(actor, target *core.Member) bool {
	if actor == nil || target == nil {
		return false
	}
	return actor.Admin || actor.ID == target.ID
}

// CanRequirePasswordChange reports whether actor may force target to change password.
// Members reset their own password directly instead.
func (s *MemberService) CanRequirePasswordChange(actor, target *core.Member) bool {
	return actor != nil && target != nil && actor.ID != target.ID && s.CanEdit(actor, target)
}

// RequiresPasswordChangeOnNextLogin reports whether the member's password has expired
func (s *MemberService) RequiresPasswordChangeOnNextLogin(member *core.Member) bool {
	return member.IsPasswordExpired(s.clock.Now())
}

// SetRequiresPasswordChangeOnNextLogin sets or clears the password expiry of the target member.
// Setting only moves unset or future expiries to now, so the date of a past expiry is kept.
// Clearing only removes expiries that are already in the past.
func (s *MemberService) SetRequiresPasswordChangeOnNextLogin(ctx context.Context, actor *core.Member, targetID string, value bool) (*core.Member, error) {
	target, err := s.members.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !s.CanRequirePasswordChange(actor, target) {
		return nil, core.ErrForbidden
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	changed := false
	switch {
	case value && (target.PasswordExpiry == nil || target.PasswordExpiry.After(now)):
		target.PasswordExpiry = &now
		changed = true
	case !value && target.IsPasswordExpired(now):
		target.PasswordExpiry = nil
		changed = true
	}

	if !changed {
		return target, nil
	}
	if err := s.members.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}

	s.logger.Info("Password expiry updated", watermill.LogFields{
		"member_id": target.ID,
		"actor_id":  actor.ID,
		"required":  value,
	})
	return target, nil
}
