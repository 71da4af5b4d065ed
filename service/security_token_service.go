package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
)

// SecurityTokenService issues and checks the per-session anti-forgery token
type SecurityTokenService struct {
	enabled bool
}

// NewSecurityTokenService creates a token service. A disabled service accepts every request.
func NewSecurityTokenService(enabled bool) *SecurityTokenService {
	return &SecurityTokenService{enabled: enabled}
}

// Enabled reports whether tokens are enforced
func (s *SecurityTokenService) Enabled() bool {
	return s.enabled
}

// Token returns the session's token, minting one on first use
func (s *SecurityTokenService) Token(ctx context.Context, session ports.Session) (string, error) {
	token, ok, err := session.Get(ctx, core.SessionSecurityTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read security token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}

	token = uuid.New().String()
	if err := session.Set(ctx, core.SessionSecurityTokenKey, token); err != nil {
		return "", fmt.Errorf("failed to store security token: %w", err)
	}
	return token, nil
}

// Check compares the submitted token with the session's token
func (s *SecurityTokenService) Check(ctx context.Context, session ports.Session, submitted string) (bool, error) {
	if !s.enabled {
		return true, nil
	}
	if submitted == "" {
		return false, nil
	}

	token, ok, err := session.Get(ctx, core.SessionSecurityTokenKey)
	if err != nil {
		return false, fmt.Errorf("failed to read security token: %w", err)
	}
	if !ok || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(submitted)) == 1, nil
}
