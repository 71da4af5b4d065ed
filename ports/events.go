package ports

import (
	"context"
	"time"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, memberID, sessionID string) error
	PublishLogout(ctx context.Context, memberID, sessionID string) error
	PublishSudoModeActivated(ctx context.Context, memberID, sessionID string, activatedAt time.Time) error
}
