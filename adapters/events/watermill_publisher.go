package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/sudomode/ports"
)

const (
	TopicLogin         = "sudomode.login"
	TopicLogout        = "sudomode.logout"
	TopicSudoActivated = "sudomode.activated"
)

// SessionEvent is the payload of login and logout events
type SessionEvent struct {
	MemberID  string `json:"member_id"`
	SessionID string `json:"session_id"`
}

// SudoModeActivatedEvent is the payload of sudo mode activation events
type SudoModeActivatedEvent struct {
	MemberID    string `json:"member_id,omitempty"`
	SessionID   string `json:"session_id"`
	ActivatedAt int64  `json:"activated_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, memberID, sessionID string) error {
	return p.publish(ctx, TopicLogin, SessionEvent{MemberID: memberID, SessionID: sessionID})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, memberID, sessionID string) error {
	return p.publish(ctx, TopicLogout, SessionEvent{MemberID: memberID, SessionID: sessionID})
}

// PublishSudoModeActivated publishes a sudo mode activation event
func (p *WatermillPublisher) PublishSudoModeActivated(ctx context.Context, memberID, sessionID string, activatedAt time.Time) error {
	return p.publish(ctx, TopicSudoActivated, SudoModeActivatedEvent{
		MemberID:    memberID,
		SessionID:   sessionID,
		ActivatedAt: activatedAt.Unix(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) PublishLogin(context.Context, string, string) error  { return nil }
func (NopPublisher) PublishLogout(context.Context, string, string) error { return nil }
func (NopPublisher) PublishSudoModeActivated(context.Context, string, string, time.Time) error {
	return nil
}
