package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/sudomode/adapters/store"
	"github.com/layer-3/sudomode/ports"
	"github.com/stretchr/testify/require"
)

var mockNow = time.Date(2019, 3, 1, 12, 0, 0, 0, time.UTC)

var errStoreDown = errors.New("store unreachable")

func newSession(t *testing.T) ports.Session {
	t.Helper()
	sess, err := store.NewMemoryStore().Create(context.Background())
	require.NoError(t, err)
	return sess
}

// brokenSession fails every operation
type brokenSession struct{}

func (brokenSession) ID() string { return "broken" }
func (brokenSession) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (brokenSession) Set(context.Context, string, string) error { return errStoreDown }
func (brokenSession) Delete(context.Context, string) error      { return errStoreDown }

type recordedEvent struct {
	kind      string
	memberID  string
	sessionID string
	at        time.Time
}

// recordingPublisher collects published events and fails when err is set
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) record(e recordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) PublishLogin(_ context.Context, memberID, sessionID string) error {
	return p.record(recordedEvent{kind: "login", memberID: memberID, sessionID: sessionID})
}

func (p *recordingPublisher) PublishLogout(_ context.Context, memberID, sessionID string) error {
	return p.record(recordedEvent{kind: "logout", memberID: memberID, sessionID: sessionID})
}

func (p *recordingPublisher) PublishSudoModeActivated(_ context.Context, memberID, sessionID string, at time.Time) error {
	return p.record(recordedEvent{kind: "activated", memberID: memberID, sessionID: sessionID, at: at})
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

// unreadableSession accepts writes but fails every read
type unreadableSession struct {
	ports.Session
}

func (unreadableSession) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
