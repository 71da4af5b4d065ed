package store

import (
	"time"

	"github.com/layer-3/sudomode/adapters/clock"
	"github.com/layer-3/sudomode/ports"
)

// Option configures a session store
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock ports.Clock
}

// WithTTL sets how long a session lives after its last write. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock sets the clock used to compute session expiry
func WithClock(c ports.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.NewSystem()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) expiry() time.Time {
	if o.ttl <= 0 {
		return time.Time{}
	}
	return o.clock.Now().Add(o.ttl)
}

func (o options) expired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !o.clock.Now().Before(expiresAt)
}
