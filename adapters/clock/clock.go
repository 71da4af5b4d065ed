package clock

import (
	"sync"
	"time"

	"github.com/layer-3/sudomode/ports"
)

// System reads the wall clock
type System struct{}

// NewSystem returns the wall clock
func NewSystem() ports.Clock {
	return System{}
}

// Now returns the current time
func (System) Now() time.Time {
	return time.Now()
}

// Mock is a settable clock for tests
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a clock frozen at now
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

// Now returns the frozen time
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to now
func (m *Mock) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance moves the clock forward by d
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
