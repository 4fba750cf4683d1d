// Package tabletimer implements the engine's timer capability:
// schedule/cancel by callback id, with expiry delivered back into the
// engine as an ordinary command rather than a goroutine mutating table
// state directly.
package tabletimer

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Scheduler is the engine-facing timer capability.
type Scheduler interface {
	Schedule(tableID string, d time.Duration, callbackID string)
	Cancel(tableID string, callbackID string)
}

// FireFunc is invoked when a scheduled timer expires. It must not block;
// the receiving Table treats the call as an ordinary TimerFired command and
// takes its own lock.
type FireFunc func(tableID, callbackID string)

// QuartzScheduler uses coder/quartz as an injectable clock so timer expiry
// is deterministically testable. Production wiring uses quartz.NewReal();
// tests substitute quartz.NewMock(t) and advance it explicitly.
type QuartzScheduler struct {
	clock  quartz.Clock
	onFire FireFunc

	mu     sync.Mutex
	timers map[string]*quartz.Timer
}

func NewQuartzScheduler(clock quartz.Clock, onFire FireFunc) *QuartzScheduler {
	return &QuartzScheduler{
		clock:  clock,
		onFire: onFire,
		timers: make(map[string]*quartz.Timer),
	}
}

func key(tableID, callbackID string) string {
	return tableID + "|" + callbackID
}

// Schedule arms (or re-arms, replacing any pending timer for the same key) a
// callback to fire after d.
func (s *QuartzScheduler) Schedule(tableID string, d time.Duration, callbackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tableID, callbackID)
	if existing, ok := s.timers[k]; ok {
		existing.Stop()
	}
	s.timers[k] = s.clock.AfterFunc(d, func() {
		s.onFire(tableID, callbackID)
	})
}

// Cancel stops a pending callback, if any.
func (s *QuartzScheduler) Cancel(tableID string, callbackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tableID, callbackID)
	if t, ok := s.timers[k]; ok {
		t.Stop()
		delete(s.timers, k)
	}
}
