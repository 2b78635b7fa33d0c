package viewer

import (
	"sync"
	"time"
)

// AutoEnd fires a callback when the projection's auto-end instant is reached.
// Call Rearm after applying a status change.
type AutoEnd struct {
	p    *Projection
	fire func()
	now  func() time.Time

	mu    sync.Mutex
	timer *time.Timer
}

// NewAutoEnd arms a timer for p. fire runs on its own goroutine.
func NewAutoEnd(p *Projection, fire func()) *AutoEnd {
	a := &AutoEnd{p: p, fire: fire, now: time.Now}
	a.Rearm()
	return a
}

// Rearm cancels any pending timer and schedules a new one if the schedule is live.
// Returns whether a timer is pending.
func (a *AutoEnd) Rearm() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	at, ok := a.p.AutoEndAt()
	if !ok {
		return false
	}
	d := at.Sub(a.now())
	if d < 0 {
		d = 0
	}
	a.timer = time.AfterFunc(d, a.fire)
	return true
}

// Stop cancels the pending timer.
func (a *AutoEnd) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
