package machine

import (
	"time"

	"github.com/davegallo/centrex/internal/event"
)

// scheduleTimer arms one timer of the given kind, cancelling and replacing
// any timer of that kind still pending. The generation check keeps a stale
// callback that lost the race with Stop from delivering a fire event.
func (m *Machine) scheduleTimer(kind event.TimerKind, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTerminated {
		return
	}

	entry := m.timers[kind]
	if entry == nil {
		entry = &timerEntry{}
		m.timers[kind] = entry
	} else if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.gen++
	gen := entry.gen

	entry.timer = time.AfterFunc(d, func() {
		m.mu.Lock()
		current := m.timers[kind]
		live := current != nil && current.gen == gen
		m.mu.Unlock()
		if !live {
			return
		}
		m.Deliver(event.TimerFired{Ref: m.sess.Ref, Timer: kind})
	})
}

func (m *Machine) cancelTimer(kind event.TimerKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.timers[kind]
	if entry == nil {
		return
	}
	entry.gen++
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(m.timers, kind)
}

// scheduleSessionTimer bounds total session lifetime. The delay is always
// recomputed from the wall-clock start instant so repeated reschedules never
// extend the call beyond MaxSessionDuration.
func (m *Machine) scheduleSessionTimer() {
	m.mu.Lock()
	start := m.startedAt
	m.mu.Unlock()
	m.scheduleTimer(event.TimerSession, sessionTimerDelay(start, m.sess.MaxSessionDuration, time.Now()))
}

func sessionTimerDelay(start time.Time, maxDuration time.Duration, now time.Time) time.Duration {
	remaining := maxDuration - now.Sub(start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *Machine) pendingTimerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
