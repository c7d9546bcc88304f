package machine

import (
	"testing"
	"time"

	"github.com/davegallo/centrex/internal/event"
)

func TestSessionTimerDelayNeverNegative(t *testing.T) {
	start := time.Now()
	cases := []struct {
		name    string
		elapsed time.Duration
		maxDur  time.Duration
		want    time.Duration
	}{
		{"fresh session", 0, time.Minute, time.Minute},
		{"halfway", 30 * time.Second, time.Minute, 30 * time.Second},
		{"exactly exhausted", time.Minute, time.Minute, 0},
		{"over budget", 90 * time.Second, time.Minute, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sessionTimerDelay(start, tc.maxDur, start.Add(tc.elapsed))
			if got != tc.want {
				t.Fatalf("sessionTimerDelay() = %v, want %v", got, tc.want)
			}
			if got < 0 {
				t.Fatalf("sessionTimerDelay() = %v, must never be negative", got)
			}
		})
	}
}

func TestScheduleTimerCancelAndReplace(t *testing.T) {
	m := New(Options{Session: defaultSession()})

	// The short first timer must be replaced by the long second one: no fire
	// event may reach the queue.
	m.scheduleTimer(event.TimerIdle, 20*time.Millisecond)
	m.scheduleTimer(event.TimerIdle, time.Hour)

	if n := m.pendingTimerCount(); n != 1 {
		t.Fatalf("pending timers = %d, want 1", n)
	}

	time.Sleep(60 * time.Millisecond)
	select {
	case ev := <-m.events:
		t.Fatalf("unexpected event %+v, cancelled timer must not fire", ev)
	default:
	}
}

func TestScheduleTimerDistinctKindsCoexist(t *testing.T) {
	m := New(Options{Session: defaultSession()})
	m.scheduleTimer(event.TimerIdle, time.Hour)
	m.scheduleTimer(event.TimerMaxSpeechWait, time.Hour)
	m.scheduleTimer(event.TimerSession, time.Hour)

	if n := m.pendingTimerCount(); n != 3 {
		t.Fatalf("pending timers = %d, want 3", n)
	}
}

func TestCancelTimerSwallowsLateFire(t *testing.T) {
	m := New(Options{Session: defaultSession()})
	m.scheduleTimer(event.TimerMaxSpeechWait, 5*time.Millisecond)
	m.cancelTimer(event.TimerMaxSpeechWait)

	time.Sleep(30 * time.Millisecond)
	select {
	case ev := <-m.events:
		t.Fatalf("unexpected event %+v after cancel", ev)
	default:
	}
}

func TestTimerFireDeliversEvent(t *testing.T) {
	m := New(Options{Session: defaultSession()})
	m.scheduleTimer(event.TimerIdle, 5*time.Millisecond)

	select {
	case ev := <-m.events:
		fired, ok := ev.(event.TimerFired)
		if !ok || fired.Timer != event.TimerIdle || fired.Ref != "ch-1" {
			t.Fatalf("event = %+v, want idle TimerFired for ch-1", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}
}
