package event

import (
	"fmt"

	"github.com/davegallo/centrex/internal/verb"
)

// Kind labels a domain event variant for metrics and logs.
type Kind string

const (
	KindDialStatusChanged Kind = "dial_status_changed"
	KindDigitsGathered    Kind = "digits_gathered"
	KindSpeechDetected    Kind = "speech_detected"
	KindTimerFired        Kind = "timer_fired"
	KindVerbSucceeded     Kind = "verb_succeeded"
	KindVerbFailed        Kind = "verb_failed"
	KindCallEnded         Kind = "call_ended"
)

// TimerKind names the three session timers. At most one timer per kind is
// pending for a session at any instant.
type TimerKind string

const (
	TimerIdle          TimerKind = "IDLE_TIMEOUT"
	TimerMaxSpeechWait TimerKind = "MAX_SPEECH_WAIT_TIMEOUT"
	TimerSession       TimerKind = "SESSION_TIMEOUT"
)

// Event is one normalized occurrence consumed by a session's state machine.
// Every event belongs to exactly one session.
type Event interface {
	SessionRef() string
	EventKind() Kind
}

type DialStatusChanged struct {
	Ref    string
	Status DialStatus
}

func (e DialStatusChanged) SessionRef() string { return e.Ref }
func (e DialStatusChanged) EventKind() Kind    { return KindDialStatusChanged }

type DigitsGathered struct {
	Ref    string
	Digits string
}

func (e DigitsGathered) SessionRef() string { return e.Ref }
func (e DigitsGathered) EventKind() Kind    { return KindDigitsGathered }

type SpeechDetected struct {
	Ref        string
	Transcript string
}

func (e SpeechDetected) SessionRef() string { return e.Ref }
func (e SpeechDetected) EventKind() Kind    { return KindSpeechDetected }

type TimerFired struct {
	Ref   string
	Timer TimerKind
}

func (e TimerFired) SessionRef() string { return e.Ref }
func (e TimerFired) EventKind() Kind    { return KindTimerFired }

// VerbSucceeded is the correlated response to a dispatched verb.
type VerbSucceeded struct {
	Result verb.Result
}

func (e VerbSucceeded) SessionRef() string { return e.Result.SessionRef }
func (e VerbSucceeded) EventKind() Kind    { return KindVerbSucceeded }

// VerbFailed carries a typed execution error back to the owning session so
// the machine can decide retry versus graceful termination locally.
type VerbFailed struct {
	Ref string
	Err *ExecError
}

func (e VerbFailed) SessionRef() string { return e.Ref }
func (e VerbFailed) EventKind() Kind    { return KindVerbFailed }

type CallEnded struct {
	Ref   string
	Cause string
}

func (e CallEnded) SessionRef() string { return e.Ref }
func (e CallEnded) EventKind() Kind    { return KindCallEnded }

// ExecError wraps a driver-level failure for one verb execution. It never
// crosses a session boundary.
type ExecError struct {
	Verb      verb.Type
	Retryable bool
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Verb, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
