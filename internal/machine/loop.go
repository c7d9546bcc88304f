package machine

import (
	"context"
	"strings"

	"github.com/davegallo/centrex/internal/assistant"
	"github.com/davegallo/centrex/internal/event"
	"github.com/davegallo/centrex/internal/verb"
)

// Internal events re-entering the loop from async work.
type configLoaded struct {
	ref string
	cfg *assistant.Config
	err error
}

func (e configLoaded) SessionRef() string    { return e.ref }
func (e configLoaded) EventKind() event.Kind { return "config_loaded" }

type agentDecided struct {
	ref    string
	action Action
	err    error
}

func (e agentDecided) SessionRef() string    { return e.ref }
func (e agentDecided) EventKind() event.Kind { return "agent_decided" }

const unavailableMessage = "The other party is not available right now."

func (m *Machine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.terminate(m.causeOrDefault("teardown"))
			return
		case ev := <-m.events:
			m.handle(ctx, ev)
			if m.State() == StateTerminated {
				return
			}
		}
	}
}

func (m *Machine) causeOrDefault(fallback string) string {
	if m.endCause != "" {
		return m.endCause
	}
	return fallback
}

func (m *Machine) handle(ctx context.Context, ev event.Event) {
	switch ev := ev.(type) {
	case configLoaded:
		m.handleConfigLoaded(ctx, ev)
	case agentDecided:
		m.handleAgentDecided(ctx, ev)
	case event.VerbSucceeded:
		m.handleVerbSucceeded(ev)
	case event.VerbFailed:
		m.handleVerbFailed(ctx, ev)
	case event.DigitsGathered:
		m.handleDigits(ctx, ev)
	case event.SpeechDetected:
		m.handleSpeech(ctx, ev)
	case event.DialStatusChanged:
		m.handleDialStatus(ctx, ev)
	case event.TimerFired:
		m.handleTimer(ctx, ev)
	case event.CallEnded:
		m.terminate(causeOr(ev.Cause, "hangup"))
	}
}

// handleConfigLoaded leaves Initializing. A load failure is fatal to the
// session: hang up immediately and terminate without ever reaching Idle.
func (m *Machine) handleConfigLoaded(ctx context.Context, ev configLoaded) {
	if ev.err != nil {
		if m.metrics != nil {
			m.metrics.ConfigLoadFailures.Inc()
		}
		// No verb is ever dispatched for a rejected session; the caller-facing
		// hangup is issued by the termination hook.
		m.terminate("config_error")
		return
	}

	m.cfg = ev.cfg
	m.dispatch(ctx, verb.Request{SessionRef: m.sess.Ref, Type: verb.TypeAnswer},
		func() {
			m.setState(StateIdle)
			m.say(ctx, m.cfg.ConversationSettings.FirstMessage, func() { m.armGather(ctx) })
		}, nil)
}

func (m *Machine) handleAgentDecided(ctx context.Context, ev agentDecided) {
	if m.State() != StateProcessing {
		return
	}
	if ev.err != nil {
		m.gracefulEnd(ctx, "agent_error", m.errorMessage())
		return
	}

	switch ev.action.Kind {
	case ActionSay:
		m.say(ctx, ev.action.Text, func() { m.armGather(ctx) })
	case ActionDial:
		m.setState(StateDialing)
		m.dispatch(ctx, verb.Request{
			SessionRef: m.sess.Ref,
			Type:       verb.TypeDial,
			Dial:       &verb.DialParams{Destination: ev.action.Destination},
		}, nil, nil)
	case ActionHangup:
		m.gracefulEnd(ctx, "agent_hangup", m.goodbyeMessage())
	default:
		m.gracefulEnd(ctx, "agent_error", m.errorMessage())
	}
}

func (m *Machine) handleVerbSucceeded(ev event.VerbSucceeded) {
	p := m.pending
	if p == nil || p.req.Type != ev.Result.Type {
		return
	}
	m.pending = nil
	if p.onSuccess != nil {
		p.onSuccess()
	}
}

// handleVerbFailed applies the per-action failure policy: one retry for
// idempotent verbs on retryable errors, otherwise the action's failure path
// or a graceful end.
func (m *Machine) handleVerbFailed(ctx context.Context, ev event.VerbFailed) {
	p := m.pending
	if p == nil {
		return
	}
	if ev.Err != nil && ev.Err.Retryable && !p.retried && retryableVerb(p.req.Type) {
		p.retried = true
		if err := m.exec.Execute(ctx, p.req); err == nil {
			return
		}
	}

	m.pending = nil
	if p.onFailure != nil {
		p.onFailure()
		return
	}
	if m.State() == StateEnding {
		m.terminate(m.causeOrDefault("verb_error"))
		return
	}
	m.gracefulEnd(ctx, "verb_error", m.errorMessage())
}

func (m *Machine) handleDigits(ctx context.Context, ev event.DigitsGathered) {
	if m.State() != StateGathering {
		return
	}
	m.idleCount = 0
	m.gather.buffer += ev.Digits

	digits := m.gather.buffer
	finished := false
	if key := m.gather.finishOnKey; key != "" {
		if i := strings.Index(digits, key); i >= 0 {
			digits = digits[:i]
			finished = true
		}
	}
	if !finished && m.gather.maxDigits > 0 && len(digits) >= m.gather.maxDigits {
		digits = digits[:m.gather.maxDigits]
		finished = true
	}

	if !finished {
		// Keep collecting; every keypress restarts the input timers.
		m.scheduleTimer(event.TimerMaxSpeechWait, m.sess.MaxSpeechWaitTimeout)
		m.scheduleTimer(event.TimerIdle, m.idleTimeout())
		return
	}

	m.cancelTimer(event.TimerMaxSpeechWait)
	m.cancelTimer(event.TimerIdle)
	m.think(ctx, Input{Kind: InputDigits, Digits: digits})
}

func (m *Machine) handleSpeech(ctx context.Context, ev event.SpeechDetected) {
	if m.State() != StateGathering {
		return
	}
	m.idleCount = 0
	m.cancelTimer(event.TimerMaxSpeechWait)
	m.cancelTimer(event.TimerIdle)
	m.think(ctx, Input{Kind: InputSpeech, Transcript: ev.Transcript})
}

func (m *Machine) handleDialStatus(ctx context.Context, ev event.DialStatusChanged) {
	if m.State() != StateDialing {
		return
	}
	m.pending = nil
	if ev.Status == event.DialAnswered {
		m.armGather(ctx)
		return
	}
	m.say(ctx, unavailableMessage, func() { m.armGather(ctx) })
}

func (m *Machine) handleTimer(ctx context.Context, ev event.TimerFired) {
	switch ev.Timer {
	case event.TimerSession:
		// Total lifetime exhausted; end without pleasantries.
		m.endCause = "max_session_duration"
		m.setState(StateEnding)
		m.cancelTimer(event.TimerIdle)
		m.cancelTimer(event.TimerMaxSpeechWait)
		m.dispatch(ctx, verb.Request{SessionRef: m.sess.Ref, Type: verb.TypeHangup},
			func() { m.terminate("max_session_duration") },
			func() { m.terminate("max_session_duration") })
	case event.TimerIdle:
		if s := m.State(); s != StateGathering && s != StateIdle {
			return
		}
		m.idleCount++
		if m.idleCount > m.maxIdleCount() {
			m.gracefulEnd(ctx, "idle_timeout", m.goodbyeMessage())
			return
		}
		m.say(ctx, m.idleMessage(), func() { m.armGather(ctx) })
	case event.TimerMaxSpeechWait:
		if m.State() != StateGathering {
			return
		}
		if m.gather.buffer != "" {
			digits := m.gather.buffer
			m.cancelTimer(event.TimerIdle)
			m.think(ctx, Input{Kind: InputDigits, Digits: digits})
			return
		}
		// No input is not an error; let the agent move the conversation on.
		m.think(ctx, Input{Kind: InputNone})
	}
}

// dispatch sends one verb through the execution bridge and records it as the
// outstanding action. The machine suspends logically on it; other sessions
// are unaffected.
func (m *Machine) dispatch(ctx context.Context, req verb.Request, onSuccess, onFailure func()) {
	if err := m.exec.Execute(ctx, req); err != nil {
		// A validation failure on a machine-built verb is a local bug;
		// follow the action's failure path.
		if onFailure != nil {
			onFailure()
			return
		}
		if m.State() == StateEnding {
			m.terminate(m.causeOrDefault("verb_error"))
			return
		}
		m.gracefulEnd(ctx, "verb_error", m.errorMessage())
		return
	}
	m.pending = &pendingVerb{req: req, onSuccess: onSuccess, onFailure: onFailure}
}

func (m *Machine) say(ctx context.Context, text string, next func()) {
	m.setState(StateSpeaking)
	m.cancelTimer(event.TimerIdle)
	m.cancelTimer(event.TimerMaxSpeechWait)
	m.dispatch(ctx, verb.Request{
		SessionRef: m.sess.Ref,
		Type:       verb.TypeSay,
		Say:        &verb.SayParams{Text: text},
	}, next, nil)
}

// armGather opens the caller-input window and starts the timers bounding it.
func (m *Machine) armGather(ctx context.Context) {
	m.setState(StateGathering)
	m.gather = gatherState{finishOnKey: "#", maxDigits: 16}

	maxDigits := m.gather.maxDigits
	m.dispatch(ctx, verb.Request{
		SessionRef: m.sess.Ref,
		Type:       verb.TypeGather,
		Gather: &verb.GatherParams{
			Source:      verb.SourceSpeechAndDTMF,
			FinishOnKey: m.gather.finishOnKey,
			MaxDigits:   &maxDigits,
		},
	}, func() {
		m.scheduleTimer(event.TimerMaxSpeechWait, m.sess.MaxSpeechWaitTimeout)
		m.scheduleTimer(event.TimerIdle, m.idleTimeout())
	}, nil)
}

func (m *Machine) think(ctx context.Context, in Input) {
	m.setState(StateProcessing)
	cfg := m.cfg
	go func() {
		action, err := m.agent.NextAction(ctx, cfg, in)
		m.Deliver(agentDecided{ref: m.sess.Ref, action: action, err: err})
	}()
}

// gracefulEnd says a farewell, hangs up, and terminates with the given cause.
func (m *Machine) gracefulEnd(ctx context.Context, cause, message string) {
	if s := m.State(); s == StateEnding || s == StateTerminated {
		return
	}
	m.endCause = cause
	m.setState(StateEnding)
	m.cancelTimer(event.TimerIdle)
	m.cancelTimer(event.TimerMaxSpeechWait)

	hangup := func() {
		m.dispatch(ctx, verb.Request{SessionRef: m.sess.Ref, Type: verb.TypeHangup},
			func() { m.terminate(cause) },
			func() { m.terminate(cause) })
	}
	if strings.TrimSpace(message) == "" {
		hangup()
		return
	}
	m.dispatch(ctx, verb.Request{
		SessionRef: m.sess.Ref,
		Type:       verb.TypeSay,
		Say:        &verb.SayParams{Text: message},
	}, hangup, hangup)
}

func retryableVerb(t verb.Type) bool {
	switch t {
	case verb.TypeDial:
		return false
	default:
		return true
	}
}

func causeOr(cause, fallback string) string {
	if strings.TrimSpace(cause) != "" {
		return cause
	}
	return fallback
}
