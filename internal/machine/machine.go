// Package machine implements the per-call conversation state machine. One
// instance owns one live session: it consumes normalized domain events,
// drives the timer policy, and emits verbs through the execution bridge. All
// blocking work (assistant config load, verb execution, agent decisions) runs
// off the event loop and re-enters as events, so a machine never stalls its
// siblings.
package machine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/davegallo/centrex/internal/assistant"
	"github.com/davegallo/centrex/internal/event"
	"github.com/davegallo/centrex/internal/observability"
	"github.com/davegallo/centrex/internal/verb"
)

// State is the machine's lifecycle phase. Terminated is the sole terminal
// state and is reachable from every other state.
type State string

const (
	StateInitializing State = "initializing"
	StateIdle         State = "idle"
	StateGathering    State = "gathering"
	StateSpeaking     State = "speaking"
	StateDialing      State = "dialing"
	StateProcessing   State = "processing"
	StateEnding       State = "ending"
	StateTerminated   State = "terminated"
)

// Session identifies one live call and carries its timer policy.
type Session struct {
	Ref          string
	AccessKeyID  string
	AppRef       string
	SessionToken string

	IdleTimeout          time.Duration
	MaxSpeechWaitTimeout time.Duration
	MaxSessionDuration   time.Duration
}

// Summary describes a terminated session for CDR writers and hooks.
type Summary struct {
	Ref         string
	AppRef      string
	AccessKeyID string
	StartedAt   time.Time
	EndedAt     time.Time
	Cause       string
}

// Snapshot is a point-in-time view of a machine for the operations API.
type Snapshot struct {
	Ref       string    `json:"sessionRef"`
	AppRef    string    `json:"appRef"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"startedAt"`
}

// Executor dispatches a validated verb against the telephony layer. The
// returned error reports validation failures only; execution outcomes arrive
// later as VerbSucceeded/VerbFailed events on the owning machine.
type Executor interface {
	Execute(ctx context.Context, req verb.Request) error
}

// ConfigLoader resolves the assistant configuration for a new session.
type ConfigLoader interface {
	Load(ctx context.Context, accessKeyID, sessionToken, appRef string) (*assistant.Config, error)
}

// Options wires a machine's collaborators. Metrics and OnTerminate may be nil.
type Options struct {
	Session     Session
	Loader      ConfigLoader
	Executor    Executor
	Agent       Agent
	Metrics     *observability.Metrics
	OnTerminate func(Summary)
	QueueSize   int
}

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

// Machine owns one call session. Create with New, drive with Start, feed with
// Deliver, and tear down with Shutdown. All methods are safe for concurrent
// use; event handling itself is single-threaded in the run loop.
type Machine struct {
	sess        Session
	loader      ConfigLoader
	exec        Executor
	agent       Agent
	metrics     *observability.Metrics
	onTerminate func(Summary)

	events chan event.Event
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	closed    bool
	startedAt time.Time
	timers    map[event.TimerKind]*timerEntry

	// Event-loop-owned; never touched outside the run goroutine.
	cfg       *assistant.Config
	idleCount int
	gather    gatherState
	pending   *pendingVerb
	endCause  string

	startOnce sync.Once
	stopOnce  sync.Once
}

type gatherState struct {
	buffer      string
	finishOnKey string
	maxDigits   int
}

type pendingVerb struct {
	req       verb.Request
	retried   bool
	onSuccess func()
	onFailure func()
}

func New(opts Options) *Machine {
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 64
	}
	return &Machine{
		sess:        opts.Session,
		loader:      opts.Loader,
		exec:        opts.Executor,
		agent:       opts.Agent,
		metrics:     opts.Metrics,
		onTerminate: opts.OnTerminate,
		events:      make(chan event.Event, queue),
		done:        make(chan struct{}),
		state:       StateInitializing,
		timers:      make(map[event.TimerKind]*timerEntry),
	}
}

// Start records the session start instant, begins bounding total session
// lifetime, and launches the run loop plus the assistant config load.
func (m *Machine) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			cancel()
			m.terminate("teardown")
			return
		}
		m.cancel = cancel
		m.startedAt = time.Now().UTC()
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.ActiveSessions.Inc()
		}

		m.scheduleSessionTimer()
		go m.loadConfig(runCtx)
		go m.run(runCtx)
	})
}

// Deliver enqueues one domain event for the owning session, preserving
// arrival order. It returns false when the machine has terminated or its
// queue is full; such events are discarded by the caller.
func (m *Machine) Deliver(ev event.Event) bool {
	m.mu.Lock()
	if m.closed || m.state == StateTerminated {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	select {
	case m.events <- ev:
		return true
	default:
		return false
	}
}

// Shutdown forcibly tears the session down. It is idempotent: repeated calls,
// or a call racing normal termination, have no additional effect.
func (m *Machine) Shutdown() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		cancel := m.cancel
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		} else {
			m.terminate("teardown")
		}
	})
}

// Done is closed once the machine reaches Terminated.
func (m *Machine) Done() <-chan struct{} { return m.done }

func (m *Machine) Ref() string { return m.sess.Ref }

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Ref:       m.sess.Ref,
		AppRef:    m.sess.AppRef,
		State:     m.state,
		StartedAt: m.startedAt,
	}
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// terminate moves the machine to its terminal state exactly once: cancels all
// timers atomically with the transition, records metrics, and fires the
// termination hook.
func (m *Machine) terminate(cause string) {
	m.mu.Lock()
	if m.state == StateTerminated {
		m.mu.Unlock()
		return
	}
	m.state = StateTerminated
	m.closed = true
	for kind, entry := range m.timers {
		entry.gen++
		entry.timer.Stop()
		delete(m.timers, kind)
	}
	startedAt := m.startedAt
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	endedAt := time.Now().UTC()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
		if !startedAt.IsZero() {
			m.metrics.ObserveSessionDuration(endedAt.Sub(startedAt))
		}
	}
	if m.onTerminate != nil {
		m.onTerminate(Summary{
			Ref:         m.sess.Ref,
			AppRef:      m.sess.AppRef,
			AccessKeyID: m.sess.AccessKeyID,
			StartedAt:   startedAt,
			EndedAt:     endedAt,
			Cause:       cause,
		})
	}
	close(m.done)
}

func (m *Machine) loadConfig(ctx context.Context) {
	cfg, err := m.loader.Load(ctx, m.sess.AccessKeyID, m.sess.SessionToken, m.sess.AppRef)
	m.Deliver(configLoaded{ref: m.sess.Ref, cfg: cfg, err: err})
}

// idleTimeout prefers the assistant's idle policy over the session default.
func (m *Machine) idleTimeout() time.Duration {
	if m.cfg != nil && m.cfg.ConversationSettings.IdleOptions.Timeout > 0 {
		return time.Duration(m.cfg.ConversationSettings.IdleOptions.Timeout) * time.Millisecond
	}
	return m.sess.IdleTimeout
}

func (m *Machine) maxIdleCount() int {
	if m.cfg != nil && m.cfg.ConversationSettings.IdleOptions.MaxTimeoutCount > 0 {
		return m.cfg.ConversationSettings.IdleOptions.MaxTimeoutCount
	}
	return 2
}

func (m *Machine) idleMessage() string {
	if m.cfg != nil && strings.TrimSpace(m.cfg.ConversationSettings.IdleOptions.Message) != "" {
		return m.cfg.ConversationSettings.IdleOptions.Message
	}
	return "Are you still there?"
}

func (m *Machine) goodbyeMessage() string {
	if m.cfg != nil && strings.TrimSpace(m.cfg.ConversationSettings.GoodbyeMessage) != "" {
		return m.cfg.ConversationSettings.GoodbyeMessage
	}
	return "Goodbye."
}

func (m *Machine) errorMessage() string {
	if m.cfg != nil && strings.TrimSpace(m.cfg.ConversationSettings.SystemErrorMessage) != "" {
		return m.cfg.ConversationSettings.SystemErrorMessage
	}
	return "Something went wrong. Please call back later."
}
