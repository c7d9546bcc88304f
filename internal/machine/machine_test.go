package machine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davegallo/centrex/internal/assistant"
	"github.com/davegallo/centrex/internal/event"
	"github.com/davegallo/centrex/internal/verb"
)

type stubExec struct {
	mu    sync.Mutex
	reqs  []verb.Request
	fails map[verb.Type]int
	m     *Machine
}

func newStubExec() *stubExec {
	return &stubExec{fails: map[verb.Type]int{}}
}

// Execute records the request and synthesizes the correlated response the way
// the real bridge does, respecting the per-verb failure budget.
func (e *stubExec) Execute(_ context.Context, req verb.Request) error {
	if err := verb.Validate(req); err != nil {
		return err
	}

	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	fail := e.fails[req.Type] > 0
	if fail {
		e.fails[req.Type]--
	}
	e.mu.Unlock()

	if fail {
		e.m.Deliver(event.VerbFailed{
			Ref: req.SessionRef,
			Err: &event.ExecError{Verb: req.Type, Retryable: true, Err: errors.New("driver unavailable")},
		})
		return nil
	}
	e.m.Deliver(event.VerbSucceeded{Result: verb.Result{SessionRef: req.SessionRef, Type: req.Type}})
	return nil
}

func (e *stubExec) requests() []verb.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]verb.Request, len(e.reqs))
	copy(out, e.reqs)
	return out
}

func (e *stubExec) countOf(t verb.Type) int {
	n := 0
	for _, r := range e.requests() {
		if r.Type == t {
			n++
		}
	}
	return n
}

type stubLoader struct {
	cfg *assistant.Config
	err error
}

func (l *stubLoader) Load(context.Context, string, string, string) (*assistant.Config, error) {
	return l.cfg, l.err
}

type agentFunc func(ctx context.Context, cfg *assistant.Config, in Input) (Action, error)

func (f agentFunc) NextAction(ctx context.Context, cfg *assistant.Config, in Input) (Action, error) {
	return f(ctx, cfg, in)
}

func testConfig() *assistant.Config {
	return &assistant.Config{
		ConversationSettings: assistant.ConversationSettings{
			FirstMessage:       "Hello!",
			SystemPrompt:       "You are a receptionist.",
			GoodbyeMessage:     "Goodbye.",
			SystemErrorMessage: "Something went wrong.",
			IdleOptions:        assistant.IdleOptions{Message: "Still there?", Timeout: 60000, MaxTimeoutCount: 2},
		},
		LanguageModel: assistant.LanguageModel{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk"},
	}
}

type harness struct {
	m     *Machine
	exec  *stubExec
	ends  chan Summary
	agent agentFunc
}

func newHarness(t *testing.T, sess Session, loader ConfigLoader, agent agentFunc) *harness {
	t.Helper()
	exec := newStubExec()
	ends := make(chan Summary, 4)
	m := New(Options{
		Session:     sess,
		Loader:      loader,
		Executor:    exec,
		Agent:       agent,
		OnTerminate: func(s Summary) { ends <- s },
	})
	exec.m = m
	return &harness{m: m, exec: exec, ends: ends, agent: agent}
}

func defaultSession() Session {
	return Session{
		Ref:                  "ch-1",
		AccessKeyID:          "WO001",
		AppRef:               "app-1",
		SessionToken:         "tok",
		IdleTimeout:          time.Hour,
		MaxSpeechWaitTimeout: time.Hour,
		MaxSessionDuration:   time.Hour,
	}
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %q, want %q", m.State(), want)
}

func waitSummary(t *testing.T, h *harness) Summary {
	t.Helper()
	select {
	case s := <-h.ends:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("machine did not terminate")
		return Summary{}
	}
}

func TestMachineAnswersGreetsAndGathers(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, defaultSession(), &stubLoader{cfg: cfg}, nil)
	h.m.Start(context.Background())
	defer h.m.Shutdown()

	waitState(t, h.m, StateGathering)

	reqs := h.exec.requests()
	if len(reqs) < 3 {
		t.Fatalf("requests = %d, want at least answer+say+gather", len(reqs))
	}
	if reqs[0].Type != verb.TypeAnswer {
		t.Fatalf("first verb = %q, want answer", reqs[0].Type)
	}
	if reqs[1].Type != verb.TypeSay || reqs[1].Say.Text != "Hello!" {
		t.Fatalf("second verb = %+v, want say greeting", reqs[1])
	}
	if reqs[2].Type != verb.TypeGather {
		t.Fatalf("third verb = %q, want gather", reqs[2].Type)
	}
}

func TestMachineDigitsDriveAgentTurn(t *testing.T) {
	gotInput := make(chan Input, 1)
	agent := agentFunc(func(_ context.Context, _ *assistant.Config, in Input) (Action, error) {
		gotInput <- in
		return Action{Kind: ActionSay, Text: "You pressed something."}, nil
	})
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, agent)
	h.m.Start(context.Background())
	defer h.m.Shutdown()

	waitState(t, h.m, StateGathering)
	h.m.Deliver(event.DigitsGathered{Ref: "ch-1", Digits: "4"})
	h.m.Deliver(event.DigitsGathered{Ref: "ch-1", Digits: "2"})
	h.m.Deliver(event.DigitsGathered{Ref: "ch-1", Digits: "#"})

	select {
	case in := <-gotInput:
		if in.Kind != InputDigits || in.Digits != "42" {
			t.Fatalf("agent input = %+v, want digits 42", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("agent was never consulted")
	}

	// The agent's reply is spoken and the machine returns to gathering.
	waitState(t, h.m, StateGathering)
	if h.exec.countOf(verb.TypeSay) < 2 {
		t.Fatalf("say count = %d, want greeting plus reply", h.exec.countOf(verb.TypeSay))
	}
}

func TestMachineSpeechDrivesAgentTurn(t *testing.T) {
	gotInput := make(chan Input, 1)
	agent := agentFunc(func(_ context.Context, _ *assistant.Config, in Input) (Action, error) {
		gotInput <- in
		return Action{Kind: ActionHangup}, nil
	})
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, agent)
	h.m.Start(context.Background())
	defer h.m.Shutdown()

	waitState(t, h.m, StateGathering)
	h.m.Deliver(event.SpeechDetected{Ref: "ch-1", Transcript: "I want to cancel my order"})

	in := <-gotInput
	if in.Kind != InputSpeech || in.Transcript != "I want to cancel my order" {
		t.Fatalf("agent input = %+v", in)
	}

	s := waitSummary(t, h)
	if s.Cause != "agent_hangup" {
		t.Fatalf("cause = %q, want agent_hangup", s.Cause)
	}
	if h.exec.countOf(verb.TypeHangup) != 1 {
		t.Fatalf("hangup count = %d, want 1", h.exec.countOf(verb.TypeHangup))
	}
}

func TestMachineConfigLoadFailureIsFatalAndDispatchesNoVerb(t *testing.T) {
	h := newHarness(t, defaultSession(), &stubLoader{err: errors.New("no integration")}, nil)
	h.m.Start(context.Background())

	s := waitSummary(t, h)
	if s.Cause != "config_error" {
		t.Fatalf("cause = %q, want config_error", s.Cause)
	}
	if got := len(h.exec.requests()); got != 0 {
		t.Fatalf("verbs dispatched = %d, want 0", got)
	}
	if h.m.State() != StateTerminated {
		t.Fatalf("state = %q, want terminated", h.m.State())
	}
}

func TestMachineVerbFailureRetriesOnceThenEnds(t *testing.T) {
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, nil)
	// Every say fails, including the graceful-end farewell.
	h.exec.fails[verb.TypeSay] = 1000
	h.m.Start(context.Background())

	s := waitSummary(t, h)
	if s.Cause != "verb_error" {
		t.Fatalf("cause = %q, want verb_error", s.Cause)
	}
	if h.exec.countOf(verb.TypeHangup) != 1 {
		t.Fatalf("hangup count = %d, want 1", h.exec.countOf(verb.TypeHangup))
	}
	// Greeting attempt + one retry, then farewell attempt + one retry.
	if got := h.exec.countOf(verb.TypeSay); got != 4 {
		t.Fatalf("say attempts = %d, want 4", got)
	}
}

func TestMachineMaxSpeechWaitIsNoInput(t *testing.T) {
	sess := defaultSession()
	sess.MaxSpeechWaitTimeout = 30 * time.Millisecond

	gotInput := make(chan Input, 1)
	agent := agentFunc(func(_ context.Context, _ *assistant.Config, in Input) (Action, error) {
		gotInput <- in
		return Action{Kind: ActionHangup}, nil
	})
	h := newHarness(t, sess, &stubLoader{cfg: testConfig()}, agent)
	h.m.Start(context.Background())
	defer h.m.Shutdown()

	select {
	case in := <-gotInput:
		if in.Kind != InputNone {
			t.Fatalf("agent input = %+v, want no-input", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("max speech wait never fired")
	}
}

func TestMachineIdleTimeoutRepromptsThenEnds(t *testing.T) {
	cfg := testConfig()
	cfg.ConversationSettings.IdleOptions = assistant.IdleOptions{
		Message:         "Still there?",
		Timeout:         30, // milliseconds
		MaxTimeoutCount: 1,
	}
	h := newHarness(t, defaultSession(), &stubLoader{cfg: cfg}, nil)
	h.m.Start(context.Background())

	s := waitSummary(t, h)
	if s.Cause != "idle_timeout" {
		t.Fatalf("cause = %q, want idle_timeout", s.Cause)
	}

	reprompts := 0
	for _, r := range h.exec.requests() {
		if r.Type == verb.TypeSay && r.Say.Text == "Still there?" {
			reprompts++
		}
	}
	if reprompts != 1 {
		t.Fatalf("idle reprompts = %d, want 1", reprompts)
	}
}

func TestMachineSessionTimeoutForcesEnd(t *testing.T) {
	sess := defaultSession()
	sess.MaxSessionDuration = 50 * time.Millisecond

	h := newHarness(t, sess, &stubLoader{cfg: testConfig()}, nil)
	h.m.Start(context.Background())

	s := waitSummary(t, h)
	if s.Cause != "max_session_duration" {
		t.Fatalf("cause = %q, want max_session_duration", s.Cause)
	}
	if h.exec.countOf(verb.TypeHangup) != 1 {
		t.Fatalf("hangup count = %d, want 1", h.exec.countOf(verb.TypeHangup))
	}
}

func TestMachineDialFlow(t *testing.T) {
	agent := agentFunc(func(_ context.Context, _ *assistant.Config, in Input) (Action, error) {
		return Action{Kind: ActionDial, Destination: "sip:alice@example.com"}, nil
	})
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, agent)
	h.m.Start(context.Background())
	defer h.m.Shutdown()

	waitState(t, h.m, StateGathering)
	h.m.Deliver(event.SpeechDetected{Ref: "ch-1", Transcript: "transfer me to alice"})
	waitState(t, h.m, StateDialing)

	if h.exec.countOf(verb.TypeDial) != 1 {
		t.Fatalf("dial count = %d, want 1", h.exec.countOf(verb.TypeDial))
	}

	h.m.Deliver(event.DialStatusChanged{Ref: "ch-1", Status: event.DialAnswered})
	waitState(t, h.m, StateGathering)
}

func TestMachineDialBusyInformsCaller(t *testing.T) {
	agent := agentFunc(func(_ context.Context, _ *assistant.Config, in Input) (Action, error) {
		return Action{Kind: ActionDial, Destination: "sip:bob@example.com"}, nil
	})
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, agent)
	h.m.Start(context.Background())
	defer h.m.Shutdown()

	waitState(t, h.m, StateGathering)
	h.m.Deliver(event.SpeechDetected{Ref: "ch-1", Transcript: "transfer me"})
	waitState(t, h.m, StateDialing)
	h.m.Deliver(event.DialStatusChanged{Ref: "ch-1", Status: event.DialBusy})
	waitState(t, h.m, StateGathering)

	found := false
	for _, r := range h.exec.requests() {
		if r.Type == verb.TypeSay && r.Say.Text == unavailableMessage {
			found = true
		}
	}
	if !found {
		t.Fatalf("caller was not told the party is unavailable")
	}
}

func TestMachineShutdownIsIdempotent(t *testing.T) {
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, nil)
	h.m.Start(context.Background())
	waitState(t, h.m, StateGathering)

	h.m.Shutdown()
	h.m.Shutdown()

	<-h.m.Done()
	if got := len(h.ends); got != 1 {
		t.Fatalf("terminate hooks fired = %d, want 1", got)
	}
	if n := h.m.pendingTimerCount(); n != 0 {
		t.Fatalf("pending timers after teardown = %d, want 0", n)
	}
}

func TestMachineDeliverAfterTerminateIsNoOp(t *testing.T) {
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, nil)
	h.m.Start(context.Background())
	h.m.Shutdown()
	<-h.m.Done()

	if h.m.Deliver(event.DigitsGathered{Ref: "ch-1", Digits: "1"}) {
		t.Fatalf("Deliver() after terminate should return false")
	}
}

func TestMachineCallEndedTerminates(t *testing.T) {
	h := newHarness(t, defaultSession(), &stubLoader{cfg: testConfig()}, nil)
	h.m.Start(context.Background())
	waitState(t, h.m, StateGathering)

	h.m.Deliver(event.CallEnded{Ref: "ch-1", Cause: "caller hung up"})
	s := waitSummary(t, h)
	if s.Cause != "caller hung up" {
		t.Fatalf("cause = %q", s.Cause)
	}
}
