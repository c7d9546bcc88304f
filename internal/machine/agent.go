package machine

import (
	"context"

	"github.com/davegallo/centrex/internal/assistant"
)

// InputKind tags what the caller produced during a gather.
type InputKind string

const (
	InputSpeech InputKind = "speech"
	InputDigits InputKind = "digits"
	// InputNone reports a max-speech-wait expiry: the caller said nothing.
	InputNone InputKind = "none"
)

// Input is one normalized caller utterance handed to the agent.
type Input struct {
	Kind       InputKind
	Transcript string
	Digits     string
}

// ActionKind tags the agent's decision.
type ActionKind string

const (
	ActionSay    ActionKind = "say"
	ActionDial   ActionKind = "dial"
	ActionHangup ActionKind = "hangup"
)

// Action is the semantic next step the agent wants the call to take. The
// machine turns it into verb dispatches.
type Action struct {
	Kind        ActionKind
	Text        string
	Destination string
}

// Agent decides what the call should do after each caller input. Implementations
// may block (e.g. on a language-model call); the machine invokes them off its
// event loop and consumes the decision as an event.
type Agent interface {
	NextAction(ctx context.Context, cfg *assistant.Config, in Input) (Action, error)
}
