// Package autopilot is a deterministic conversation policy used when no
// language-model backend is wired in. It keeps calls moving with rule-based
// decisions: transfer on a digit sequence, hang up on goodbye phrases, echo a
// holding response otherwise.
package autopilot

import (
	"context"
	"strings"

	"github.com/davegallo/centrex/internal/assistant"
	"github.com/davegallo/centrex/internal/machine"
)

// Agent implements machine.Agent with fixed rules.
//
// TODO: call the configured languageModel provider (cfg.LanguageModel) instead
// of the rule table once the provider clients land.
type Agent struct {
	// TransferPrefix maps a leading digit to a dial destination, e.g.
	// {"0": "sip:operator@pbx"}. Unmapped digits get a holding response.
	TransferPrefix map[string]string
}

func New() *Agent {
	return &Agent{TransferPrefix: map[string]string{}}
}

var goodbyePhrases = []string{"goodbye", "bye", "hang up", "that's all", "thanks, bye"}

func (a *Agent) NextAction(_ context.Context, cfg *assistant.Config, in machine.Input) (machine.Action, error) {
	switch in.Kind {
	case machine.InputDigits:
		if dest, ok := a.TransferPrefix[firstDigit(in.Digits)]; ok {
			return machine.Action{Kind: machine.ActionDial, Destination: dest}, nil
		}
		return machine.Action{Kind: machine.ActionSay, Text: "I received " + spellDigits(in.Digits) + ". How else can I help?"}, nil
	case machine.InputSpeech:
		if isGoodbye(in.Transcript) {
			return machine.Action{Kind: machine.ActionHangup}, nil
		}
		return machine.Action{Kind: machine.ActionSay, Text: holdingResponse(cfg)}, nil
	case machine.InputNone:
		return machine.Action{Kind: machine.ActionSay, Text: "I didn't catch that. Could you repeat it?"}, nil
	}
	return machine.Action{Kind: machine.ActionSay, Text: holdingResponse(cfg)}, nil
}

func isGoodbye(transcript string) bool {
	s := strings.ToLower(strings.TrimSpace(transcript))
	for _, phrase := range goodbyePhrases {
		if s == phrase || strings.HasSuffix(s, " "+phrase) {
			return true
		}
	}
	return false
}

func holdingResponse(cfg *assistant.Config) string {
	if cfg != nil && strings.TrimSpace(cfg.ConversationSettings.SystemPrompt) != "" {
		return "Let me look into that for you. One moment."
	}
	return "One moment, please."
}

func firstDigit(digits string) string {
	if digits == "" {
		return ""
	}
	return digits[:1]
}

func spellDigits(digits string) string {
	out := make([]string, 0, len(digits))
	for i := 0; i < len(digits); i++ {
		out = append(out, string(digits[i]))
	}
	return strings.Join(out, " ")
}
