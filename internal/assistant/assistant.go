// Package assistant loads and validates the AI agent configuration for one
// call session. A configuration is composed from the control-plane application
// record plus provider credentials resolved from the integrations registry,
// and is immutable once loaded.
package assistant

import (
	"fmt"
	"strings"
)

// Config is the assistant configuration for one session.
type Config struct {
	ConversationSettings ConversationSettings `json:"conversationSettings"`
	LanguageModel        LanguageModel        `json:"languageModel"`
}

type ConversationSettings struct {
	FirstMessage       string      `json:"firstMessage"`
	SystemPrompt       string      `json:"systemPrompt"`
	GoodbyeMessage     string      `json:"goodbyeMessage"`
	SystemErrorMessage string      `json:"systemErrorMessage"`
	TransferMessage    string      `json:"transferMessage,omitempty"`
	IdleOptions        IdleOptions `json:"idleOptions"`
}

// IdleOptions controls the idle re-prompt loop. Timeout is in milliseconds.
type IdleOptions struct {
	Message         string `json:"message"`
	Timeout         int    `json:"timeout"`
	MaxTimeoutCount int    `json:"maxTimeoutCount"`
}

type LanguageModel struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"apiKey,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"groq":      true,
	"google":    true,
	"ollama":    true,
}

// Validate checks the composed configuration against the assistant schema and
// applies idle defaults. A failure here rejects the session.
func (c *Config) Validate() error {
	cs := &c.ConversationSettings
	if strings.TrimSpace(cs.FirstMessage) == "" {
		return fmt.Errorf("conversationSettings.firstMessage is required")
	}
	if strings.TrimSpace(cs.SystemPrompt) == "" {
		return fmt.Errorf("conversationSettings.systemPrompt is required")
	}
	if strings.TrimSpace(cs.GoodbyeMessage) == "" {
		return fmt.Errorf("conversationSettings.goodbyeMessage is required")
	}
	if strings.TrimSpace(cs.SystemErrorMessage) == "" {
		return fmt.Errorf("conversationSettings.systemErrorMessage is required")
	}
	if cs.IdleOptions.Timeout < 0 {
		return fmt.Errorf("conversationSettings.idleOptions.timeout must not be negative")
	}
	if cs.IdleOptions.Timeout == 0 {
		cs.IdleOptions.Timeout = 10000
	}
	if cs.IdleOptions.MaxTimeoutCount < 0 {
		return fmt.Errorf("conversationSettings.idleOptions.maxTimeoutCount must not be negative")
	}
	if cs.IdleOptions.MaxTimeoutCount == 0 {
		cs.IdleOptions.MaxTimeoutCount = 2
	}
	if strings.TrimSpace(cs.IdleOptions.Message) == "" {
		cs.IdleOptions.Message = "Are you still there?"
	}

	lm := &c.LanguageModel
	provider := strings.ToLower(strings.TrimSpace(lm.Provider))
	if !knownProviders[provider] {
		return fmt.Errorf("languageModel.provider %q is not supported", lm.Provider)
	}
	lm.Provider = provider
	if strings.TrimSpace(lm.Model) == "" {
		return fmt.Errorf("languageModel.model is required")
	}
	if provider != "ollama" && strings.TrimSpace(lm.APIKey) == "" {
		return fmt.Errorf("languageModel.apiKey is required for provider %q", provider)
	}
	if lm.Temperature < 0 || lm.Temperature > 2 {
		return fmt.Errorf("languageModel.temperature must be between 0 and 2")
	}
	if lm.MaxTokens < 0 {
		return fmt.Errorf("languageModel.maxTokens must not be negative")
	}
	return nil
}
