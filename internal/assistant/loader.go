package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davegallo/centrex/internal/controlplane"
)

// Loader failure modes callers branch on.
var (
	ErrNoIntelligence = errors.New("application has no intelligence configuration")
	ErrNoIntegration  = errors.New("no matching integration credentials")
)

// ApplicationFetcher is the control-plane operation the loader depends on.
type ApplicationFetcher interface {
	GetApplication(ctx context.Context, accessKeyID, sessionToken, appRef string) (*controlplane.Application, error)
}

// Loader composes assistant configurations for new sessions.
type Loader struct {
	api          ApplicationFetcher
	integrations []Integration
}

func NewLoader(api ApplicationFetcher, integrations []Integration) *Loader {
	return &Loader{api: api, integrations: integrations}
}

// Load fetches the application's intelligence config, injects the provider
// API key resolved by product reference, and validates the composed result.
// Any failure rejects the session.
func (l *Loader) Load(ctx context.Context, accessKeyID, sessionToken, appRef string) (*Config, error) {
	app, err := l.api.GetApplication(ctx, accessKeyID, sessionToken, appRef)
	if err != nil {
		return nil, fmt.Errorf("load assistant config: %w", err)
	}
	if app.Intelligence == nil || len(app.Intelligence.Config) == 0 {
		return nil, fmt.Errorf("%w: app %q", ErrNoIntelligence, appRef)
	}

	credentials, ok := FindCredentials(l.integrations, app.Intelligence.ProductRef)
	if !ok {
		return nil, fmt.Errorf("%w: product %q", ErrNoIntegration, app.Intelligence.ProductRef)
	}

	var cfg Config
	if err := json.Unmarshal(app.Intelligence.Config, &cfg); err != nil {
		return nil, fmt.Errorf("parse assistant config: %w", err)
	}

	if apiKey, ok := credentials["apiKey"].(string); ok {
		cfg.LanguageModel.APIKey = apiKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("assistant config schema: %w", err)
	}
	return &cfg, nil
}
