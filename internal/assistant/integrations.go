package assistant

import (
	"encoding/json"
	"fmt"
	"os"
)

// Integration binds a product reference to third-party provider credentials.
// The operator supplies the registry out of band; it is never fetched from
// the control plane.
type Integration struct {
	Name        string         `json:"name,omitempty"`
	ProductRef  string         `json:"productRef"`
	Credentials map[string]any `json:"credentials"`
}

// LoadIntegrationsFile reads the operator's integrations registry.
func LoadIntegrationsFile(path string) ([]Integration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read integrations file: %w", err)
	}
	var integrations []Integration
	if err := json.Unmarshal(raw, &integrations); err != nil {
		return nil, fmt.Errorf("parse integrations file: %w", err)
	}
	for i, in := range integrations {
		if in.ProductRef == "" {
			return nil, fmt.Errorf("integrations[%d]: productRef is required", i)
		}
	}
	return integrations, nil
}

// FindCredentials resolves the credentials for a product reference.
func FindCredentials(integrations []Integration, productRef string) (map[string]any, bool) {
	if productRef == "" {
		return nil, false
	}
	for _, in := range integrations {
		if in.ProductRef == productRef {
			return in.Credentials, true
		}
	}
	return nil, false
}
