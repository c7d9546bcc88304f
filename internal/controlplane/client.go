// Package controlplane is a minimal client for the platform API server. The
// engine only needs application lookups during session setup; everything else
// the control plane does is out of scope here.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Application is the control-plane record resolved for a call's app ref.
type Application struct {
	Ref          string        `json:"ref"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Intelligence *Intelligence `json:"intelligence,omitempty"`
}

// Intelligence links an application to its AI agent product and carries the
// raw assistant configuration.
type Intelligence struct {
	ProductRef string          `json:"productRef"`
	Config     json.RawMessage `json:"config"`
}

type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetApplication fetches one application record on behalf of a session. The
// session token is the short-lived credential minted for the call.
func (c *Client) GetApplication(ctx context.Context, accessKeyID, sessionToken, appRef string) (*Application, error) {
	u := c.endpoint + "/v4/applications/" + url.PathEscape(appRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Access-Key-Id", accessKeyID)
	req.Header.Set("Authorization", "Bearer "+sessionToken)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("apiserver status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var app Application
	if err := json.NewDecoder(res.Body).Decode(&app); err != nil {
		return nil, fmt.Errorf("decode application: %w", err)
	}
	return &app, nil
}
