// Package tts renders text into audio and publishes it as one-shot media URLs
// for the telephony engine to fetch.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Engine renders one utterance into a PCM stream.
type Engine interface {
	Render(ctx context.Context, text string) (io.Reader, error)
}

// HTTPEngine calls an external synthesis service that answers POST /synthesize
// with raw 16kHz mono PCM.
type HTTPEngine struct {
	url    string
	voice  string
	client *http.Client
}

func NewHTTPEngine(url, voice string) *HTTPEngine {
	return &HTTPEngine{
		url:   strings.TrimRight(strings.TrimSpace(url), "/"),
		voice: voice,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (e *HTTPEngine) Render(ctx context.Context, text string) (io.Reader, error) {
	payload, err := json.Marshal(map[string]string{
		"text":  text,
		"voice": e.voice,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("synthesize status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return res.Body, nil
}

// Registry publishes a rendered stream and returns its sound id.
type Registry interface {
	Add(stream io.Reader) string
}

// Synthesizer combines an engine with a media registry, producing URLs the
// driver can play.
type Synthesizer struct {
	engine  Engine
	sounds  Registry
	baseURL string
}

func NewSynthesizer(engine Engine, sounds Registry, baseURL string) *Synthesizer {
	return &Synthesizer{
		engine:  engine,
		sounds:  sounds,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	stream, err := s.engine.Render(ctx, text)
	if err != nil {
		return "", fmt.Errorf("render %q: %w", text, err)
	}
	id := s.sounds.Add(stream)
	return s.baseURL + "/sounds/" + id, nil
}
