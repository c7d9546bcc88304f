package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds connection settings for the ARI endpoint.
type Config struct {
	URL         string
	Username    string
	Password    string
	Application string
}

// Client implements Driver against a live ARI endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Answer(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/answer", nil)
}

func (c *Client) Hangup(ctx context.Context, channelID string) error {
	q := url.Values{}
	q.Set("reason", "normal")
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), q)
}

func (c *Client) SendDTMF(ctx context.Context, channelID, digits string) error {
	q := url.Values{}
	q.Set("dtmf", digits)
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/dtmf", q)
}

func (c *Client) Play(ctx context.Context, channelID, mediaURL string) (string, error) {
	playbackRef := uuid.NewString()
	q := url.Values{}
	q.Set("media", "sound:"+mediaURL)
	q.Set("playbackId", playbackRef)
	path := "/channels/" + url.PathEscape(channelID) + "/play/" + url.PathEscape(playbackRef)
	if err := c.do(ctx, http.MethodPost, path, q); err != nil {
		return "", err
	}
	return playbackRef, nil
}

func (c *Client) Dial(ctx context.Context, channelID, destination string, timeout time.Duration) error {
	q := url.Values{}
	q.Set("endpoint", destination)
	q.Set("app", c.cfg.Application)
	q.Set("originator", channelID)
	if timeout > 0 {
		q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	}
	return c.do(ctx, http.MethodPost, "/channels", q)
}

func (c *Client) Mute(ctx context.Context, channelID, direction string) error {
	q := url.Values{}
	q.Set("direction", muteDirection(direction))
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/mute", q)
}

func (c *Client) Unmute(ctx context.Context, channelID, direction string) error {
	q := url.Values{}
	q.Set("direction", muteDirection(direction))
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID)+"/mute", q)
}

func muteDirection(direction string) string {
	switch direction {
	case "in", "out", "both":
		return direction
	default:
		return "both"
	}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values) error {
	u := c.cfg.URL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// Events connects to the ARI websocket and streams decoded events until the
// context is cancelled or the socket closes. The returned channel is closed
// when the read loop exits.
func (c *Client) Events(ctx context.Context) (<-chan Message, error) {
	u, err := url.Parse(c.cfg.URL + "/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("app", c.cfg.Application)
	q.Set("api_key", c.cfg.Username+":"+c.cfg.Password)
	q.Set("subscribeAll", "false")
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial ari websocket: %w", err)
	}

	events := make(chan Message, 256)
	readerDone := make(chan struct{})

	// The watcher must exit when the socket drops on its own, not only on
	// context cancellation, or reconnect loops leak one goroutine per drop.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readerDone:
		}
	}()

	go func() {
		defer close(events)
		defer close(readerDone)
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Type == "" {
				continue
			}
			select {
			case events <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
