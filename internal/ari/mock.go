package ari

import (
	"context"
	"sync"
	"time"
)

// Call records one driver invocation for test inspection.
type Call struct {
	Op        string
	ChannelID string
	Arg       string
}

// MockDriver is an in-memory Driver used by tests and local development.
type MockDriver struct {
	mu    sync.Mutex
	calls []Call

	// FailOps maps operation names to the error returned for them.
	FailOps map[string]error
}

func NewMockDriver() *MockDriver {
	return &MockDriver{FailOps: map[string]error{}}
}

func (d *MockDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *MockDriver) record(op, channelID, arg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.FailOps[op]; err != nil {
		return err
	}
	d.calls = append(d.calls, Call{Op: op, ChannelID: channelID, Arg: arg})
	return nil
}

func (d *MockDriver) Answer(_ context.Context, channelID string) error {
	return d.record("answer", channelID, "")
}

func (d *MockDriver) Hangup(_ context.Context, channelID string) error {
	return d.record("hangup", channelID, "")
}

func (d *MockDriver) SendDTMF(_ context.Context, channelID, digits string) error {
	return d.record("sendDTMF", channelID, digits)
}

func (d *MockDriver) Play(_ context.Context, channelID, mediaURL string) (string, error) {
	if err := d.record("play", channelID, mediaURL); err != nil {
		return "", err
	}
	return "playback-" + channelID, nil
}

func (d *MockDriver) Dial(_ context.Context, channelID, destination string, _ time.Duration) error {
	return d.record("dial", channelID, destination)
}

func (d *MockDriver) Mute(_ context.Context, channelID, direction string) error {
	return d.record("mute", channelID, direction)
}

func (d *MockDriver) Unmute(_ context.Context, channelID, direction string) error {
	return d.record("unmute", channelID, direction)
}
