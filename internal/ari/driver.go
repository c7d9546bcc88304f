// Package ari talks to an Asterisk REST Interface compatible media and
// signaling layer: verb execution goes out over REST channel operations, call
// events come back over the ARI websocket.
package ari

import (
	"context"
	"time"
)

// Driver is the channel-control surface the execution bridge dispatches
// against. Implementations must be safe for concurrent use across sessions.
type Driver interface {
	Answer(ctx context.Context, channelID string) error
	Hangup(ctx context.Context, channelID string) error
	SendDTMF(ctx context.Context, channelID, digits string) error
	Play(ctx context.Context, channelID, mediaURL string) (playbackRef string, err error)
	Dial(ctx context.Context, channelID, destination string, timeout time.Duration) error
	Mute(ctx context.Context, channelID, direction string) error
	Unmute(ctx context.Context, channelID, direction string) error
}

// Channel is the subset of the ARI channel resource the engine reads.
type Channel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Message is one decoded ARI websocket event.
type Message struct {
	Type       string   `json:"type"`
	Channel    *Channel `json:"channel,omitempty"`
	Peer       *Channel `json:"peer,omitempty"`
	DialStatus string   `json:"dialstatus,omitempty"`
	Digit      string   `json:"digit,omitempty"`
	// Transcript is set on SpeechResult events emitted by the media gateway.
	Transcript string `json:"transcript,omitempty"`
	Cause      string `json:"cause,omitempty"`
	Args       []string `json:"args,omitempty"`
}

// Well-known ARI event types the engine reacts to.
const (
	EventStasisStart         = "StasisStart"
	EventStasisEnd           = "StasisEnd"
	EventChannelDestroyed    = "ChannelDestroyed"
	EventChannelDtmfReceived = "ChannelDtmfReceived"
	EventDial                = "Dial"
	EventSpeechResult        = "SpeechResult"
)
