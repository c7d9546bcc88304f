package ari

import "github.com/davegallo/centrex/internal/event"

// Translate normalizes a raw ARI message into a domain event. The second
// return is false for messages the engine does not consume, including dial
// results whose status has no mapping; those produce no domain event at all.
func Translate(msg Message) (event.Event, bool) {
	ref := channelRef(msg)
	if ref == "" {
		return nil, false
	}

	switch msg.Type {
	case EventChannelDtmfReceived:
		if msg.Digit == "" {
			return nil, false
		}
		return event.DigitsGathered{Ref: ref, Digits: msg.Digit}, true
	case EventDial:
		status, ok := event.MapDialStatus(msg.DialStatus)
		if !ok {
			return nil, false
		}
		return event.DialStatusChanged{Ref: ref, Status: status}, true
	case EventSpeechResult:
		if msg.Transcript == "" {
			return nil, false
		}
		return event.SpeechDetected{Ref: ref, Transcript: msg.Transcript}, true
	case EventStasisEnd, EventChannelDestroyed:
		cause := msg.Cause
		if cause == "" {
			cause = "hangup"
		}
		return event.CallEnded{Ref: ref, Cause: cause}, true
	default:
		return nil, false
	}
}

// channelRef picks the session reference for a message. Dial events report
// progress on the peer leg but belong to the originating channel.
func channelRef(msg Message) string {
	if msg.Channel != nil && msg.Channel.ID != "" {
		return msg.Channel.ID
	}
	if msg.Peer != nil && msg.Peer.ID != "" {
		return msg.Peer.ID
	}
	return ""
}
