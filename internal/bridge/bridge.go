// Package bridge turns validated verbs into telephony-driver operations and
// correlates each asynchronous completion back to the session that requested
// it. Failures never cross session boundaries: they are wrapped into typed
// execution errors and delivered as domain events to the owning machine.
package bridge

import (
	"context"
	"errors"

	"github.com/davegallo/centrex/internal/ari"
	"github.com/davegallo/centrex/internal/event"
	"github.com/davegallo/centrex/internal/observability"
	"github.com/davegallo/centrex/internal/verb"
)

// Deliverer routes a synthesized response event to its owning session.
type Deliverer interface {
	Route(ev event.Event) bool
}

// Synthesizer resolves text into a playable media URL. Speech synthesis
// itself happens outside the engine; implementations typically point at a
// TTS media endpoint.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// ErrNoSynthesizer fails Say verbs when the bridge was wired without a
// synthesizer. The failure stays on the requesting session's error path and
// is never retried.
var ErrNoSynthesizer = errors.New("no speech synthesizer configured")

type Bridge struct {
	driver  ari.Driver
	sink    Deliverer
	synth   Synthesizer
	metrics *observability.Metrics
}

// New wires the bridge. Metrics may be nil; synth may be nil when the Say
// verb is not in use.
func New(driver ari.Driver, sink Deliverer, synth Synthesizer, metrics *observability.Metrics) *Bridge {
	return &Bridge{driver: driver, sink: sink, synth: synth, metrics: metrics}
}

// Execute validates and dispatches one verb. Validation failures are returned
// synchronously and never reach the driver; execution outcomes are delivered
// later as events on the requesting session.
func (b *Bridge) Execute(ctx context.Context, req verb.Request) error {
	if err := verb.Validate(req); err != nil {
		b.count(req.Type, "invalid")
		return err
	}
	go b.execute(ctx, req)
	return nil
}

func (b *Bridge) execute(ctx context.Context, req verb.Request) {
	result := verb.Result{SessionRef: req.SessionRef, Type: req.Type}
	var err error

	switch req.Type {
	case verb.TypeAnswer:
		err = b.driver.Answer(ctx, req.SessionRef)
	case verb.TypeHangup:
		err = b.driver.Hangup(ctx, req.SessionRef)
	case verb.TypePlayDtmf:
		err = b.driver.SendDTMF(ctx, req.SessionRef, req.PlayDtmf.Digits)
	case verb.TypePlay:
		result.PlaybackRef, err = b.driver.Play(ctx, req.SessionRef, req.Play.MediaURL)
	case verb.TypeSay:
		result.PlaybackRef, err = b.say(ctx, req)
	case verb.TypeDial:
		err = b.driver.Dial(ctx, req.SessionRef, req.Dial.Destination, req.Dial.Timeout)
	case verb.TypeGather:
		// Gathering is armed machine-side: caller input arrives as domain
		// events, so there is no driver call to make here.
	case verb.TypeMute:
		err = b.driver.Mute(ctx, req.SessionRef, muteDirection(req.Mute))
	case verb.TypeUnmute:
		err = b.driver.Unmute(ctx, req.SessionRef, muteDirection(req.Mute))
	}

	if err != nil {
		b.count(req.Type, "error")
		retryable := ari.IsRetryable(err) && !errors.Is(err, ErrNoSynthesizer)
		b.sink.Route(event.VerbFailed{
			Ref: req.SessionRef,
			Err: &event.ExecError{Verb: req.Type, Retryable: retryable, Err: err},
		})
		return
	}
	b.count(req.Type, "ok")
	b.sink.Route(event.VerbSucceeded{Result: result})
}

func (b *Bridge) say(ctx context.Context, req verb.Request) (string, error) {
	if b.synth == nil {
		return "", ErrNoSynthesizer
	}
	mediaURL, err := b.synth.Synthesize(ctx, req.Say.Text)
	if err != nil {
		return "", err
	}
	return b.driver.Play(ctx, req.SessionRef, mediaURL)
}

func muteDirection(p *verb.MuteParams) string {
	if p == nil || p.Direction == "" {
		return string(verb.DirectionBoth)
	}
	return string(p.Direction)
}

func (b *Bridge) count(t verb.Type, outcome string) {
	if b.metrics != nil {
		b.metrics.VerbRequests.WithLabelValues(string(t), outcome).Inc()
	}
}
