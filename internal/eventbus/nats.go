// Package eventbus subscribes to the signaling broker and forwards decoded
// notifications. The engine uses it to observe endpoint registrations and
// call-state changes published outside the media path.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Notification is one decoded broker message.
type Notification struct {
	Subject string
	Payload map[string]any
}

// Handler consumes one notification. It runs on the subscription's delivery
// goroutine and must not block.
type Handler func(n Notification)

// Watcher holds an open broker connection and its subscriptions.
type Watcher struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// Watch connects to the broker and subscribes to the given subjects. The
// connection drains when the context is cancelled.
func Watch(ctx context.Context, natsURL string, subjects []string, handler Handler) (*Watcher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("centrex"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	w := &Watcher{conn: conn}
	for _, subject := range subjects {
		sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
			payload := map[string]any{}
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &payload); err != nil {
					return
				}
			}
			handler(Notification{Subject: msg.Subject, Payload: payload})
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		w.subs = append(w.subs, sub)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Drain()
	}()
	return w, nil
}

// Close drains the connection, letting in-flight messages finish.
func (w *Watcher) Close() error {
	return w.conn.Drain()
}
