package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davegallo/centrex/internal/ari"
	"github.com/davegallo/centrex/internal/assistant"
	"github.com/davegallo/centrex/internal/autopilot"
	"github.com/davegallo/centrex/internal/bridge"
	"github.com/davegallo/centrex/internal/cdr"
	"github.com/davegallo/centrex/internal/config"
	"github.com/davegallo/centrex/internal/controlplane"
	"github.com/davegallo/centrex/internal/eventbus"
	"github.com/davegallo/centrex/internal/httpapi"
	"github.com/davegallo/centrex/internal/machine"
	"github.com/davegallo/centrex/internal/observability"
	"github.com/davegallo/centrex/internal/registry"
	"github.com/davegallo/centrex/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	records, err := cdr.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("cdr store init failed: %v", err)
	}
	defer records.Close()

	integrations, err := assistant.LoadIntegrationsFile(cfg.IntegrationsFile)
	if err != nil {
		log.Fatalf("integrations registry load failed: %v", err)
	}
	loader := assistant.NewLoader(controlplane.NewClient(cfg.APIServerEndpoint), integrations)

	driver := ari.NewClient(ari.Config{
		URL:         cfg.ARIURL,
		Username:    cfg.ARIUsername,
		Password:    cfg.ARIPassword,
		Application: cfg.ARIApplication,
	})

	sessions := registry.New(metrics)
	api := httpapi.New(cfg, sessions, records, metrics)

	var synth bridge.Synthesizer
	if cfg.TTSURL != "" {
		synth = tts.NewSynthesizer(tts.NewHTTPEngine(cfg.TTSURL, cfg.TTSVoice), api.Sounds(), cfg.PublicMediaURL)
		log.Printf("tts engine: %s (voice %s)", cfg.TTSURL, cfg.TTSVoice)
	} else {
		log.Printf("tts engine: disabled (TTS_URL not set)")
	}
	verbs := bridge.New(driver, sessions, synth, metrics)

	agent := autopilot.New()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// The termination hook runs after the machine has left the registry's
	// routing path: write the record, drop the entry, and make sure the
	// channel is down for causes that never dispatched a hangup verb.
	onTerminate := func(sum machine.Summary) {
		sessions.Remove(sum.Ref)

		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := records.Save(saveCtx, cdr.Record{
			SessionRef:  sum.Ref,
			AppRef:      sum.AppRef,
			AccessKeyID: sum.AccessKeyID,
			StartedAt:   sum.StartedAt,
			EndedAt:     sum.EndedAt,
			Cause:       sum.Cause,
		}); err != nil {
			log.Printf("cdr save failed for %s: %v", sum.Ref, err)
		}

		if needsHangup(sum.Cause) {
			if err := driver.Hangup(saveCtx, sum.Ref); err != nil {
				log.Printf("teardown hangup failed for %s: %v", sum.Ref, err)
			}
		}
	}

	startSession := func(msg ari.Message) {
		if msg.Channel == nil || msg.Channel.ID == "" {
			return
		}
		accessKeyID, appRef, token := stasisArgs(msg.Args)
		m := machine.New(machine.Options{
			Session: machine.Session{
				Ref:                  msg.Channel.ID,
				AccessKeyID:          accessKeyID,
				AppRef:               appRef,
				SessionToken:         token,
				IdleTimeout:          cfg.IdleTimeout,
				MaxSpeechWaitTimeout: cfg.MaxSpeechWaitTimeout,
				MaxSessionDuration:   cfg.MaxSessionDuration,
			},
			Loader:      loader,
			Executor:    verbs,
			Agent:       agent,
			Metrics:     metrics,
			OnTerminate: onTerminate,
			QueueSize:   cfg.EventQueueSize,
		})
		if err := sessions.Insert(m); err != nil {
			log.Printf("session %s not started: %v", msg.Channel.ID, err)
			return
		}
		m.Start(runCtx)
		log.Printf("session %s started (app %s)", msg.Channel.ID, appRef)
	}

	go runEventLoop(runCtx, driver, sessions, startSession)

	if cfg.NATSURL != "" {
		watcher, err := eventbus.Watch(runCtx, cfg.NATSURL, []string{"routr.endpoint.registered"}, func(n eventbus.Notification) {
			log.Printf("platform event %s: %v", n.Subject, n.Payload)
		})
		if err != nil {
			log.Fatalf("nats watcher init failed: %v", err)
		}
		defer watcher.Close()
	}

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}
	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	// Tear live sessions down before cutting the event loop so their hooks
	// still run.
	for _, snap := range sessions.Snapshots() {
		if m, ok := sessions.Lookup(snap.Ref); ok {
			m.Shutdown()
		}
	}
	runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// runEventLoop consumes the ARI websocket, creating sessions on StasisStart
// and routing everything else as domain events. It reconnects with capped
// backoff until the context is cancelled.
func runEventLoop(ctx context.Context, driver *ari.Client, sessions *registry.Registry, startSession func(ari.Message)) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		events, err := driver.Events(ctx)
		if err != nil {
			delay := ari.Backoff(attempt, time.Second, 30*time.Second)
			attempt++
			log.Printf("ari connect failed (retrying in %s): %v", delay, err)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}
		attempt = 0
		log.Printf("ari event stream connected")

		for msg := range events {
			if msg.Type == ari.EventStasisStart {
				startSession(msg)
				continue
			}
			if ev, ok := ari.Translate(msg); ok {
				sessions.Route(ev)
			}
		}
		log.Printf("ari event stream closed")
	}
}

// stasisArgs unpacks the dialplan arguments attached to a StasisStart:
// access key id, application ref, session token, in that order.
func stasisArgs(args []string) (accessKeyID, appRef, token string) {
	if len(args) > 0 {
		accessKeyID = args[0]
	}
	if len(args) > 1 {
		appRef = args[1]
	}
	if len(args) > 2 {
		token = args[2]
	}
	return accessKeyID, appRef, token
}

// needsHangup reports whether the channel may still be up when a session
// terminates. Caller hangups and the graceful-end paths already issued a
// hangup verb before terminating.
func needsHangup(cause string) bool {
	switch cause {
	case "config_error", "teardown":
		return true
	default:
		return false
	}
}
