package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chun1617/kirman/internal/adapter/agent"
	"github.com/chun1617/kirman/internal/adapter/httpserver"
	"github.com/chun1617/kirman/internal/adapter/push"
	"github.com/chun1617/kirman/internal/app"
	"github.com/chun1617/kirman/internal/metrics"
	"github.com/chun1617/kirman/internal/modal"
	"github.com/chun1617/kirman/internal/platform/config"
	"github.com/chun1617/kirman/internal/platform/logging"
	"github.com/chun1617/kirman/internal/platform/version"
)

// pushEvent is the envelope for everything pushed over the websocket.
type pushEvent struct {
	Kind      string       `json:"kind"`
	Modal     *modal.Event `json:"modal,omitempty"`
	Key       string       `json:"key,omitempty"`
	Remaining int          `json:"remaining"`
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// wirePush forwards modal and cooldown changes to connected push clients.
// Returns a teardown function.
func wirePush(svc *app.Service, hub *push.Hub) func() {
	unsubModals := svc.Modals().Subscribe(func(ev modal.Event) {
		hub.Broadcast(pushEvent{Kind: "modal", Modal: &ev})
	})

	unsubCooldowns := svc.Cooldowns().Subscribe(func(key string, remaining int) {
		metrics.ActiveCooldowns.Set(float64(svc.Cooldowns().ActiveCount()))
		hub.Broadcast(pushEvent{Kind: "cooldown", Key: key, Remaining: remaining})
	})

	return func() {
		unsubModals()
		unsubCooldowns()
	}
}

func runGracefulShutdown(srv *httpserver.Server, svc *app.Service, hub *push.Hub, cancelWatch context.CancelFunc, stops ...func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		cancelWatch()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		for _, stop := range stops {
			stop()
		}
		hub.Close()
		svc.Close()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	agentClient := agent.NewClient(cfg.AgentURL, cfg.OperationTimeout)

	svc := app.NewService(agentClient, clock, app.Options{
		RefreshCooldownSeconds: cfg.RefreshCooldownSeconds,
		OperationTimeout:       cfg.OperationTimeout,
		ToastDuration:          cfg.ToastDuration,
	})

	hub := push.NewHub(cfg.MaxPushClients)
	unwire := wirePush(svc, hub)

	stopTicker := svc.Cooldowns().StartTicker(time.Second)

	// Fetch settings once up front so the cooldown window matches the agent
	// before the first refresh.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	svc.SyncSettings(startupCtx)
	cancelStartup()

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	go svc.WatchMonitor(watchCtx)

	srv := httpserver.NewServer(cfg, svc, hub)

	done := runGracefulShutdown(srv, svc, hub, cancelWatch, unwire, stopTicker)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
