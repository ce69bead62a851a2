package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/chun1617/kirman/internal/domain"
	"github.com/chun1617/kirman/internal/metrics"
	"github.com/chun1617/kirman/internal/platform/correlation"
)

const monitorReconnectDelay = 5 * time.Second

// WatchMonitor consumes the agent's monitor status feed until ctx ends,
// reconnecting when the feed drops. This layer only reacts to transitions;
// the monitor owns them.
func (s *Service) WatchMonitor(ctx context.Context) {
	for {
		events, err := s.agent.WatchStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Monitor feed unavailable, retrying", "error", err, "delay", monitorReconnectDelay)
		} else {
			for ev := range events {
				s.HandleStatusEvent(ctx, ev)
			}
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Monitor feed closed, reconnecting", "delay", monitorReconnectDelay)
		}

		select {
		case <-s.clock.After(monitorReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// HandleStatusEvent reacts to one monitor push event. A cooldown transition
// triggers a settings re-fetch so the new cooldown window takes effect.
func (s *Service) HandleStatusEvent(ctx context.Context, ev domain.StatusEvent) {
	ctx = correlation.WithID(ctx, correlation.NewID())
	metrics.MonitorEventsTotal.WithLabelValues(string(ev.Status)).Inc()

	switch ev.Status {
	case domain.MonitorCooldown:
		slog.InfoContext(ctx, "Monitor entered cooldown, re-fetching settings")
		s.refetchSettings(ctx)
	case domain.MonitorRunning, domain.MonitorStopped:
		slog.DebugContext(ctx, "Monitor status changed", "status", ev.Status)
	default:
		slog.WarnContext(ctx, "Unknown monitor status", "status", ev.Status)
	}
}

// SyncSettings fetches the agent's settings immediately, outside any monitor
// transition. Used at startup so the first refresh already honors the agent's
// cooldown window.
func (s *Service) SyncSettings(ctx context.Context) {
	s.refetchSettings(ctx)
}

func (s *Service) refetchSettings(ctx context.Context) {
	settings, err := s.agent.FetchSettings(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Settings re-fetch failed", "error", err)
		return
	}

	s.mu.Lock()
	// Keep the configured default when the agent reports no cooldown.
	if settings.RefreshCooldownSeconds <= 0 {
		settings.RefreshCooldownSeconds = s.settings.RefreshCooldownSeconds
	}
	s.settings = settings
	s.mu.Unlock()

	s.logSettings()
}
