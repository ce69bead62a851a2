package agent

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chun1617/kirman/internal/domain"
	apperrors "github.com/chun1617/kirman/internal/errors"
)

const statusStreamPath = "/api/status/ws"

// WatchStatus subscribes to the agent's monitor status feed. The returned
// channel delivers push events until ctx is cancelled or the connection
// drops, then closes. This layer only consumes the feed; it never drives the
// monitor's state transitions.
func (c *Client) WatchStatus(ctx context.Context) (<-chan domain.StatusEvent, error) {
	wsURL, err := c.statusStreamURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, apperrors.ExternalError("failed to connect to agent status feed", err)
	}

	events := make(chan domain.StatusEvent)
	readDone := make(chan struct{})

	// Closing the connection is the only way to interrupt a blocked read. The
	// closer must also exit when the read loop ends on its own, or every
	// dropped connection would park one goroutine on ctx for good.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readDone:
		}
	}()

	go func() {
		defer close(events)
		defer close(readDone)
		defer func() { _ = conn.Close() }()

		for {
			var ev domain.StatusEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					slog.Warn("Agent status feed closed", "error", err)
				}
				return
			}
			if ev.At.IsZero() {
				ev.At = time.Now()
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (c *Client) statusStreamURL() (string, error) {
	u, err := url.Parse(c.baseURL + statusStreamPath)
	if err != nil {
		return "", apperrors.InternalError("invalid agent URL", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
