package httpserver

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/chun1617/kirman/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handlePush upgrades the connection and registers it with the push hub. The
// socket is write-only from the server's perspective; the read loop exists to
// notice the client going away.
func (s *Server) handlePush(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apperrors.ValidationError("websocket upgrade failed").WithContext("cause", err.Error())
	}

	if !s.hub.Register(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many clients"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	}
	defer s.hub.Unregister(conn)

	slog.DebugContext(c.Request().Context(), "Push client connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.DebugContext(c.Request().Context(), "Push client disconnected", "error", err)
			}
			return nil
		}
	}
}
