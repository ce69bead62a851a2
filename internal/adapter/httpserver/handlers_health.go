package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chun1617/kirman/internal/platform/version"
)

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	UptimeSecs  int64  `json:"uptimeSeconds"`
	PushClients int    `json:"pushClients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     version.Version,
		UptimeSecs:  int64(time.Since(s.startTime) / time.Second),
		PushClients: s.hub.ClientCount(),
	})
}
