package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/chun1617/kirman/internal/errors"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware())
	s.echo.Use(apperrors.Middleware())

	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/ws", s.handlePush)

	api := s.echo.Group("/api", newRateLimiter(s.config.APIRatePerSecond, s.config.APIRateBurst))
	api.GET("/accounts", s.handleListAccounts)
	api.POST("/accounts/:id/refresh", s.handleRefreshAccount)
	api.POST("/accounts/:id/switch", s.handleSwitchAccount)
	api.POST("/machine/reset", s.handleResetMachineID)

	api.GET("/selection", s.handleGetSelection)
	api.PUT("/selection", s.handleSetSelection)
	api.DELETE("/selection", s.handleClearSelection)
	api.POST("/selection/refresh", s.handleRefreshSelected)
	api.POST("/selection/delete", s.handleDeleteSelected)

	api.GET("/notifications", s.handleNotifications)
	api.POST("/confirm/:id", s.handleResolveConfirm)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
