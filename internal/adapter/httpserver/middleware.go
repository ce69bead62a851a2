package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/chun1617/kirman/internal/platform/correlation"
)

// correlationMiddleware attaches a correlation ID to every request context so
// all log lines for one request can be tied together.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := correlation.WithID(req.Context(), correlation.NewID())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
