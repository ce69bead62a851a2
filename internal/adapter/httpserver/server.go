package httpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chun1617/kirman/internal/adapter/push"
	"github.com/chun1617/kirman/internal/app"
	"github.com/chun1617/kirman/internal/batch"
	"github.com/chun1617/kirman/internal/modal"
	"github.com/chun1617/kirman/internal/platform/config"
)

// coordinator is the slice of the application service the HTTP layer needs.
type coordinator interface {
	Accounts(ctx context.Context) ([]app.AccountView, error)
	RefreshAccount(ctx context.Context, id string) (bool, error)
	RefreshSelected(ctx context.Context) (batch.Result, bool)
	DeleteSelected(ctx context.Context) (batch.Result, bool)
	SwitchAccount(ctx context.Context, id string) (bool, error)
	ResetMachineID(ctx context.Context) (bool, error)
	SetSelection(ids []string)
	SelectedKeys() []string
	ClearSelection()
	Modals() *modal.Coordinator
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       coordinator
	hub       *push.Hub
	startTime time.Time
}

func NewServer(cfg *config.Config, app coordinator, hub *push.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		hub:       hub,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
