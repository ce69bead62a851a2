package httpserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/chun1617/kirman/internal/adapter/push"
	"github.com/chun1617/kirman/internal/app"
	"github.com/chun1617/kirman/internal/batch"
	apperrors "github.com/chun1617/kirman/internal/errors"
	"github.com/chun1617/kirman/internal/modal"
	"github.com/chun1617/kirman/internal/platform/config"
)

// --- Mock implementations ---

type mockCoordinator struct {
	accountsFn        func(ctx context.Context) ([]app.AccountView, error)
	refreshAccountFn  func(ctx context.Context, id string) (bool, error)
	refreshSelectedFn func(ctx context.Context) (batch.Result, bool)
	deleteSelectedFn  func(ctx context.Context) (batch.Result, bool)
	switchAccountFn   func(ctx context.Context, id string) (bool, error)
	resetMachineIDFn  func(ctx context.Context) (bool, error)

	modals    *modal.Coordinator
	selection []string
}

func (m *mockCoordinator) Accounts(ctx context.Context) ([]app.AccountView, error) {
	if m.accountsFn != nil {
		return m.accountsFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCoordinator) RefreshAccount(ctx context.Context, id string) (bool, error) {
	if m.refreshAccountFn != nil {
		return m.refreshAccountFn(ctx, id)
	}
	return true, nil
}

func (m *mockCoordinator) RefreshSelected(ctx context.Context) (batch.Result, bool) {
	if m.refreshSelectedFn != nil {
		return m.refreshSelectedFn(ctx)
	}
	return batch.Result{Success: true}, true
}

func (m *mockCoordinator) DeleteSelected(ctx context.Context) (batch.Result, bool) {
	if m.deleteSelectedFn != nil {
		return m.deleteSelectedFn(ctx)
	}
	return batch.Result{Success: true}, true
}

func (m *mockCoordinator) SwitchAccount(ctx context.Context, id string) (bool, error) {
	if m.switchAccountFn != nil {
		return m.switchAccountFn(ctx, id)
	}
	return true, nil
}

func (m *mockCoordinator) ResetMachineID(ctx context.Context) (bool, error) {
	if m.resetMachineIDFn != nil {
		return m.resetMachineIDFn(ctx)
	}
	return true, nil
}

func (m *mockCoordinator) SetSelection(ids []string) {
	m.selection = ids
}

func (m *mockCoordinator) SelectedKeys() []string {
	return m.selection
}

func (m *mockCoordinator) ClearSelection() {
	m.selection = nil
}

func (m *mockCoordinator) Modals() *modal.Coordinator {
	if m.modals == nil {
		m.modals = modal.NewCoordinator(clockwork.NewFakeClock())
	}
	return m.modals
}

// --- Test helpers ---

func newTestServer(t *testing.T, coord coordinator) *Server {
	t.Helper()

	e := echo.New()

	srv := &Server{
		echo:      e,
		config:    &config.Config{Port: "8090", APIRatePerSecond: 100, APIRateBurst: 100},
		app:       coord,
		hub:       push.NewHub(4),
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware()(handler)(c)
}
