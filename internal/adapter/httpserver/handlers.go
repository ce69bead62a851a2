package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chun1617/kirman/internal/batch"
	apperrors "github.com/chun1617/kirman/internal/errors"
	"github.com/chun1617/kirman/internal/modal"
)

// commandResponse reports whether a guarded operation actually ran. A refused
// command (already in flight, cooling down, or cancelled at the prompt) is a
// 200 with executed=false, never an error.
type commandResponse struct {
	Executed bool `json:"executed"`
}

// batchResponse wraps a batch result with the executed flag.
type batchResponse struct {
	Executed bool         `json:"executed"`
	Result   batch.Result `json:"result"`
}

func (s *Server) handleListAccounts(c echo.Context) error {
	accounts, err := s.app.Accounts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accounts)
}

func (s *Server) handleRefreshAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperrors.ValidationError("account id is required")
	}

	executed, err := s.app.RefreshAccount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commandResponse{Executed: executed})
}

func (s *Server) handleSwitchAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperrors.ValidationError("account id is required")
	}

	executed, err := s.app.SwitchAccount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commandResponse{Executed: executed})
}

func (s *Server) handleResetMachineID(c echo.Context) error {
	executed, err := s.app.ResetMachineID(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commandResponse{Executed: executed})
}

type selectionRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleGetSelection(c echo.Context) error {
	return c.JSON(http.StatusOK, selectionRequest{IDs: s.app.SelectedKeys()})
}

func (s *Server) handleSetSelection(c echo.Context) error {
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid selection payload")
	}
	s.app.SetSelection(req.IDs)
	return c.JSON(http.StatusOK, selectionRequest{IDs: s.app.SelectedKeys()})
}

func (s *Server) handleClearSelection(c echo.Context) error {
	s.app.ClearSelection()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRefreshSelected(c echo.Context) error {
	result, executed := s.app.RefreshSelected(c.Request().Context())
	return c.JSON(http.StatusOK, batchResponse{Executed: executed, Result: result})
}

func (s *Server) handleDeleteSelected(c echo.Context) error {
	result, executed := s.app.DeleteSelected(c.Request().Context())
	return c.JSON(http.StatusOK, batchResponse{Executed: executed, Result: result})
}

// notificationsResponse is the pull-based snapshot for UIs that cannot hold a
// push socket open.
type notificationsResponse struct {
	Toast   *modal.Toast          `json:"toast"`
	Confirm *modal.ConfirmRequest `json:"confirm"`
}

func (s *Server) handleNotifications(c echo.Context) error {
	modals := s.app.Modals()
	return c.JSON(http.StatusOK, notificationsResponse{
		Toast:   modals.ActiveToast(),
		Confirm: modals.Pending(),
	})
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (s *Server) handleResolveConfirm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid confirmation id")
	}

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid confirmation payload")
	}

	if !s.app.Modals().Resolve(id, req.Confirmed) {
		return apperrors.NotFoundError("no pending confirmation with that id")
	}
	return c.NoContent(http.StatusNoContent)
}
