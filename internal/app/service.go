package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chun1617/kirman/internal/batch"
	"github.com/chun1617/kirman/internal/cooldown"
	"github.com/chun1617/kirman/internal/domain"
	apperrors "github.com/chun1617/kirman/internal/errors"
	"github.com/chun1617/kirman/internal/flight"
	"github.com/chun1617/kirman/internal/metrics"
	"github.com/chun1617/kirman/internal/modal"
	"github.com/chun1617/kirman/internal/timeout"
)

// Operation names for the single-flight group. Refresh guards are per
// account; the rest guard one logical action each.
const (
	opRefreshSelected = "refresh-selected"
	opDeleteSelected  = "delete-selected"
	opSwitchAccount   = "switch-account"
	opResetMachineID  = "reset-machine-id"
)

func refreshOp(accountID string) string {
	return "refresh:" + accountID
}

// Options tunes the coordination defaults. Zero values fall back to sensible
// defaults; the agent's settings endpoint can override the refresh cooldown
// at runtime.
type Options struct {
	RefreshCooldownSeconds int
	OperationTimeout       time.Duration
	ToastDuration          time.Duration
}

// Service owns one scope's coordination state: the single-flight group, the
// cooldown registry, the modal coordinator, and the selection. Multiple
// scopes construct independent services; nothing here is package-level.
type Service struct {
	agent     domain.AgentClient
	clock     clockwork.Clock
	flights   *flight.Group
	cooldowns *cooldown.Registry
	modals    *modal.Coordinator

	opTimeout     time.Duration
	toastDuration time.Duration

	mu        sync.Mutex
	selection []string
	selected  map[string]struct{}
	settings  domain.Settings
}

func NewService(agent domain.AgentClient, clock clockwork.Clock, opts Options) *Service {
	if opts.RefreshCooldownSeconds <= 0 {
		opts.RefreshCooldownSeconds = 60
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 30 * time.Second
	}
	if opts.ToastDuration <= 0 {
		opts.ToastDuration = modal.DefaultToastDuration
	}

	return &Service{
		agent:         agent,
		clock:         clock,
		flights:       flight.NewGroup(),
		cooldowns:     cooldown.NewRegistry(clock),
		modals:        modal.NewCoordinator(clock),
		opTimeout:     opts.OperationTimeout,
		toastDuration: opts.ToastDuration,
		selected:      make(map[string]struct{}),
		settings:      domain.Settings{RefreshCooldownSeconds: opts.RefreshCooldownSeconds},
	}
}

// Modals exposes the coordinator so the HTTP layer can resolve confirms and
// the push hub can subscribe. Callers must not bypass the service's operation
// entry points with it.
func (s *Service) Modals() *modal.Coordinator {
	return s.modals
}

// Cooldowns exposes read access to the cooldown registry.
func (s *Service) Cooldowns() *cooldown.Registry {
	return s.cooldowns
}

// Flights exposes read access to the single-flight group.
func (s *Service) Flights() *flight.Group {
	return s.flights
}

// Close tears down the service-owned coordination state.
func (s *Service) Close() {
	s.cooldowns.Close()
	s.modals.Close()
}

// AccountView decorates an agent account with this scope's coordination
// state for the UI.
type AccountView struct {
	domain.Account
	CooldownSeconds int  `json:"cooldownSeconds"`
	Refreshing      bool `json:"refreshing"`
	Selected        bool `json:"selected"`
}

// Accounts lists the agent's accounts annotated with cooldown, in-flight,
// and selection state.
func (s *Service) Accounts(ctx context.Context) ([]AccountView, error) {
	accounts, err := s.agent.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]AccountView, 0, len(accounts))
	for _, acc := range accounts {
		_, selected := s.selected[acc.ID]
		views = append(views, AccountView{
			Account:         acc,
			CooldownSeconds: s.cooldowns.Remaining(refreshOp(acc.ID)),
			Refreshing:      s.flights.Active(refreshOp(acc.ID)),
			Selected:        selected,
		})
	}
	return views, nil
}

// RefreshAccount refreshes a single account's usage data. Refused silently
// when the same account is already refreshing (first-writer-wins) and
// short-circuited with a warning toast while its cooldown is active. On
// completion the per-account cooldown restarts.
func (s *Service) RefreshAccount(ctx context.Context, id string) (bool, error) {
	op := refreshOp(id)

	if s.cooldowns.IsActive(op) {
		s.showToast(fmt.Sprintf("Refresh available in %ds", s.cooldowns.Remaining(op)), domain.SeverityWarning)
		return false, nil
	}

	var opErr error
	executed, err := s.flights.Do(ctx, op, func(ctx context.Context) error {
		opErr = s.refreshOne(ctx, id)
		return opErr
	})
	if err == nil {
		err = opErr
	}

	if !executed {
		metrics.OperationsTotal.WithLabelValues("refresh", "refused").Inc()
		return false, nil
	}

	switch {
	case timeout.IsTimeout(err):
		metrics.OperationsTotal.WithLabelValues("refresh", "timeout").Inc()
		s.showToast("Refresh timed out", domain.SeverityError)
		return true, err
	case err != nil:
		metrics.OperationsTotal.WithLabelValues("refresh", "failed").Inc()
		s.showToast(apperrors.Normalize(err, "Refresh failed"), domain.SeverityError)
		return true, err
	default:
		metrics.OperationsTotal.WithLabelValues("refresh", "success").Inc()
		s.showToast("Account refreshed", domain.SeveritySuccess)
		return true, nil
	}
}

// refreshOne performs the timeout-guarded agent call for one account and
// restarts its cooldown on success.
func (s *Service) refreshOne(ctx context.Context, id string) error {
	started := s.clock.Now()
	result, err := timeout.Do(ctx, s.clock, s.opTimeout, "refresh timed out", func(ctx context.Context) (domain.Result, error) {
		return s.agent.RefreshAccount(ctx, id)
	})
	metrics.OperationDuration.WithLabelValues("refresh").Observe(s.clock.Since(started).Seconds())
	if err != nil {
		return err
	}
	if !result.Success {
		return apperrors.ExternalError(apperrors.NormalizeMessage(result.Message, "refresh failed"), nil)
	}

	s.cooldowns.Start(refreshOp(id), s.refreshCooldownSeconds())
	return nil
}

// RefreshSelected refreshes every selected account, skipping those still
// cooling down. A fully-skipped batch keeps the selection so it can be
// retried once the cooldowns lift; otherwise the selection is cleared when
// anything was actually processed.
func (s *Service) RefreshSelected(ctx context.Context) (batch.Result, bool) {
	var result batch.Result
	executed, _ := s.flights.Do(ctx, opRefreshSelected, func(ctx context.Context) error {
		result = s.runRefreshSelected(ctx)
		return nil
	})
	if !executed {
		metrics.OperationsTotal.WithLabelValues(opRefreshSelected, "refused").Inc()
	}
	return result, executed
}

func (s *Service) runRefreshSelected(ctx context.Context) batch.Result {
	keys := s.SelectedKeys()
	if len(keys) == 0 {
		s.showToast("No accounts selected", domain.SeverityInfo)
		return batch.Result{Success: true, FailedItems: []batch.FailedItem{}}
	}

	result := batch.Run(ctx, keys, func(ctx context.Context, key string) error {
		return s.refreshOne(ctx, key)
	}, func(key string) bool {
		return s.cooldowns.IsActive(refreshOp(key))
	})

	s.recordBatch(opRefreshSelected, result)
	s.finishBatch(result)

	switch {
	case result.AllSkipped:
		s.showToast("All selected accounts are cooling down", domain.SeverityWarning)
	case result.Success:
		s.showToast(fmt.Sprintf("Refreshed %d accounts", result.SuccessCount), domain.SeveritySuccess)
	default:
		s.showToast(fmt.Sprintf("Refreshed %d accounts, %d failed", result.SuccessCount, len(result.FailedItems)), domain.SeverityError)
	}
	return result
}

// DeleteSelected asks for confirmation, then deletes every selected account.
// Per-item failures are aggregated and never abort the batch.
func (s *Service) DeleteSelected(ctx context.Context) (batch.Result, bool) {
	keys := s.SelectedKeys()
	if len(keys) == 0 {
		s.showToast("No accounts selected", domain.SeverityInfo)
		return batch.Result{Success: true, FailedItems: []batch.FailedItem{}}, false
	}

	confirmed := s.confirm(ctx, modal.ConfirmOptions{
		Title:        "Delete accounts",
		Message:      fmt.Sprintf("Delete %d selected accounts? This cannot be undone.", len(keys)),
		Severity:     domain.SeverityDanger,
		ConfirmLabel: "Delete",
	})
	if !confirmed {
		s.showToast("Deletion cancelled", domain.SeverityInfo)
		return batch.Result{}, false
	}

	var result batch.Result
	executed, _ := s.flights.Do(ctx, opDeleteSelected, func(ctx context.Context) error {
		result = batch.Run(ctx, keys, func(ctx context.Context, key string) error {
			return s.deleteOne(ctx, key)
		}, nil)
		return nil
	})
	if !executed {
		metrics.OperationsTotal.WithLabelValues(opDeleteSelected, "refused").Inc()
		return batch.Result{}, false
	}

	s.recordBatch(opDeleteSelected, result)
	s.finishBatch(result)

	if result.Success {
		s.showToast(fmt.Sprintf("Deleted %d accounts", result.SuccessCount), domain.SeveritySuccess)
	} else {
		s.showToast(fmt.Sprintf("Deleted %d accounts, %d failed", result.SuccessCount, len(result.FailedItems)), domain.SeverityError)
	}
	return result, true
}

func (s *Service) deleteOne(ctx context.Context, id string) error {
	result, err := timeout.Do(ctx, s.clock, s.opTimeout, "delete timed out", func(ctx context.Context) (domain.Result, error) {
		return s.agent.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return apperrors.ExternalError(apperrors.NormalizeMessage(result.Message, "delete failed"), nil)
	}
	return nil
}

// SwitchAccount makes the given account active, after confirmation.
func (s *Service) SwitchAccount(ctx context.Context, id string) (bool, error) {
	confirmed := s.confirm(ctx, modal.ConfirmOptions{
		Title:   "Switch account",
		Message: "Switch the active account? The editor will restart.",
	})
	if !confirmed {
		return false, nil
	}

	return s.guardedCommand(ctx, opSwitchAccount, "Account switched", "Switch failed", func(ctx context.Context) (domain.Result, error) {
		return s.agent.SwitchAccount(ctx, id)
	})
}

// ResetMachineID regenerates the machine identifier, after a danger
// confirmation. The agent call is timeout-guarded; on timeout the outcome is
// unknown, not aborted, and the user is told so distinctly.
func (s *Service) ResetMachineID(ctx context.Context) (bool, error) {
	confirmed := s.confirm(ctx, modal.ConfirmOptions{
		Title:        "Reset machine ID",
		Message:      "Generate a new machine identifier? Running editors must be restarted.",
		Severity:     domain.SeverityDanger,
		ConfirmLabel: "Reset",
	})
	if !confirmed {
		return false, nil
	}

	return s.guardedCommand(ctx, opResetMachineID, "Machine ID reset", "Machine ID reset failed", func(ctx context.Context) (domain.Result, error) {
		return s.agent.ResetMachineID(ctx)
	})
}

// guardedCommand runs one agent command under single-flight and timeout
// protection, translating the outcome into a toast. The in-flight flag is
// released on every exit path by the guard itself.
func (s *Service) guardedCommand(ctx context.Context, op, successMsg, failureMsg string, call func(context.Context) (domain.Result, error)) (bool, error) {
	var opErr error
	executed, err := s.flights.Do(ctx, op, func(ctx context.Context) error {
		started := s.clock.Now()
		result, callErr := timeout.Do(ctx, s.clock, s.opTimeout, failureMsg+": timed out", call)
		metrics.OperationDuration.WithLabelValues(op).Observe(s.clock.Since(started).Seconds())
		if callErr != nil {
			opErr = callErr
			return callErr
		}
		if !result.Success {
			opErr = apperrors.ExternalError(apperrors.NormalizeMessage(result.Message, failureMsg), nil)
			return opErr
		}
		return nil
	})
	if err == nil {
		err = opErr
	}

	if !executed {
		metrics.OperationsTotal.WithLabelValues(op, "refused").Inc()
		return false, nil
	}

	switch {
	case timeout.IsTimeout(err):
		metrics.OperationsTotal.WithLabelValues(op, "timeout").Inc()
		s.showToast("Operation timed out", domain.SeverityError)
		return true, err
	case err != nil:
		metrics.OperationsTotal.WithLabelValues(op, "failed").Inc()
		s.showToast(apperrors.Normalize(err, failureMsg), domain.SeverityError)
		return true, err
	default:
		metrics.OperationsTotal.WithLabelValues(op, "success").Inc()
		s.showToast(successMsg, domain.SeveritySuccess)
		return true, nil
	}
}

// confirm shows a prompt and awaits its resolution. Context cancellation
// while waiting counts as a cancel and withdraws the prompt, so a late
// resolve cannot hit a request nobody is waiting on anymore.
func (s *Service) confirm(ctx context.Context, opts modal.ConfirmOptions) bool {
	req, done := s.modals.ShowConfirm(opts)
	select {
	case confirmed := <-done:
		if confirmed {
			metrics.ConfirmsResolvedTotal.WithLabelValues("confirmed").Inc()
		} else {
			metrics.ConfirmsResolvedTotal.WithLabelValues("cancelled").Inc()
		}
		return confirmed
	case <-ctx.Done():
		s.modals.Resolve(req.ID, false)
		metrics.ConfirmsResolvedTotal.WithLabelValues("cancelled").Inc()
		return false
	}
}

func (s *Service) showToast(message string, severity domain.Severity) {
	metrics.ToastsShownTotal.WithLabelValues(string(severity)).Inc()
	s.modals.ShowToast(message, severity, s.toastDuration)
}

// finishBatch clears the selection only when at least one key was actually
// processed. A fully-skipped batch stays selected for retry.
func (s *Service) finishBatch(result batch.Result) {
	if result.Processed() > 0 {
		s.ClearSelection()
	}
}

func (s *Service) recordBatch(op string, result batch.Result) {
	metrics.BatchItemsTotal.WithLabelValues(op, "success").Add(float64(result.SuccessCount))
	metrics.BatchItemsTotal.WithLabelValues(op, "skipped").Add(float64(result.SkippedCount))
	metrics.BatchItemsTotal.WithLabelValues(op, "failed").Add(float64(len(result.FailedItems)))
}

func (s *Service) refreshCooldownSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.RefreshCooldownSeconds
}

func (s *Service) logSettings() {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()
	slog.Info("Settings updated", "refresh_cooldown_seconds", settings.RefreshCooldownSeconds, "monitor_enabled", settings.MonitorEnabled)
}
