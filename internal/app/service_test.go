package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chun1617/kirman/internal/batch"
	"github.com/chun1617/kirman/internal/domain"
)

// stubAgent lets each test script the collaborator's behavior per method.
type stubAgent struct {
	mu           sync.Mutex
	refreshCalls []string
	deleteCalls  []string

	listFn     func(ctx context.Context) ([]domain.Account, error)
	refreshFn  func(ctx context.Context, id string) (domain.Result, error)
	deleteFn   func(ctx context.Context, id string) (domain.Result, error)
	switchFn   func(ctx context.Context, id string) (domain.Result, error)
	resetFn    func(ctx context.Context) (domain.Result, error)
	settingsFn func(ctx context.Context) (domain.Settings, error)
}

func (a *stubAgent) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	if a.listFn != nil {
		return a.listFn(ctx)
	}
	return nil, nil
}

func (a *stubAgent) RefreshAccount(ctx context.Context, id string) (domain.Result, error) {
	a.mu.Lock()
	a.refreshCalls = append(a.refreshCalls, id)
	a.mu.Unlock()
	if a.refreshFn != nil {
		return a.refreshFn(ctx, id)
	}
	return domain.Result{Success: true}, nil
}

func (a *stubAgent) DeleteAccount(ctx context.Context, id string) (domain.Result, error) {
	a.mu.Lock()
	a.deleteCalls = append(a.deleteCalls, id)
	a.mu.Unlock()
	if a.deleteFn != nil {
		return a.deleteFn(ctx, id)
	}
	return domain.Result{Success: true}, nil
}

func (a *stubAgent) SwitchAccount(ctx context.Context, id string) (domain.Result, error) {
	if a.switchFn != nil {
		return a.switchFn(ctx, id)
	}
	return domain.Result{Success: true}, nil
}

func (a *stubAgent) ResetMachineID(ctx context.Context) (domain.Result, error) {
	if a.resetFn != nil {
		return a.resetFn(ctx)
	}
	return domain.Result{Success: true}, nil
}

func (a *stubAgent) FetchSettings(ctx context.Context) (domain.Settings, error) {
	if a.settingsFn != nil {
		return a.settingsFn(ctx)
	}
	return domain.Settings{}, nil
}

func (a *stubAgent) WatchStatus(ctx context.Context) (<-chan domain.StatusEvent, error) {
	return nil, errors.New("not implemented")
}

func (a *stubAgent) refreshed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.refreshCalls...)
}

func (a *stubAgent) deleted() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.deleteCalls...)
}

func newTestService(agent *stubAgent) (*Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	svc := NewService(agent, clock, Options{
		RefreshCooldownSeconds: 60,
		OperationTimeout:       30 * time.Second,
	})
	return svc, clock
}

func TestRefreshAccount_StartsCooldown(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	executed, err := svc.RefreshAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, []string{"a1"}, agent.refreshed())
	assert.Equal(t, 60, svc.Cooldowns().Remaining(refreshOp("a1")))

	toast := svc.Modals().ActiveToast()
	require.NotNil(t, toast)
	assert.Equal(t, domain.SeveritySuccess, toast.Severity)
}

func TestRefreshAccount_RefusedDuringCooldown(t *testing.T) {
	agent := &stubAgent{}
	svc, clock := newTestService(agent)
	defer svc.Close()

	_, err := svc.RefreshAccount(context.Background(), "a1")
	require.NoError(t, err)

	executed, err := svc.RefreshAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, executed, "refresh during cooldown is a no-op, not an error")
	assert.Equal(t, []string{"a1"}, agent.refreshed(), "agent not called again")

	toast := svc.Modals().ActiveToast()
	require.NotNil(t, toast)
	assert.Equal(t, domain.SeverityWarning, toast.Severity)

	// After the cooldown lifts the refresh runs again.
	clock.Advance(61 * time.Second)
	executed, err = svc.RefreshAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, []string{"a1", "a1"}, agent.refreshed())
}

func TestRefreshAccount_FailedResultShowsErrorToast(t *testing.T) {
	agent := &stubAgent{
		refreshFn: func(context.Context, string) (domain.Result, error) {
			return domain.Result{Success: false, Message: "quota exhausted"}, nil
		},
	}
	svc, _ := newTestService(agent)
	defer svc.Close()

	executed, err := svc.RefreshAccount(context.Background(), "a1")
	assert.True(t, executed)
	require.Error(t, err)

	toast := svc.Modals().ActiveToast()
	require.NotNil(t, toast)
	assert.Equal(t, "quota exhausted", toast.Message)
	assert.Equal(t, domain.SeverityError, toast.Severity)

	assert.False(t, svc.Cooldowns().IsActive(refreshOp("a1")), "failed refresh must not start the cooldown")
}

func TestRefreshAccount_TimeoutClearsInFlightFlag(t *testing.T) {
	release := make(chan struct{})
	agent := &stubAgent{
		refreshFn: func(context.Context, string) (domain.Result, error) {
			<-release
			return domain.Result{Success: true}, nil
		},
	}
	svc, clock := newTestService(agent)
	defer svc.Close()
	defer close(release)

	type outcome struct {
		executed bool
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		executed, err := svc.RefreshAccount(context.Background(), "a1")
		done <- outcome{executed: executed, err: err}
	}()

	// Wait for the timeout timer to be armed, then fire it.
	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	res := <-done
	assert.True(t, res.executed)
	require.Error(t, res.err)
	assert.False(t, svc.Flights().Active(refreshOp("a1")), "flag cleared exactly once even when the timer wins")

	toast := svc.Modals().ActiveToast()
	require.NotNil(t, toast)
	assert.Equal(t, "Refresh timed out", toast.Message)
}

func TestRefreshSelected_MixedOutcomes(t *testing.T) {
	agent := &stubAgent{
		refreshFn: func(_ context.Context, id string) (domain.Result, error) {
			if id == "b" {
				return domain.Result{}, errors.New("x")
			}
			return domain.Result{Success: true}, nil
		},
	}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Select("a", "b")
	result, executed := svc.RefreshSelected(context.Background())
	require.True(t, executed)

	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.FailedItems, 1)
	assert.Equal(t, "b", result.FailedItems[0].Key)
	assert.Equal(t, "x", result.FailedItems[0].Error)
	assert.False(t, result.Success)

	assert.Empty(t, svc.SelectedKeys(), "selection cleared after a processed batch")
}

func TestRefreshSelected_AllCoolingDownKeepsSelection(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Cooldowns().Start(refreshOp("a"), 60)
	svc.Cooldowns().Start(refreshOp("b"), 60)
	svc.Select("a", "b")

	result, executed := svc.RefreshSelected(context.Background())
	require.True(t, executed)

	assert.True(t, result.AllSkipped)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Empty(t, agent.refreshed(), "no agent calls for a fully-skipped batch")
	assert.Equal(t, []string{"a", "b"}, svc.SelectedKeys(), "selection kept for retry")
}

func TestRefreshSelected_SkipsCoolingKeys(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Cooldowns().Start(refreshOp("a"), 60)
	svc.Select("a", "b")

	result, executed := svc.RefreshSelected(context.Background())
	require.True(t, executed)

	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, []string{"b"}, agent.refreshed())
	assert.Empty(t, svc.SelectedKeys())
}

func TestDeleteSelected_Confirmed(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Select("a", "b")

	type outcome struct {
		result batch.Result
		ran    bool
	}
	done := make(chan outcome, 1)
	go func() {
		result, ran := svc.DeleteSelected(context.Background())
		done <- outcome{result: result, ran: ran}
	}()

	require.Eventually(t, func() bool { return svc.Modals().Pending() != nil }, time.Second, 5*time.Millisecond)
	pending := svc.Modals().Pending()
	assert.Equal(t, domain.SeverityDanger, pending.Severity)
	require.True(t, svc.Modals().Resolve(pending.ID, true))

	res := <-done
	assert.True(t, res.ran)
	assert.Equal(t, 2, res.result.Processed())
	assert.Equal(t, []string{"a", "b"}, agent.deleted())
	assert.Empty(t, svc.SelectedKeys())
}

func TestDeleteSelected_Cancelled(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Select("a")

	done := make(chan bool, 1)
	go func() {
		_, ran := svc.DeleteSelected(context.Background())
		done <- ran
	}()

	require.Eventually(t, func() bool { return svc.Modals().Pending() != nil }, time.Second, 5*time.Millisecond)
	require.True(t, svc.Modals().Resolve(svc.Modals().Pending().ID, false))

	assert.False(t, <-done)
	assert.Empty(t, agent.deleted(), "cancel means no agent calls")
	assert.Equal(t, []string{"a"}, svc.SelectedKeys(), "selection untouched on cancel")
}

func TestDeleteSelected_ContextCancelWithdrawsPrompt(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Select("a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		_, ran := svc.DeleteSelected(ctx)
		done <- ran
	}()

	require.Eventually(t, func() bool { return svc.Modals().Pending() != nil }, time.Second, 5*time.Millisecond)
	pending := svc.Modals().Pending()
	cancel()

	assert.False(t, <-done)
	assert.Nil(t, svc.Modals().Pending(), "the abandoned prompt is withdrawn")
	assert.False(t, svc.Modals().Resolve(pending.ID, true), "a late resolve finds nothing to settle")
	assert.Empty(t, agent.deleted())
	assert.Equal(t, []string{"a"}, svc.SelectedKeys())
}

func TestDeleteSelected_EmptySelection(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	_, ran := svc.DeleteSelected(context.Background())
	assert.False(t, ran)
	assert.Nil(t, svc.Modals().Pending(), "no prompt for an empty selection")
}

func TestResetMachineID_ConfirmedAndGuarded(t *testing.T) {
	agent := &stubAgent{}
	svc, _ := newTestService(agent)
	defer svc.Close()

	done := make(chan bool, 1)
	go func() {
		executed, err := svc.ResetMachineID(context.Background())
		assert.NoError(t, err)
		done <- executed
	}()

	require.Eventually(t, func() bool { return svc.Modals().Pending() != nil }, time.Second, 5*time.Millisecond)
	require.True(t, svc.Modals().Resolve(svc.Modals().Pending().ID, true))
	assert.True(t, <-done)
}

func TestHandleStatusEvent_CooldownRefetchesSettings(t *testing.T) {
	fetches := 0
	agent := &stubAgent{
		settingsFn: func(context.Context) (domain.Settings, error) {
			fetches++
			return domain.Settings{RefreshCooldownSeconds: 120}, nil
		},
	}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.HandleStatusEvent(context.Background(), domain.StatusEvent{Status: domain.MonitorCooldown})
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 120, svc.refreshCooldownSeconds())

	// Other statuses are react-only: no fetch.
	svc.HandleStatusEvent(context.Background(), domain.StatusEvent{Status: domain.MonitorRunning})
	svc.HandleStatusEvent(context.Background(), domain.StatusEvent{Status: domain.MonitorStopped})
	assert.Equal(t, 1, fetches)
}

func TestSelection(t *testing.T) {
	svc, _ := newTestService(&stubAgent{})
	defer svc.Close()

	svc.Select("a", "b", "a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, svc.SelectedKeys(), "insertion order, no duplicates")

	svc.Deselect("b")
	assert.Equal(t, []string{"a", "c"}, svc.SelectedKeys())

	svc.SetSelection([]string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, svc.SelectedKeys())

	svc.ClearSelection()
	assert.Empty(t, svc.SelectedKeys())
}

func TestAccounts_AnnotatesCoordinationState(t *testing.T) {
	agent := &stubAgent{
		listFn: func(context.Context) ([]domain.Account, error) {
			return []domain.Account{{ID: "a1"}, {ID: "a2"}}, nil
		},
	}
	svc, _ := newTestService(agent)
	defer svc.Close()

	svc.Cooldowns().Start(refreshOp("a1"), 45)
	svc.Select("a2")

	views, err := svc.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, 45, views[0].CooldownSeconds)
	assert.False(t, views[0].Selected)
	assert.True(t, views[1].Selected)
	assert.Equal(t, 0, views[1].CooldownSeconds)
}
