package domain

import (
	"context"
	"time"
)

// Account is the entity user-triggered operations act on.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Plan          string    `json:"plan"`
	UsagePercent  float64   `json:"usagePercent"`
	Active        bool      `json:"active"`
	LastRefreshed time.Time `json:"lastRefreshed"`
}

// Settings is the agent-side configuration this layer consumes. It is
// re-fetched when the monitor reports a cooldown transition.
type Settings struct {
	RefreshCooldownSeconds int           `json:"refreshCooldownSeconds"`
	OperationTimeout       time.Duration `json:"operationTimeout"`
	MonitorEnabled         bool          `json:"monitorEnabled"`
}

// AgentClient is the boundary to the out-of-scope collaborator. Every call is
// an opaque async operation that either resolves to a Result or fails on
// transport.
type AgentClient interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	RefreshAccount(ctx context.Context, id string) (Result, error)
	DeleteAccount(ctx context.Context, id string) (Result, error)
	SwitchAccount(ctx context.Context, id string) (Result, error)
	ResetMachineID(ctx context.Context) (Result, error)
	FetchSettings(ctx context.Context) (Settings, error)
	WatchStatus(ctx context.Context) (<-chan StatusEvent, error)
}
