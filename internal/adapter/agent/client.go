// Package agent is the HTTP adapter for the host agent, the external
// collaborator that owns the actual account, machine-ID, and patch logic.
// This layer treats every call as an opaque async operation resolving to a
// {success, message} result and never defines the agent's wire format.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chun1617/kirman/internal/domain"
	apperrors "github.com/chun1617/kirman/internal/errors"
	"github.com/chun1617/kirman/internal/platform/retry"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the agent's local RPC surface.
type Client struct {
	baseURL string
	httpc   *http.Client
	policy  retry.Policy
}

// NewClient creates an agent client for the given base URL. requestTimeout
// bounds a single HTTP attempt; retries are governed by the client's policy.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
		},
	}
}

func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.call(ctx, http.MethodGet, "/api/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) RefreshAccount(ctx context.Context, id string) (domain.Result, error) {
	return c.callResult(ctx, http.MethodPost, "/api/accounts/"+id+"/refresh")
}

func (c *Client) DeleteAccount(ctx context.Context, id string) (domain.Result, error) {
	return c.callResult(ctx, http.MethodDelete, "/api/accounts/"+id)
}

func (c *Client) SwitchAccount(ctx context.Context, id string) (domain.Result, error) {
	return c.callResult(ctx, http.MethodPost, "/api/accounts/"+id+"/switch")
}

func (c *Client) ResetMachineID(ctx context.Context) (domain.Result, error) {
	return c.callResult(ctx, http.MethodPost, "/api/machine/reset")
}

func (c *Client) FetchSettings(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	if err := c.call(ctx, http.MethodGet, "/api/settings", &settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// callResult performs a command call whose body decodes into the agent's
// {success, message} result shape. A Success=false result is not an error;
// the caller decides what a refused command means.
func (c *Client) callResult(ctx context.Context, method, path string) (domain.Result, error) {
	var result domain.Result
	if err := c.call(ctx, method, path, &result); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// call performs one agent request with transport retries. Transient failures
// (network errors, 5xx) retry with backoff, 429 uses the rate-limit backoff,
// and other 4xx abort immediately.
func (c *Client) call(ctx context.Context, method, path string, out any) error {
	op := func() error {
		return c.doOnce(ctx, method, path, out)
	}
	if err := retry.DoVoid(ctx, c.policy, classify, op); err != nil {
		var permanent *retry.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		return err
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return apperrors.InternalError("failed to build agent request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperrors.ExternalError("agent unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{
			code:    resp.StatusCode,
			message: strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.ExternalError("failed to decode agent response", err)
	}
	return nil
}

// statusError carries a non-2xx agent status for retry classification.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("agent returned status %d", e.code)
	}
	return fmt.Sprintf("agent returned status %d: %s", e.code, e.message)
}

func classify(err error) retry.Action {
	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.code == http.StatusTooManyRequests:
			return retry.After
		case status.code >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	var structured *apperrors.Error
	if errors.As(err, &structured) && structured.Type == apperrors.TypeExternal {
		return retry.Retry
	}
	return retry.Stop
}
