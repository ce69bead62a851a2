// Package modal turns user confirmation and transient notifications into
// awaitable, exactly-once-resolving values. Each owning scope constructs its
// own Coordinator; timer handles are instance state, never package state, so
// concurrent scopes (tests, multiple windows) cannot leak into each other.
package modal

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/chun1617/kirman/internal/domain"
)

// DefaultToastDuration is used when ShowToast is called with a non-positive
// duration.
const DefaultToastDuration = 3 * time.Second

// ConfirmOptions describes a confirmation prompt. Empty fields are defaulted.
type ConfirmOptions struct {
	Title        string
	Message      string
	Severity     domain.Severity
	ConfirmLabel string
	CancelLabel  string
}

// ConfirmRequest is the pending prompt as shown to the user. Pure data; the
// resolution channel stays inside the coordinator.
type ConfirmRequest struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	Severity     domain.Severity `json:"severity"`
	ConfirmLabel string          `json:"confirmLabel"`
	CancelLabel  string          `json:"cancelLabel"`
}

// Toast is the currently displayed transient notification.
type Toast struct {
	Message   string          `json:"message"`
	Severity  domain.Severity `json:"severity"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// EventKind tags coordinator change events pushed to subscribers.
type EventKind string

const (
	EventToastShown      EventKind = "toast_shown"
	EventToastHidden     EventKind = "toast_hidden"
	EventConfirmShown    EventKind = "confirm_shown"
	EventConfirmResolved EventKind = "confirm_resolved"
)

// Event is one coordinator state change.
type Event struct {
	Kind      EventKind       `json:"kind"`
	Toast     *Toast          `json:"toast,omitempty"`
	Confirm   *ConfirmRequest `json:"confirm,omitempty"`
	Confirmed bool            `json:"confirmed,omitempty"`
}

type pendingConfirm struct {
	request  ConfirmRequest
	done     chan bool
	resolved bool
}

// Coordinator owns at most one pending confirm request and at most one
// active toast with its dismissal timer.
type Coordinator struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	pending    *pendingConfirm
	toast      *Toast
	toastTimer clockwork.Timer
	toastGen   uint64
	subs       map[int]func(Event)
	nextSub    int
	closed     bool
}

func NewCoordinator(clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		clock: clock,
		subs:  make(map[int]func(Event)),
	}
}

// ShowConfirm registers a confirmation prompt and returns the registered
// request plus a channel that resolves exactly once: true when confirmed,
// false when cancelled. A new prompt while one is still pending auto-resolves
// the prior prompt as cancelled and replaces it. On a closed coordinator the
// channel comes back already resolved as cancelled.
func (c *Coordinator) ShowConfirm(opts ConfirmOptions) (ConfirmRequest, <-chan bool) {
	severity := opts.Severity
	if !severity.Valid() {
		severity = domain.SeverityWarning
	}
	confirmLabel := opts.ConfirmLabel
	if confirmLabel == "" {
		confirmLabel = "Confirm"
	}
	cancelLabel := opts.CancelLabel
	if cancelLabel == "" {
		cancelLabel = "Cancel"
	}

	req := ConfirmRequest{
		ID:           uuid.New(),
		Title:        opts.Title,
		Message:      opts.Message,
		Severity:     severity,
		ConfirmLabel: confirmLabel,
		CancelLabel:  cancelLabel,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done := make(chan bool, 1)
		done <- false
		return req, done
	}
	var events []Event
	if c.pending != nil {
		events = append(events, c.resolveLocked(false))
	}
	pending := &pendingConfirm{
		request: req,
		done:    make(chan bool, 1),
	}
	c.pending = pending
	events = append(events, Event{Kind: EventConfirmShown, Confirm: &req})
	c.mu.Unlock()

	c.notify(events...)
	return pending.request, pending.done
}

// Pending returns a copy of the current confirm request, or nil.
func (c *Coordinator) Pending() *ConfirmRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	req := c.pending.request
	return &req
}

// Resolve settles the pending confirm request with the given answer. Returns
// false when no request with that ID is pending. Resolution happens at most
// once per request; the losing closure is simply never fired.
func (c *Coordinator) Resolve(id uuid.UUID, confirmed bool) bool {
	c.mu.Lock()
	if c.pending == nil || c.pending.request.ID != id {
		c.mu.Unlock()
		return false
	}
	ev := c.resolveLocked(confirmed)
	c.mu.Unlock()

	c.notify(ev)
	return true
}

func (c *Coordinator) resolveLocked(confirmed bool) Event {
	pending := c.pending
	c.pending = nil
	if !pending.resolved {
		pending.resolved = true
		pending.done <- confirmed
	}
	req := pending.request
	return Event{Kind: EventConfirmResolved, Confirm: &req, Confirmed: confirmed}
}

// ShowToast displays a transient notification for the given duration
// (DefaultToastDuration when non-positive). The prior dismissal timer is
// stopped before the new one is armed, so a superseded toast's timer can
// never hide its replacement early.
func (c *Coordinator) ShowToast(message string, severity domain.Severity, duration time.Duration) {
	if !severity.Valid() {
		severity = domain.SeverityInfo
	}
	if duration <= 0 {
		duration = DefaultToastDuration
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.toastTimer != nil {
		c.toastTimer.Stop()
	}
	c.toastGen++
	gen := c.toastGen
	toast := &Toast{
		Message:   message,
		Severity:  severity,
		ExpiresAt: c.clock.Now().Add(duration),
	}
	c.toast = toast
	c.toastTimer = c.clock.AfterFunc(duration, func() { c.expireToast(gen) })
	shown := *toast
	c.mu.Unlock()

	c.notify(Event{Kind: EventToastShown, Toast: &shown})
}

// ActiveToast returns a copy of the visible toast, or nil once it expired.
// Expiry is checked against the clock, so reads are exact even before the
// dismissal timer has run.
func (c *Coordinator) ActiveToast() *Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.toast == nil || !c.clock.Now().Before(c.toast.ExpiresAt) {
		return nil
	}
	toast := *c.toast
	return &toast
}

// CleanupToast stops any pending dismissal timer and hides the toast
// immediately. Safe to call with no active toast.
func (c *Coordinator) CleanupToast() {
	c.mu.Lock()
	hadToast := c.toast != nil
	if c.toastTimer != nil {
		c.toastTimer.Stop()
		c.toastTimer = nil
	}
	c.toastGen++
	c.toast = nil
	c.mu.Unlock()

	if hadToast {
		c.notify(Event{Kind: EventToastHidden})
	}
}

// expireToast hides the toast when its dismissal timer fires. The generation
// check makes a stale timer (already superseded or cleaned up) a no-op.
func (c *Coordinator) expireToast(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.toastGen || c.toast == nil {
		c.mu.Unlock()
		return
	}
	c.toast = nil
	c.toastTimer = nil
	c.mu.Unlock()

	c.notify(Event{Kind: EventToastHidden})
}

// Subscribe registers fn for coordinator change events. The returned cancel
// func is idempotent.
func (c *Coordinator) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close tears the coordinator down: the toast is hidden, a pending confirm is
// resolved as cancelled, and subscribers are dropped. Idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.toastTimer != nil {
		c.toastTimer.Stop()
		c.toastTimer = nil
	}
	c.toast = nil
	if c.pending != nil {
		c.resolveLocked(false)
	}
	c.subs = make(map[int]func(Event))
	c.mu.Unlock()
}

// notify fans events out to subscribers outside the coordinator lock, so a
// subscriber may call back into the coordinator.
func (c *Coordinator) notify(events ...Event) {
	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
