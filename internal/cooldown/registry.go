// Package cooldown rate-limits repeated operations per key via decaying
// countdowns. Each Registry exclusively owns its key->deadline map: external
// code reads counters through Remaining/IsActive and never mutates them.
package cooldown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Registry tracks one countdown per key. Remaining seconds are derived from
// the injected clock on every read, so at most one countdown exists per key
// at any instant and a restart can never leave two decrementing timers
// behind. A single registry-owned ticker drives subscriber notifications and
// eviction of expired entries.
type Registry struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	deadline map[string]time.Time
	subs     map[int]func(key string, remaining int)
	nextSub  int
	closed   bool
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:    clock,
		deadline: make(map[string]time.Time),
		subs:     make(map[int]func(string, int)),
	}
}

// Start begins (or restarts) the countdown for key. A repeated Start replaces
// the existing deadline, so countdowns never accumulate. seconds <= 0 clears
// the key immediately.
func (r *Registry) Start(key string, seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if seconds <= 0 {
		delete(r.deadline, key)
		return
	}
	r.deadline[key] = r.clock.Now().Add(time.Duration(seconds) * time.Second)
}

// Remaining returns the whole seconds left on the countdown for key, rounded
// up. Unknown and expired keys report 0.
func (r *Registry) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainingLocked(key)
}

func (r *Registry) remainingLocked(key string) int {
	until, ok := r.deadline[key]
	if !ok {
		return 0
	}
	left := until.Sub(r.clock.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// ActiveCount returns the number of keys with time left on their countdowns.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key := range r.deadline {
		if r.remainingLocked(key) > 0 {
			n++
		}
	}
	return n
}

// IsActive reports whether key still has time left on its countdown.
func (r *Registry) IsActive(key string) bool {
	return r.Remaining(key) > 0
}

// ClearAll drops every countdown. Advancing the clock afterwards never
// resurrects a counter.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadline = make(map[string]time.Time)
}

// Close tears the registry down. Idempotent and safe with zero active
// countdowns; Start becomes a no-op afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.deadline = make(map[string]time.Time)
	r.subs = make(map[int]func(string, int))
}

// Subscribe registers fn to be called from the ticker loop with the current
// remaining seconds of every tracked key, including a final call with 0 when
// a countdown expires. The returned cancel func is idempotent.
func (r *Registry) Subscribe(fn func(key string, remaining int)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// StartTicker starts a background goroutine that periodically notifies
// subscribers and evicts expired entries. Returns a stop function that must
// be called to clean up the goroutine; stopping twice is safe.
func (r *Registry) StartTicker(interval time.Duration) func() {
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := r.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				r.tick()
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }
}

func (r *Registry) tick() {
	type update struct {
		key       string
		remaining int
	}

	r.mu.Lock()
	updates := make([]update, 0, len(r.deadline))
	for key := range r.deadline {
		left := r.remainingLocked(key)
		updates = append(updates, update{key: key, remaining: left})
		if left == 0 {
			delete(r.deadline, key)
		}
	}
	subs := make([]func(string, int), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	// Notify outside the lock so a subscriber may read the registry.
	for _, u := range updates {
		for _, fn := range subs {
			fn(u.key, u.remaining)
		}
	}
}
