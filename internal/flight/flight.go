// Package flight collapses concurrent invocations of one logical operation to
// at most one in-flight execution. Additional callers are silent no-ops, not
// queued retries, so a double-clicked button fires its action once.
package flight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard owns a single in-flight flag. The flag may only be toggled through
// Do's enter/exit protocol; callers read it via InFlight.
type Guard struct {
	busy atomic.Bool
}

// Do runs fn unless another call already holds the guard. The returned
// executed flag reports whether fn actually ran; a refused call is not an
// error (first-writer-wins). The flag is acquired with a compare-and-swap
// before fn starts and released on every exit path, including panics.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) (executed bool, err error) {
	if !g.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer g.busy.Store(false)

	return true, fn(ctx)
}

// InFlight reports whether an execution currently holds the guard.
func (g *Guard) InFlight() bool {
	return g.busy.Load()
}

// Group holds one Guard per operation name, created lazily. Each owning scope
// constructs its own Group; there is no package-level instance.
type Group struct {
	mu     sync.Mutex
	guards map[string]*Guard
}

func NewGroup() *Group {
	return &Group{guards: make(map[string]*Guard)}
}

// Do runs fn under the named guard. See Guard.Do for the refusal semantics.
func (g *Group) Do(ctx context.Context, name string, fn func(context.Context) error) (bool, error) {
	return g.guard(name).Do(ctx, fn)
}

// Active reports whether the named operation is currently in flight. Unknown
// names are simply not in flight.
func (g *Group) Active(name string) bool {
	g.mu.Lock()
	guard, ok := g.guards[name]
	g.mu.Unlock()
	return ok && guard.InFlight()
}

func (g *Group) guard(name string) *Guard {
	g.mu.Lock()
	defer g.mu.Unlock()

	guard, ok := g.guards[name]
	if !ok {
		guard = &Guard{}
		g.guards[name] = guard
	}
	return guard
}
