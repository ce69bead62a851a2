package cooldown

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StartAndDecay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	r.Start("b1", 60)
	assert.Equal(t, 60, r.Remaining("b1"))
	assert.True(t, r.IsActive("b1"))

	clock.Advance(1 * time.Second)
	assert.Equal(t, 59, r.Remaining("b1"))

	clock.Advance(58 * time.Second)
	assert.Equal(t, 1, r.Remaining("b1"))
	assert.True(t, r.IsActive("b1"))

	clock.Advance(1 * time.Second)
	assert.Equal(t, 0, r.Remaining("b1"))
	assert.False(t, r.IsActive("b1"))
}

func TestRegistry_RestartReplacesCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	// An immediate restart must not leave two decrementing countdowns.
	r.Start("b1", 5)
	r.Start("b1", 3)
	assert.Equal(t, 3, r.Remaining("b1"))

	clock.Advance(1 * time.Second)
	assert.Equal(t, 2, r.Remaining("b1"), "restart replaces, it does not accumulate")

	r.Start("b1", 10)
	assert.Equal(t, 10, r.Remaining("b1"))
}

func TestRegistry_UnknownKey(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())

	assert.Equal(t, 0, r.Remaining("nope"))
	assert.False(t, r.IsActive("nope"))
}

func TestRegistry_StartZeroClearsKey(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	r.Start("k", 30)
	require.True(t, r.IsActive("k"))

	r.Start("k", 0)
	assert.False(t, r.IsActive("k"))
	assert.Equal(t, 0, r.Remaining("k"))
}

func TestRegistry_ActiveMatchesRemaining(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	keys := []string{"a", "b", "c"}
	r.Start("a", 2)
	r.Start("b", 5)

	for i := 0; i < 7; i++ {
		for _, k := range keys {
			assert.Equal(t, r.Remaining(k) > 0, r.IsActive(k), "key %s at t+%ds", k, i)
		}
		clock.Advance(1 * time.Second)
	}
}

func TestRegistry_ClearAll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	r.Start("a", 30)
	r.Start("b", 60)
	r.ClearAll()

	assert.Equal(t, 0, r.Remaining("a"))
	assert.Equal(t, 0, r.Remaining("b"))

	clock.Advance(10 * time.Second)
	assert.Equal(t, 0, r.Remaining("a"))
	assert.Equal(t, 0, r.Remaining("b"))
}

func TestRegistry_CloseIsIdempotent(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())

	r.Close()
	r.Close()

	r.Start("k", 10)
	assert.False(t, r.IsActive("k"), "Start after Close is a no-op")
}

func TestRegistry_TickerNotifiesSubscribers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	var mu sync.Mutex
	seen := make(map[string][]int)
	cancel := r.Subscribe(func(key string, remaining int) {
		mu.Lock()
		seen[key] = append(seen[key], remaining)
		mu.Unlock()
	})
	defer cancel()

	stop := r.StartTicker(1 * time.Second)
	defer stop()

	r.Start("k", 2)

	clock.BlockUntil(1)
	clock.Advance(1 * time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen["k"]) >= 1
	}, time.Second, 5*time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(1 * time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen["k"]) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 0}, seen["k"][:2])
	assert.False(t, r.IsActive("k"))
}

func TestRegistry_SubscribeCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	var mu sync.Mutex
	calls := 0
	cancel := r.Subscribe(func(string, int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	cancel()
	cancel() // idempotent

	stop := r.StartTicker(1 * time.Second)
	defer stop()

	r.Start("k", 5)
	clock.BlockUntil(1)
	clock.Advance(1 * time.Second)

	// Give the ticker loop a chance to run before asserting silence.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestRegistry_TickerStopIsIdempotent(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())
	stop := r.StartTicker(1 * time.Second)
	stop()
	stop()
}
