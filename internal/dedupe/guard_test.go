// ABOUTME: Tests for the deploy in-flight guard
// ABOUTME: Validates in-flight rejection, the post-release window, cleanup, and concurrency safety

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuard_RejectsWhileInFlight(t *testing.T) {
	g := New(time.Minute)
	defer g.Close()

	assert.True(t, g.Acquire("u1/calc"))
	assert.False(t, g.Acquire("u1/calc"))
	assert.True(t, g.Held("u1/calc"))

	// Other keys are independent
	assert.True(t, g.Acquire("u1/weather"))
}

func TestGuard_WindowAfterRelease(t *testing.T) {
	g := New(30 * time.Millisecond)
	defer g.Close()

	assert.True(t, g.Acquire("k"))
	g.Release("k")

	assert.False(t, g.Acquire("k"), "key should stay held within the window")

	time.Sleep(40 * time.Millisecond)
	assert.False(t, g.Held("k"))
	assert.True(t, g.Acquire("k"))
}

func TestGuard_ZeroWindowFreesImmediately(t *testing.T) {
	g := New(0)
	defer g.Close()

	assert.True(t, g.Acquire("k"))
	assert.False(t, g.Acquire("k"))
	g.Release("k")
	assert.True(t, g.Acquire("k"))
}

func TestGuard_ReleaseUnknownKey(t *testing.T) {
	g := New(time.Minute)
	defer g.Close()

	g.Release("never-acquired")
	assert.Equal(t, 0, g.Len())
}

func TestGuard_RunCleanup(t *testing.T) {
	g := New(10 * time.Millisecond)
	defer g.Close()

	g.Acquire("released")
	g.Release("released")
	g.Acquire("running")

	time.Sleep(20 * time.Millisecond)
	g.runCleanup()

	assert.Equal(t, 1, g.Len(), "only the in-flight key should remain")
	assert.True(t, g.Held("running"))
}

func TestGuard_ConcurrentAcquire(t *testing.T) {
	g := New(time.Minute)
	defer g.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Acquire("same-key") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestGuard_CloseIdempotent(t *testing.T) {
	g := New(time.Minute)
	g.Close()
	g.Close()
}
