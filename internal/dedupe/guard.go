// ABOUTME: In-flight guard that rejects duplicate deploy submissions
// ABOUTME: A key stays held while its deploy runs and for a short window after it finishes

package dedupe

import (
	"sync"
	"time"
)

// guardEntry tracks one key. releasedAt is zero while the key is in flight.
type guardEntry struct {
	releasedAt time.Time
}

// Guard rejects a key while an earlier holder is still running, or within
// window after it released. It is safe for concurrent use.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*guardEntry
	window  time.Duration
	done    chan struct{}
	closed  bool
}

// New creates a Guard. A background goroutine drops released entries once
// their window has passed.
func New(window time.Duration) *Guard {
	g := &Guard{
		entries: make(map[string]*guardEntry),
		window:  window,
		done:    make(chan struct{}),
	}
	go g.cleanup()
	return g
}

// Acquire atomically claims key. It returns false if key is in flight or was
// released less than window ago.
func (g *Guard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, ok := g.entries[key]; ok {
		if entry.releasedAt.IsZero() {
			return false
		}
		if time.Since(entry.releasedAt) < g.window {
			return false
		}
	}

	g.entries[key] = &guardEntry{}
	return true
}

// Release marks key as finished. With a zero window the key is free at once.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.window <= 0 {
		delete(g.entries, key)
		return
	}
	if entry, ok := g.entries[key]; ok {
		entry.releasedAt = time.Now()
	}
}

// Held reports whether key would currently be rejected.
func (g *Guard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[key]
	if !ok {
		return false
	}
	return entry.releasedAt.IsZero() || time.Since(entry.releasedAt) < g.window
}

// Len returns the number of tracked keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (g *Guard) cleanup() {
	interval := g.window
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.runCleanup()
		case <-g.done:
			return
		}
	}
}

// runCleanup removes released entries whose window has passed.
func (g *Guard) runCleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, entry := range g.entries {
		if !entry.releasedAt.IsZero() && now.Sub(entry.releasedAt) >= g.window {
			delete(g.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
