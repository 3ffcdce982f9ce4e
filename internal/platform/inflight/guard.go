// Package inflight serialises mutations per key. While a mutation on a key is
// in flight, further attempts on the same key are refused with apperr.ErrBusy
// instead of being queued.
package inflight

import (
	"context"
	"sync"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

// Release ends a held guard. It is safe to call more than once.
type Release func()

// Guard hands out exclusive, non-blocking holds on string keys.
type Guard interface {
	// Acquire takes the hold on key or fails with an apperr.ErrBusy error
	// when another holder already has it.
	Acquire(ctx context.Context, key string) (Release, error)
	// Held reports whether key currently has a holder.
	Held(ctx context.Context, key string) bool
	// HeldKeys returns the subset of keys that currently have a holder, in
	// one lookup.
	HeldKeys(ctx context.Context, keys []string) map[string]bool
}

// MemoryGuard is a Guard for a single server process.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]uint64
	seq  uint64
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]uint64)}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return nil, apperr.Busy("%s is already being updated", key)
	}
	g.seq++
	token := g.seq
	g.held[key] = token

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.held[key] == token {
				delete(g.held, key)
			}
		})
	}, nil
}

func (g *MemoryGuard) Held(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}

func (g *MemoryGuard) HeldKeys(_ context.Context, keys []string) map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	held := make(map[string]bool)
	for _, k := range keys {
		if _, ok := g.held[k]; ok {
			held[k] = true
		}
	}
	return held
}
