// Package sandbox manages the voxel-sandbox engine runtime: the per-world
// server subprocesses, their ports and their properties files.
package sandbox

import (
	"fmt"
	"sync"
)

// BindingStore persists world->port assignments. *hostdb.Store satisfies
// it; tests use an in-memory fake.
type BindingStore interface {
	PortBindings() (map[string]int, error)
	SavePortBinding(world string, port int) error
}

// Allocator hands out one stable port per world name. Assignments are
// written through to the store, so a restarted hosting process resumes
// with the same bindings instead of silently re-numbering old worlds.
type Allocator struct {
	mu      sync.Mutex
	base    int
	next    int
	byWorld map[string]int
	store   BindingStore
}

func NewAllocator(basePort int, store BindingStore) (*Allocator, error) {
	if basePort <= 0 {
		return nil, fmt.Errorf("base port must be > 0")
	}
	a := &Allocator{
		base:    basePort,
		next:    basePort,
		byWorld: map[string]int{},
		store:   store,
	}
	if store != nil {
		bindings, err := store.PortBindings()
		if err != nil {
			return nil, fmt.Errorf("load port bindings: %w", err)
		}
		for world, port := range bindings {
			a.byWorld[world] = port
			if port >= a.next {
				a.next = port + 1
			}
		}
	}
	return a, nil
}

// GetOrAssign returns the world's port, assigning the next free one on
// first sight. Ports are never reused, even after a world is deleted.
func (a *Allocator) GetOrAssign(worldName string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if port, ok := a.byWorld[worldName]; ok {
		return port, nil
	}
	port := a.next
	if a.store != nil {
		if err := a.store.SavePortBinding(worldName, port); err != nil {
			return 0, fmt.Errorf("persist port binding: %w", err)
		}
	}
	a.byWorld[worldName] = port
	a.next = port + 1
	return port, nil
}

// Lookup returns the port already assigned to a world, if any.
func (a *Allocator) Lookup(worldName string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	port, ok := a.byWorld[worldName]
	return port, ok
}

// Bindings returns a copy of the current world->port table.
func (a *Allocator) Bindings() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.byWorld))
	for w, p := range a.byWorld {
		out[w] = p
	}
	return out
}
