// Package store persists serializable process run snapshots keyed by process
// ID. The orchestration core produces a snapshot after every phase
// transition; choosing the storage technology is the host's concern, so the
// contract is a minimal key-value record.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/taskweave/taskweave/core"
)

// ErrNotFound is returned when no snapshot exists for a process ID.
var ErrNotFound = errors.New("run snapshot not found")

// RunStore persists process run snapshots across restarts.
type RunStore interface {
	// Save stores (or replaces) the snapshot for its process ID.
	Save(snapshot core.Snapshot) error

	// Get returns the stored snapshot for a process ID.
	Get(processID string) (core.Snapshot, error)

	// List returns all stored process IDs.
	List() ([]string, error)
}

// InMemoryStore is a volatile RunStore implementation storing snapshots in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo hosts.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
}

// NewInMemoryStore constructs an empty in-memory run store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]core.Snapshot)}
}

// Save implements RunStore.
func (s *InMemoryStore) Save(snapshot core.Snapshot) error {
	if snapshot.ID == "" {
		return errors.New("snapshot missing process id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.ID] = snapshot
	return nil
}

// Get implements RunStore.
func (s *InMemoryStore) Get(processID string) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[processID]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, processID)
	}
	return snap, nil
}

// List implements RunStore.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}
