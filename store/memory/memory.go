// Package memory implements store.CheckpointStore in-process, for local
// development and tests where no durable backend is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nahisaho/YAGOKORO-sub003/store"
)

// MemoryCheckpointStore implements store.CheckpointStore with a mutex-guarded
// map. Checkpoints do not survive process restart.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
}

// NewMemoryCheckpointStore creates a new in-memory checkpoint store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*store.Checkpoint),
	}
}

// Save stores (or overwrites) a checkpoint.
func (s *MemoryCheckpointStore) Save(ctx context.Context, checkpoint *store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *checkpoint
	s.checkpoints[checkpoint.ID] = &cp
	return nil
}

// Load retrieves a checkpoint by ID.
func (s *MemoryCheckpointStore) Load(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, fmt.Errorf("checkpoint not found: %s", checkpointID)
	}
	copied := *cp
	return &copied, nil
}

// List returns every checkpoint whose metadata's session_id, thread_id,
// execution_id, or workflow_id matches executionID, sorted by Version
// ascending. Checkpoint producers use whichever of those keys fits their
// domain; List matches any of them so callers don't need to know which one
// a given checkpoint was tagged with.
func (s *MemoryCheckpointStore) List(ctx context.Context, executionID string) ([]*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*store.Checkpoint
	for _, cp := range s.checkpoints {
		if checkpointMatches(cp, executionID) {
			copied := *cp
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Version < matched[j].Version })
	return matched, nil
}

// Delete removes a checkpoint. Deleting a missing ID is a no-op.
func (s *MemoryCheckpointStore) Delete(ctx context.Context, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, checkpointID)
	return nil
}

// Clear removes every checkpoint matching executionID (same matching rule
// as List).
func (s *MemoryCheckpointStore) Clear(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cp := range s.checkpoints {
		if checkpointMatches(cp, executionID) {
			delete(s.checkpoints, id)
		}
	}
	return nil
}

func checkpointMatches(cp *store.Checkpoint, executionID string) bool {
	for _, key := range []string{"session_id", "thread_id", "execution_id", "workflow_id"} {
		if v, ok := cp.Metadata[key].(string); ok && v == executionID {
			return true
		}
	}
	return false
}
