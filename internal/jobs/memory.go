package jobs

import (
	"context"
	"sync"
)

// MemoryStore keeps job statuses in process memory. Entries are replaced
// whole under the lock, never mutated field by field. Statuses are volatile
// and lost on restart; entries are never evicted.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Status
}

// NewMemoryStore creates an empty in-process job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Status)}
}

func (s *MemoryStore) Set(_ context.Context, jobID string, status Status) error {
	s.mu.Lock()
	s.jobs[jobID] = status
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (Status, bool, error) {
	s.mu.RLock()
	status, ok := s.jobs[jobID]
	s.mu.RUnlock()
	return status, ok, nil
}
