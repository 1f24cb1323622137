// Package pending holds mutating tool calls until the user confirms or
// rejects them, and resolves each one at most once.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// DefaultTTL is how long a pending action can be resolved.
const DefaultTTL = 5 * time.Minute

// MemoryStore is a process-local PendingActionStore.
type MemoryStore struct {
	mu      sync.Mutex
	actions map[string]*agent.PendingAction
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store. ttl <= 0 uses DefaultTTL; now nil uses time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		actions: make(map[string]*agent.PendingAction),
		ttl:     ttl,
		now:     now,
	}
}

func (s *MemoryStore) Create(_ context.Context, action *agent.PendingAction) (string, error) {
	action.StateID = uuid.NewString()
	action.CreatedAt = s.now()
	if action.TTL <= 0 {
		action.TTL = s.ttl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action.StateID] = action
	return action.StateID, nil
}

func (s *MemoryStore) Take(_ context.Context, stateID string) (*agent.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[stateID]
	if !ok {
		return nil, domain.ErrActionExpired
	}
	delete(s.actions, stateID)

	if action.Expired(s.now()) {
		return nil, domain.ErrActionExpired
	}
	return action, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, action := range s.actions {
		if action.Expired(now) {
			delete(s.actions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored actions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}
