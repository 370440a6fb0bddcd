package memory

import (
	"context"
	"sync"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// MonitorStateStore is an in-memory implementation of storage.MonitorStateStore.
type MonitorStateStore struct {
	mu     sync.RWMutex
	states map[string]domain.MonitorState
}

// NewMonitorStateStore creates a new in-memory monitor state store.
func NewMonitorStateStore() *MonitorStateStore {
	return &MonitorStateStore{
		states: make(map[string]domain.MonitorState),
	}
}

// Get returns the last saved state for network.
func (s *MonitorStateStore) Get(_ context.Context, network string) (*domain.MonitorState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[network]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &state, nil
}

// Set saves the state for its network.
func (s *MonitorStateStore) Set(_ context.Context, state *domain.MonitorState) error {
	if state == nil || state.Network == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.Network] = *state
	return nil
}

var _ storage.MonitorStateStore = (*MonitorStateStore)(nil)
