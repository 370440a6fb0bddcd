package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// ExecutionStore is an in-memory implementation of storage.ExecutionStore.
type ExecutionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionRecord
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		data: make(map[string]*domain.ExecutionRecord),
	}
}

// copyRecord returns a deep copy so callers cannot mutate stored records.
func copyRecord(r *domain.ExecutionRecord) *domain.ExecutionRecord {
	c := *r
	if r.Error != nil {
		msg := *r.Error
		c.Error = &msg
	}
	return &c
}

// Insert adds a new execution record.
func (s *ExecutionStore) Insert(_ context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ExecutionID == "" || r.Hotkey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ExecutionID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ExecutionID] = copyRecord(r)
	return nil
}

// GetByID retrieves a record by its ID.
func (s *ExecutionStore) GetByID(_ context.Context, executionID string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[executionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByTarget retrieves all records for (hotkey, netuid), ordered by executed_at ASC.
func (s *ExecutionStore) GetByTarget(_ context.Context, hotkey string, netuid uint16) ([]*domain.ExecutionRecord, error) {
	return s.filter(func(r *domain.ExecutionRecord) bool {
		return r.Hotkey == hotkey && r.Netuid == netuid
	}), nil
}

// GetByTimeRange retrieves records executed within [start, end] (inclusive).
func (s *ExecutionStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ExecutionRecord, error) {
	return s.filter(func(r *domain.ExecutionRecord) bool {
		return r.ExecutedAt >= start && r.ExecutedAt <= end
	}), nil
}

func (s *ExecutionStore) filter(match func(*domain.ExecutionRecord) bool) []*domain.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionRecord
	for _, r := range s.data {
		if match(r) {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt < result[j].ExecutedAt
		}
		return result[i].ExecutionID < result[j].ExecutionID
	})

	return result
}

var _ storage.ExecutionStore = (*ExecutionStore)(nil)
