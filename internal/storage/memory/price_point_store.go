package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (netuid, timestamp_ms)
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{
		data: make(map[string]*domain.PricePoint),
	}
}

// priceKey generates a unique key for a price point.
func priceKey(netuid uint16, timestampMs int64) string {
	return fmt.Sprintf("%d|%d", netuid, timestampMs)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PricePointStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.TimestampMs <= 0 {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.Netuid, p.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		pointCopy := *p
		s.data[priceKey(p.Netuid, p.TimestampMs)] = &pointCopy
	}

	return nil
}

// GetByTimeRange retrieves points for a subnet within [start, end] (inclusive), ordered by timestamp ASC.
func (s *PricePointStore) GetByTimeRange(_ context.Context, netuid uint16, start, end int64) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.Netuid == netuid && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetLatest retrieves the most recent point for a subnet.
func (s *PricePointStore) GetLatest(_ context.Context, netuid uint16) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PricePoint
	for _, p := range s.data {
		if p.Netuid == netuid && (latest == nil || p.TimestampMs > latest.TimestampMs) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	pointCopy := *latest
	return &pointCopy, nil
}

var _ storage.PricePointStore = (*PricePointStore)(nil)
