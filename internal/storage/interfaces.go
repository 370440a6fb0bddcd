package storage

import (
	"context"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// ExecutionStore provides access to unstake_executions storage.
type ExecutionStore interface {
	// Insert adds a new execution record. Returns ErrDuplicateKey if execution_id exists.
	Insert(ctx context.Context, r *domain.ExecutionRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// GetByTarget retrieves all records for (hotkey, netuid), ordered by executed_at ASC.
	GetByTarget(ctx context.Context, hotkey string, netuid uint16) ([]*domain.ExecutionRecord, error)

	// GetByTimeRange retrieves records executed within [start, end] (inclusive), ordered by executed_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExecutionRecord, error)
}

// PricePointStore provides access to subnet_price_points storage.
type PricePointStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (netuid, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByTimeRange retrieves points for a subnet within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, netuid uint16, start, end int64) ([]*domain.PricePoint, error)

	// GetLatest retrieves the most recent point for a subnet. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, netuid uint16) (*domain.PricePoint, error)
}
