package postgres

import (
	"context"
	"fmt"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

// MonitorStateStore is a PostgreSQL implementation of storage.MonitorStateStore.
// One row per network in monitor_state.
type MonitorStateStore struct {
	pool *Pool
}

// NewMonitorStateStore creates a new PostgreSQL monitor state store.
func NewMonitorStateStore(pool *Pool) *MonitorStateStore {
	return &MonitorStateStore{pool: pool}
}

var _ storage.MonitorStateStore = (*MonitorStateStore)(nil)

// Get returns the last saved state for network.
func (s *MonitorStateStore) Get(ctx context.Context, network string) (*domain.MonitorState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT network, subnet_count, latest_netuid, updated_at
		FROM monitor_state
		WHERE network = $1
	`, network)

	var (
		state  domain.MonitorState
		count  int32
		latest int32
	)
	if err := row.Scan(&state.Network, &count, &latest, &state.UpdatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get monitor state: %w", err)
	}

	state.SubnetCount = int(count)
	state.LatestNetuid = uint16(latest)
	return &state, nil
}

// Set saves the state. Uses upsert to handle initial insert and subsequent updates.
func (s *MonitorStateStore) Set(ctx context.Context, state *domain.MonitorState) error {
	if state == nil || state.Network == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitor_state (network, subnet_count, latest_netuid, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network) DO UPDATE
		SET subnet_count = EXCLUDED.subnet_count,
		    latest_netuid = EXCLUDED.latest_netuid,
		    updated_at = EXCLUDED.updated_at
	`, state.Network, int32(state.SubnetCount), int32(state.LatestNetuid), state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set monitor state: %w", err)
	}
	return nil
}
