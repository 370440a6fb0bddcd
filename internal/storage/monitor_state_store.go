package storage

import (
	"context"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// MonitorStateStore persists subnet monitor state per network.
// This enables resumption after restarts without re-alerting on subnets already seen.
type MonitorStateStore interface {
	// Get returns the last saved state for network.
	// Returns ErrNotFound if no state has been saved yet.
	Get(ctx context.Context, network string) (*domain.MonitorState, error)

	// Set saves the state, replacing any previous state for the same network.
	Set(ctx context.Context, state *domain.MonitorState) error
}
