package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

func TestMonitorStateStore(t *testing.T) {
	store := NewMonitorStateStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "finney"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, &domain.MonitorState{Network: "finney", SubnetCount: 64, LatestNetuid: 63}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, &domain.MonitorState{Network: "finney", SubnetCount: 65, LatestNetuid: 64}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "finney")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SubnetCount != 65 || got.LatestNetuid != 64 {
		t.Errorf("unexpected state %+v", got)
	}

	if err := store.Set(ctx, &domain.MonitorState{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
