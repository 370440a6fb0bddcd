package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/storage"
)

func record(id string, netuid uint16, executedAt int64) *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		ExecutionID: id,
		Hotkey:      "5Hot",
		Coldkey:     "5Cold",
		Netuid:      netuid,
		Mode:        domain.ModeLimit,
		Amount:      domain.MustParseTao("10"),
		Status:      domain.ExecutionSuccess,
		ExecutedAt:  executedAt,
	}
}

func TestExecutionStore_InsertAndGet(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	msg := "boom"
	r := record("e1", 5, 1000)
	r.Status = domain.ExecutionFailed
	r.Error = &msg

	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.Status != domain.ExecutionFailed || got.Error == nil || *got.Error != "boom" {
		t.Errorf("unexpected record %+v", got)
	}

	// Mutating the returned copy must not affect the store.
	*got.Error = "changed"
	again, _ := store.GetByID(ctx, "e1")
	if *again.Error != "boom" {
		t.Errorf("store leaked internal pointer")
	}
}

func TestExecutionStore_DuplicateKey(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, record("e1", 5, 1000)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, record("e1", 6, 2000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestExecutionStore_NotFound(t *testing.T) {
	store := NewExecutionStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestExecutionStore_InvalidInput(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, record("", 1, 1)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty id, got %v", err)
	}
}

func TestExecutionStore_Queries(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	for _, r := range []*domain.ExecutionRecord{
		record("e3", 5, 3000),
		record("e1", 5, 1000),
		record("e2", 7, 2000),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	byTarget, err := store.GetByTarget(ctx, "5Hot", 5)
	if err != nil {
		t.Fatalf("GetByTarget failed: %v", err)
	}
	if len(byTarget) != 2 || byTarget[0].ExecutionID != "e1" || byTarget[1].ExecutionID != "e3" {
		t.Errorf("unexpected target records %v", byTarget)
	}

	byRange, err := store.GetByTimeRange(ctx, 1500, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(byRange) != 2 || byRange[0].ExecutionID != "e2" {
		t.Errorf("unexpected range records %v", byRange)
	}
}
