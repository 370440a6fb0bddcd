package decision

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

func TestCriteria_Validate(t *testing.T) {
	valid := DefaultCriteria(domain.MustParseTao("1"))
	if err := valid.Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	c := valid
	c.ToleranceMultiplier = decimal.NewFromInt(-1)
	if err := c.Validate(); !errors.Is(err, ErrNegativeMultiplier) {
		t.Errorf("expected ErrNegativeMultiplier, got %v", err)
	}

	c = valid
	c.Mode = "sell-everything"
	if err := c.Validate(); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}

	if _, err := NewEvaluator(c); err == nil {
		t.Error("NewEvaluator should reject invalid criteria")
	}
}

func TestEvaluate_EmptyHotkey(t *testing.T) {
	ev, _ := NewEvaluator(DefaultCriteria(0))
	_, err := ev.Evaluate(&domain.Snapshot{}, Target{Netuid: 1})
	if !errors.Is(err, ErrEmptyHotkey) {
		t.Errorf("expected ErrEmptyHotkey, got %v", err)
	}
}
