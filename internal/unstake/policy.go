package unstake

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/decision"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// Default waits.
const (
	DefaultShortWait      = 30 * time.Second
	DefaultLongWait       = 30 * time.Minute
	DefaultFailureBackoff = 15 * time.Second
)

// Policy validation errors.
var (
	ErrNoTargets       = errors.New("policy has no targets")
	ErrNonPositiveWait = errors.New("policy waits must be positive")
)

// Policy is the single configurable unstake behavior.
//
// Mode "limit" submits a price-bounded remove_stake_limit for the full stake
// of a target once its slippage-adjusted value exceeds Threshold. Mode "all"
// uses the same trigger but submits unstake_all_alpha for the target hotkey.
type Policy struct {
	Mode                domain.UnstakeMode
	Threshold           domain.Balance
	AllowPartial        bool
	ToleranceMultiplier decimal.Decimal

	// ShortWait follows SKIP_BELOW_THRESHOLD and fetch errors.
	ShortWait time.Duration
	// LongWait follows cycles where the coldkey holds no stake at all.
	LongWait time.Duration
	// FailureBackoff follows a failed submission.
	FailureBackoff time.Duration

	Targets []decision.Target

	// MaxExecutions stops Run after this many successful executions. Zero is unlimited.
	MaxExecutions int
}

// DefaultPolicy returns a limit-mode policy for targets.
func DefaultPolicy(threshold domain.Balance, targets ...decision.Target) Policy {
	return Policy{
		Mode:                domain.ModeLimit,
		Threshold:           threshold,
		AllowPartial:        true,
		ToleranceMultiplier: decision.DefaultToleranceMultiplier,
		ShortWait:           DefaultShortWait,
		LongWait:            DefaultLongWait,
		FailureBackoff:      DefaultFailureBackoff,
		Targets:             targets,
	}
}

// Criteria converts the policy into decision criteria.
func (p Policy) Criteria() decision.Criteria {
	return decision.Criteria{
		Threshold:           p.Threshold,
		ToleranceMultiplier: p.ToleranceMultiplier,
		AllowPartial:        p.AllowPartial,
		Mode:                p.Mode,
	}
}

// Validate checks the policy for consistency.
func (p Policy) Validate() error {
	if err := p.Criteria().Validate(); err != nil {
		return err
	}
	if len(p.Targets) == 0 {
		return ErrNoTargets
	}
	for i, t := range p.Targets {
		if t.Hotkey == "" {
			return fmt.Errorf("target %d: %w", i, decision.ErrEmptyHotkey)
		}
	}
	if p.ShortWait <= 0 || p.LongWait <= 0 || p.FailureBackoff <= 0 {
		return ErrNonPositiveWait
	}
	if p.MaxExecutions < 0 {
		return fmt.Errorf("max executions %d is negative", p.MaxExecutions)
	}
	return nil
}
