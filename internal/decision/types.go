package decision

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// Verdict is the outcome of an unstake decision.
type Verdict string

const (
	VerdictExecute            Verdict = "EXECUTE"
	VerdictSkipBelowThreshold Verdict = "SKIP_BELOW_THRESHOLD"
	VerdictSkipNoStake        Verdict = "SKIP_NO_STAKE"
)

// DefaultToleranceMultiplier widens the observed slippage when deriving a price limit.
var DefaultToleranceMultiplier = decimal.RequireFromString("2.1")

// Validation errors.
var (
	ErrNegativeMultiplier = errors.New("tolerance multiplier must not be negative")
	ErrInvalidMode        = errors.New("unknown unstake mode")
	ErrEmptyHotkey        = errors.New("target hotkey is empty")
	ErrUnknownSubnet      = errors.New("subnet not present in snapshot")
)

// Target is a stake position the loop manages.
type Target struct {
	Hotkey string
	Netuid uint16
}

// Criteria configures how an evaluation turns into a request.
type Criteria struct {
	// Minimum TAO that must be received; equal amounts are skipped.
	Threshold domain.Balance

	// Multiplier applied to observed slippage when shrinking the price limit.
	ToleranceMultiplier decimal.Decimal

	AllowPartial bool
	Mode         domain.UnstakeMode
}

// DefaultCriteria returns limit-mode criteria with the standard multiplier.
func DefaultCriteria(threshold domain.Balance) Criteria {
	return Criteria{
		Threshold:           threshold,
		ToleranceMultiplier: DefaultToleranceMultiplier,
		AllowPartial:        true,
		Mode:                domain.ModeLimit,
	}
}

// Validate checks criteria for consistency.
func (c Criteria) Validate() error {
	if c.ToleranceMultiplier.IsNegative() {
		return ErrNegativeMultiplier
	}
	if !c.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// CriterionResult represents pass/fail for one check.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Evaluation is the result of evaluating one target against a snapshot.
type Evaluation struct {
	Target      Target
	Verdict     Verdict
	BlockHash   string
	Stake       domain.Balance
	Received    domain.Balance
	Nominal     domain.Balance
	SlippagePct float64
	Threshold   domain.Balance
	Checks      []CriterionResult

	// Request is set only when Verdict is EXECUTE.
	Request *domain.UnstakeRequest
}
