package domain

import "github.com/shopspring/decimal"

// UnstakeMode selects which extrinsic executes an unstake.
type UnstakeMode string

const (
	// ModeLimit submits remove_stake_limit bounded by a price limit.
	ModeLimit UnstakeMode = "limit"
	// ModeAll submits unstake_all_alpha for the hotkey.
	ModeAll UnstakeMode = "all"
)

// Valid reports whether m is a known mode.
func (m UnstakeMode) Valid() bool {
	return m == ModeLimit || m == ModeAll
}

// UnstakeRequest is built fresh per decision and consumed once by the chain client.
type UnstakeRequest struct {
	Netuid       uint16
	Hotkey       string
	Amount       Balance
	PriceLimit   decimal.Decimal // TAO per alpha
	AllowPartial bool
	Mode         UnstakeMode
}

// LimitPriceRao returns the price limit expressed in rao per alpha, as the chain expects it.
func (r UnstakeRequest) LimitPriceRao() uint64 {
	if r.PriceLimit.IsNegative() {
		return 0
	}
	return r.PriceLimit.Mul(raoPerTaoDec).Truncate(0).BigInt().Uint64()
}

// ExecutionStatus is the outcome of a submitted unstake.
type ExecutionStatus string

const (
	ExecutionSuccess           ExecutionStatus = "SUCCESS"
	ExecutionPartial           ExecutionStatus = "PARTIAL"
	ExecutionToleranceExceeded ExecutionStatus = "TOLERANCE_EXCEEDED"
	ExecutionFailed            ExecutionStatus = "FAILED"
)

// ExecutionRecord is the audit row for one submitted unstake.
type ExecutionRecord struct {
	ExecutionID      string
	Hotkey           string
	Coldkey          string
	Netuid           uint16
	Mode             UnstakeMode
	Amount           Balance
	ExpectedReceived Balance
	SlippagePct      float64
	PriceLimit       decimal.Decimal
	AllowPartial     bool
	BlockHash        string
	Status           ExecutionStatus
	Error            *string
	BalanceBefore    Balance
	BalanceAfter     Balance
	StakeBefore      Balance
	StakeAfter       Balance
	ExecutedAt       int64 // Unix ms
}

// Unstaked returns how much stake actually left the position.
func (r *ExecutionRecord) Unstaked() Balance {
	return r.StakeBefore.Sub(r.StakeAfter)
}

// Succeeded reports whether the extrinsic was included successfully.
func (r *ExecutionRecord) Succeeded() bool {
	return r.Status == ExecutionSuccess || r.Status == ExecutionPartial
}
