package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/slippage"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Decide classifies an evaluated amount.
// No stake always wins; otherwise received must strictly exceed threshold.
func Decide(found bool, received, threshold domain.Balance) Verdict {
	if !found {
		return VerdictSkipNoStake
	}
	if received <= threshold {
		return VerdictSkipBelowThreshold
	}
	return VerdictExecute
}

// PriceLimit shrinks the subnet price by the observed slippage times multiplier.
// Static subnets trade at the nominal unit price of 1.
func PriceLimit(subnet domain.SubnetInfo, slippagePct float64, multiplier decimal.Decimal) decimal.Decimal {
	if !subnet.IsDynamic {
		return one
	}
	tolerance := decimal.NewFromFloat(slippagePct).Div(hundred).Mul(multiplier)
	factor := one.Sub(tolerance)
	if factor.IsNegative() {
		factor = decimal.Zero
	}
	return subnet.Price.Mul(factor)
}

// Evaluator evaluates unstake targets against chain snapshots.
type Evaluator struct {
	criteria Criteria
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(criteria Criteria) (*Evaluator, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{criteria: criteria}, nil
}

// Criteria returns the evaluator's criteria.
func (e *Evaluator) Criteria() Criteria {
	return e.criteria
}

// Evaluate produces an Evaluation for target. The snapshot is read, never modified.
func (e *Evaluator) Evaluate(snap *domain.Snapshot, target Target) (*Evaluation, error) {
	if target.Hotkey == "" {
		return nil, ErrEmptyHotkey
	}

	subnet, ok := snap.Subnet(target.Netuid)
	if !ok {
		return nil, fmt.Errorf("netuid %d: %w", target.Netuid, ErrUnknownSubnet)
	}

	eval := &Evaluation{
		Target:    target,
		BlockHash: snap.BlockHash,
		Threshold: e.criteria.Threshold,
	}

	stake, found := snap.Stake(target.Hotkey, target.Netuid)
	if found {
		res := slippage.Evaluate(subnet, stake.Stake)
		eval.Stake = stake.Stake
		eval.Received = res.Received
		eval.Nominal = res.Nominal
		eval.SlippagePct = res.SlippagePct
	}

	eval.Verdict = Decide(found, eval.Received, e.criteria.Threshold)
	eval.Checks = e.checks(found, eval)

	if eval.Verdict == VerdictExecute {
		eval.Request = BuildRequest(eval, subnet, e.criteria)
	}

	return eval, nil
}

// checks renders the decision as a checklist for reporting.
func (e *Evaluator) checks(found bool, eval *Evaluation) []CriterionResult {
	return []CriterionResult{
		{
			Name:      "Stake present",
			Threshold: "> 0",
			Actual:    eval.Stake.String(),
			Pass:      found,
		},
		{
			Name:      "Received above threshold",
			Threshold: "> " + eval.Threshold.String(),
			Actual:    eval.Received.String(),
			Pass:      found && eval.Received > eval.Threshold,
		},
	}
}
