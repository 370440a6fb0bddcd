package decision

import "github.com/K-tang-mkv/bittensor-strat/internal/domain"

// BuildRequest constructs the unstake request for an EXECUTE evaluation.
// The full stake is requested; the price limit bounds how much actually fills
// when partial execution is allowed.
func BuildRequest(eval *Evaluation, subnet domain.SubnetInfo, criteria Criteria) *domain.UnstakeRequest {
	return &domain.UnstakeRequest{
		Netuid:       eval.Target.Netuid,
		Hotkey:       eval.Target.Hotkey,
		Amount:       eval.Stake,
		PriceLimit:   PriceLimit(subnet, eval.SlippagePct, criteria.ToleranceMultiplier),
		AllowPartial: criteria.AllowPartial,
		Mode:         criteria.Mode,
	}
}
