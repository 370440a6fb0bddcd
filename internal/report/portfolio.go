// Package report summarizes what a coldkey would hold if it unstaked everything now.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/slippage"
)

// Position is one stake position valued at the snapshot.
type Position struct {
	Hotkey      string
	Netuid      uint16
	Name        string
	Symbol      string
	Stake       domain.Balance // alpha
	Price       decimal.Decimal
	Nominal     domain.Balance
	Received    domain.Balance
	SlippagePct float64
	IsDynamic   bool
	// Priced is false when the subnet was missing from the snapshot.
	Priced bool
}

// Portfolio is the aggregate balance report of one coldkey.
type Portfolio struct {
	Coldkey     string
	BlockHash   string
	BlockNumber uint64
	Positions   []Position

	Free          domain.Balance
	StakeNominal  domain.Balance
	StakeReceived domain.Balance // slippage-adjusted
}

// Total is the free balance plus the slippage-adjusted stake.
func (p *Portfolio) Total() domain.Balance {
	return p.Free.Add(p.StakeReceived)
}

// Build values every non-zero position of snap through the slippage evaluator.
// Positions are ordered by netuid, then hotkey.
func Build(snap *domain.Snapshot) *Portfolio {
	p := &Portfolio{
		Coldkey:     snap.Coldkey,
		BlockHash:   snap.BlockHash,
		BlockNumber: snap.BlockNumber,
		Free:        snap.Balance,
	}

	for _, rec := range snap.Stakes {
		if rec.Stake.IsZero() {
			continue
		}
		pos := Position{Hotkey: rec.Hotkey, Netuid: rec.Netuid, Stake: rec.Stake}

		if subnet, ok := snap.Subnet(rec.Netuid); ok {
			res := slippage.Evaluate(subnet, rec.Stake)
			pos.Name = subnet.Name
			pos.Symbol = subnet.Symbol
			pos.Price = subnet.Price
			pos.IsDynamic = subnet.IsDynamic
			pos.Nominal = res.Nominal
			pos.Received = res.Received
			pos.SlippagePct = res.SlippagePct
			pos.Priced = true
		}

		p.StakeNominal = p.StakeNominal.Add(pos.Nominal)
		p.StakeReceived = p.StakeReceived.Add(pos.Received)
		p.Positions = append(p.Positions, pos)
	}

	sort.Slice(p.Positions, func(i, j int) bool {
		if p.Positions[i].Netuid != p.Positions[j].Netuid {
			return p.Positions[i].Netuid < p.Positions[j].Netuid
		}
		return p.Positions[i].Hotkey < p.Positions[j].Hotkey
	})

	return p
}
