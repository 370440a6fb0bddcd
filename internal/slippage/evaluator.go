// Package slippage converts staked alpha into the TAO it would actually return.
package slippage

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// Result is the outcome of evaluating an unstake amount against a subnet pool.
type Result struct {
	Received    domain.Balance // TAO returned after price impact
	Nominal     domain.Balance // TAO at the quoted price, no impact
	SlippagePct float64
}

// Evaluate returns what unstaking amount from subnet would yield.
//
// Static subnets convert 1:1 with no slippage. Dynamic subnets swap against the
// constant-product pool (TaoIn * AlphaIn = k), so the received TAO is
// TaoIn*amount/(AlphaIn+amount). The result never exceeds the nominal value.
func Evaluate(subnet domain.SubnetInfo, amount domain.Balance) Result {
	if amount.IsZero() {
		return Result{}
	}
	if !subnet.IsDynamic {
		return Result{Received: amount, Nominal: amount}
	}

	nominal := domain.FromTao(amount.Decimal().Mul(subnet.Price))

	received := nominal
	if !subnet.TaoIn.IsZero() && !subnet.AlphaIn.IsZero() {
		received = swapOut(subnet.TaoIn, subnet.AlphaIn, amount)
	}
	if received > nominal {
		received = nominal
	}

	return Result{
		Received:    received,
		Nominal:     nominal,
		SlippagePct: pct(nominal, received),
	}
}

// swapOut computes floor(taoIn*amount / (alphaIn+amount)).
func swapOut(taoIn, alphaIn, amount domain.Balance) domain.Balance {
	num := new(big.Int).Mul(new(big.Int).SetUint64(taoIn.Rao()), new(big.Int).SetUint64(amount.Rao()))
	den := new(big.Int).Add(new(big.Int).SetUint64(alphaIn.Rao()), new(big.Int).SetUint64(amount.Rao()))
	return domain.FromRao(num.Quo(num, den).Uint64())
}

func pct(nominal, received domain.Balance) float64 {
	if nominal.IsZero() {
		return 0
	}
	diff := decimal.NewFromBigInt(new(big.Int).SetUint64(nominal.Sub(received).Rao()), 0)
	p, _ := diff.Div(decimal.NewFromBigInt(new(big.Int).SetUint64(nominal.Rao()), 0)).
		Mul(decimal.NewFromInt(100)).Float64()
	return p
}
