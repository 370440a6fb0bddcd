package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// RaoPerTao is the number of rao in one TAO.
const RaoPerTao uint64 = 1_000_000_000

var raoPerTaoDec = decimal.NewFromInt(int64(RaoPerTao))

// Balance is an amount in rao, the smallest indivisible chain unit.
// All arithmetic and comparisons happen on rao; TAO is derived for display.
type Balance uint64

// FromRao wraps a raw rao amount.
func FromRao(rao uint64) Balance {
	return Balance(rao)
}

// FromTao converts a TAO amount to rao, truncating sub-rao precision.
// Negative values map to zero.
func FromTao(tao decimal.Decimal) Balance {
	if tao.IsNegative() {
		return 0
	}
	return Balance(tao.Mul(raoPerTaoDec).Truncate(0).BigInt().Uint64())
}

// MustParseTao parses a decimal TAO string, panicking on malformed input.
// Intended for constants and tests.
func MustParseTao(s string) Balance {
	return FromTao(decimal.RequireFromString(s))
}

// ParseTao parses a decimal TAO string.
func ParseTao(s string) (Balance, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse tao amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse tao amount %q: negative", s)
	}
	return FromTao(d), nil
}

// Rao returns the raw amount.
func (b Balance) Rao() uint64 {
	return uint64(b)
}

// Decimal returns the amount in TAO as an exact decimal.
func (b Balance) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(b)), -9)
}

// Tao returns the amount in TAO as float64. Display only.
func (b Balance) Tao() float64 {
	f, _ := b.Decimal().Float64()
	return f
}

// Sub subtracts o, saturating at zero.
func (b Balance) Sub(o Balance) Balance {
	if o >= b {
		return 0
	}
	return b - o
}

// Add returns b+o.
func (b Balance) Add(o Balance) Balance {
	return b + o
}

// IsZero reports whether the balance is empty.
func (b Balance) IsZero() bool {
	return b == 0
}

// String renders the balance as TAO with 9 decimals.
func (b Balance) String() string {
	return "τ" + b.Decimal().StringFixed(9)
}
