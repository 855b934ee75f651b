package reserve

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// mulDiv returns floor(a*b/d). The product is formed in 256 bits so it never
// wraps; the quotient must fit in 64 bits.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(d))
	if !quotient.IsUint64() {
		return 0, fmt.Errorf("%w: %d*%d/%d exceeds 64 bits", ErrArithmeticOverflow, a, b, d)
	}
	return quotient.Uint64(), nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d-%d underflows", ErrArithmeticOverflow, a, b)
	}
	return a - b, nil
}

// toUint64 narrows a ledger amount, failing instead of truncating.
func toUint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: ledger amount %s outside uint64", ErrArithmeticOverflow, v)
	}
	return v.Uint64(), nil
}

func bigOf(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

const exchangeRatePrecision = 18

// exchangeRate renders reserve/supply as a decimal string. An empty pool
// redeems at par.
func exchangeRate(reserve, supply uint64) string {
	if supply == 0 {
		return decimal.NewFromInt(1).String()
	}
	num := decimal.NewFromBigInt(bigOf(reserve), 0)
	den := decimal.NewFromBigInt(bigOf(supply), 0)
	return num.DivRound(den, exchangeRatePrecision).String()
}
