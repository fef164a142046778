package protocol

import (
	"math/big"
)

// SpotPriceFromBalances derives a marginal price from two human-unit
// balance lines: how much buy-side one unit of sell-side fetches. Decimals
// are already normalized at this layer, no adjustment needed.
func SpotPriceFromBalances(sellBalance, buyBalance *big.Float) *big.Float {
	if sellBalance.Sign() <= 0 {
		return big.NewFloat(0)
	}
	return new(big.Float).SetPrec(sellBalance.Prec()).Quo(buyBalance, sellBalance)
}

// ScalePrice adjusts a raw on-chain price quote for the decimal difference
// between sell and buy tokens.
func ScalePrice(raw *big.Float, sellDecimals, buyDecimals int) *big.Float {
	adj := new(big.Float).SetInt(
		new(big.Int).Exp(
			big.NewInt(10),
			big.NewInt(int64(abs(sellDecimals-buyDecimals))),
			nil,
		),
	)
	out := new(big.Float).SetPrec(raw.Prec()).Set(raw)
	if sellDecimals >= buyDecimals {
		return out.Mul(out, adj)
	}
	return out.Quo(out, adj)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ComparePrices returns the percentage gap between two quotes.
func ComparePrices(price1, price2 *big.Float) float64 {
	cmp := price1.Cmp(price2)
	if cmp == 0 {
		return 0.0
	}
	var higher, lower *big.Float
	if cmp > 0 {
		higher = price1
		lower = price2
	} else {
		higher = price2
		lower = price1
	}

	diff := new(big.Float).Sub(higher, lower)
	pctDiff := new(big.Float).Quo(diff, lower)
	pctDiff.Mul(pctDiff, big.NewFloat(100.0))

	result, _ := pctDiff.Float64()
	return result
}
