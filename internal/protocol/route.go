package protocol

import (
	"fmt"
	"math/big"

	"github.com/helixbox/tycho-simulation/internal/eth"
)

// RouteHop is one leg of a hypothetical multi-hop chain.
type RouteHop struct {
	Pool *Pool
	Sell *eth.Token
	Buy  *eth.Token
}

// RouteResult is the aggregated outcome of a chain of swap probes.
type RouteResult struct {
	Amount  *big.Float
	GasUsed uint64
	// derived pool per hop, in order; the input pools are untouched
	Pools []*Pool
}

// QuoteRoute quotes a chain of sequential hops by threading each returned
// pool instance forward. Every hop's buy token must match the next hop's
// sell token. Because probes never leak state, the caller can quote many
// alternative routes from the same starting pools.
func QuoteRoute(hops []RouteHop, amount *big.Float) (*RouteResult, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("empty route")
	}
	for i := 1; i < len(hops); i++ {
		if !hops[i-1].Buy.Equal(hops[i].Sell) {
			return nil, fmt.Errorf("route hop %d: buy token %s does not feed hop %d (%s)",
				i-1, hops[i-1].Buy.Symbol, i, hops[i].Sell.Symbol)
		}
	}

	result := &RouteResult{
		Amount: new(big.Float).SetPrec(amount.Prec()).Set(amount),
		Pools:  make([]*Pool, 0, len(hops)),
	}
	for i, hop := range hops {
		out, err := hop.Pool.GetAmountOut(hop.Sell, hop.Buy, result.Amount)
		if err != nil {
			return nil, fmt.Errorf("route hop %d (%s -> %s): %w", i, hop.Sell.Symbol, hop.Buy.Symbol, err)
		}
		result.Amount = out.Amount
		result.GasUsed += out.GasUsed
		result.Pools = append(result.Pools, out.Pool)
	}
	return result, nil
}
