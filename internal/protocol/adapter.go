package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/simulator"
)

// adapter replies scale fixed-point prices by 1e18
var priceScale = new(big.Float).SetPrec(256).SetInt(pow18())

func pow18() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

// PriceResult is one entry of a batched pricing reply.
type PriceResult struct {
	Price   *big.Float
	GasUsed uint64
}

// AdapterContract is a thin facade over the pricing adapter seeded at
// AdapterAddress: read-only, possibly-batched queries reusing the engine.
type AdapterContract struct {
	Address common.Address
	engine  *simulator.Engine
	log     logrus.FieldLogger
}

func NewAdapterContract(engine *simulator.Engine) *AdapterContract {
	return &AdapterContract{
		Address: AdapterAddress,
		engine:  engine,
		log:     logrus.WithField("component", "adapter"),
	}
}

// CallStatic runs one read-only adapter method through the engine. The block
// is the caller's: earlier revisions pinned a fixed block here, which made
// detection probes disagree with the pool's own context.
func (c *AdapterContract) CallStatic(method string, args []interface{}, block eth.Block, overrides Overrides) (*simulator.SimulationResult, error) {
	data, err := eth.AdapterABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return c.engine.Simulate(simulator.SimulationParams{
		To:        c.Address,
		Data:      data,
		Block:     block,
		Overrides: overrides,
		Caller:    ExternalAccount,
	})
}

// GetCapabilities queries the capability ids the adapter reports for a pair.
func (c *AdapterContract) GetCapabilities(pairID common.Hash, sellToken, buyToken common.Address, block eth.Block) (CapabilitySet, error) {
	res, err := c.CallStatic("getCapabilities", []interface{}{pairID, sellToken, buyToken}, block, nil)
	if err != nil {
		return nil, err
	}
	values, err := unpackUints(res.ReturnData, "getCapabilities")
	if err != nil {
		return nil, err
	}
	set := make(CapabilitySet, len(values))
	for _, v := range values {
		cap, err := CapabilityFromUint(v)
		if err != nil {
			c.log.WithError(err).Warn("skipping unknown capability")
			continue
		}
		set[cap] = struct{}{}
	}
	return set, nil
}

// GetLimits returns the maximum sell and buy amounts for a pair.
func (c *AdapterContract) GetLimits(pairID common.Hash, sellToken, buyToken common.Address, block eth.Block, overrides Overrides) (*big.Int, *big.Int, error) {
	res, err := c.CallStatic("getLimits", []interface{}{pairID, sellToken, buyToken}, block, overrides)
	if err != nil {
		return nil, nil, err
	}
	limits, err := unpackUints(res.ReturnData, "getLimits")
	if err != nil {
		return nil, nil, err
	}
	if len(limits) < 2 {
		return nil, nil, fmt.Errorf("getLimits: short reply (%d values)", len(limits))
	}
	return limits[0], limits[1], nil
}

// Price quotes every amount in one batched call: the whole array travels in
// a single probe, amortizing per-call overhead, and the reply array is
// parallel to the input. Gas is attributed evenly across the batch.
func (c *AdapterContract) Price(
	pairID common.Hash,
	sellToken, buyToken common.Address,
	amounts []*big.Int,
	block eth.Block,
	overrides Overrides,
) ([]PriceResult, error) {
	if len(amounts) == 0 {
		return nil, nil
	}
	res, err := c.CallStatic("price", []interface{}{pairID, sellToken, buyToken, amounts}, block, overrides)
	if err != nil {
		return nil, err
	}
	raw, err := unpackUints(res.ReturnData, "price")
	if err != nil {
		return nil, err
	}
	if len(raw) != len(amounts) {
		return nil, fmt.Errorf("price: reply has %d entries for %d amounts", len(raw), len(amounts))
	}
	gasEach := res.GasUsed / uint64(len(amounts))
	out := make([]PriceResult, len(raw))
	for i, v := range raw {
		price := new(big.Float).SetPrec(256).SetInt(v)
		out[i] = PriceResult{
			Price:   price.Quo(price, priceScale),
			GasUsed: gasEach,
		}
	}
	return out, nil
}

func unpackUints(data []byte, method string) ([]*big.Int, error) {
	values, err := eth.AdapterABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty reply", method)
	}
	uints, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
	}
	return uints, nil
}
