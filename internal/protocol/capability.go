package protocol

import (
	"fmt"
	"math/big"
)

// Capability is one entry of a pool's fixed capability set. External routers
// use these to filter eligible pools; this package only carries them.
type Capability uint8

const (
	CapSellSide Capability = iota + 1
	CapBuySide
	CapPriceFunction
	CapFeeOnTransfer
	CapConstantPrice
	CapTokenBalanceIndependent
	CapScaledPrice
	CapHardLimits
	CapMarginalPrice
)

func (c Capability) String() string {
	switch c {
	case CapSellSide:
		return "SellSide"
	case CapBuySide:
		return "BuySide"
	case CapPriceFunction:
		return "PriceFunction"
	case CapFeeOnTransfer:
		return "FeeOnTransfer"
	case CapConstantPrice:
		return "ConstantPrice"
	case CapTokenBalanceIndependent:
		return "TokenBalanceIndependent"
	case CapScaledPrice:
		return "ScaledPrice"
	case CapHardLimits:
		return "HardLimits"
	case CapMarginalPrice:
		return "MarginalPrice"
	}
	return fmt.Sprintf("Capability(%d)", uint8(c))
}

// CapabilityFromUint decodes an on-chain capability id.
func CapabilityFromUint(value *big.Int) (Capability, error) {
	if !value.IsUint64() || value.Uint64() < 1 || value.Uint64() > uint64(CapMarginalPrice) {
		return 0, fmt.Errorf("unexpected capability value: %s", value)
	}
	return Capability(value.Uint64()), nil
}

// CapabilitySet is a fixed set of capabilities.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Intersect keeps only capabilities present in both sets.
func (s CapabilitySet) Intersect(other CapabilitySet) CapabilitySet {
	out := make(CapabilitySet)
	for c := range s {
		if other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}
