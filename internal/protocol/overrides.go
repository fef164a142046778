package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Overrides maps contract address -> storage slot -> forced value, shaped
// for SimulationParams.Overrides.
type Overrides = map[common.Address]map[common.Hash]common.Hash

// TokenSlots are the base slots a token contract uses for its balance and
// allowance mappings. Most solc-compiled ERC-20s sit at 0 and 1.
type TokenSlots struct {
	Balance   *big.Int
	Allowance *big.Int
}

// DefaultTokenSlots is the layout of a plain solc ERC-20.
func DefaultTokenSlots() TokenSlots {
	return TokenSlots{Balance: big.NewInt(0), Allowance: big.NewInt(1)}
}

// MappingSlot returns the storage slot of mapping entry m[key] for a mapping
// at baseSlot, per the canonical solidity layout rule:
// keccak256(pad32(key) ++ pad32(baseSlot)).
func MappingSlot(key common.Address, baseSlot *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(key.Bytes(), 32),
		common.LeftPadBytes(baseSlot.Bytes(), 32),
	)
}

// NestedMappingSlot returns the slot of m[outerKey][innerKey] for a
// two-level mapping at baseSlot (the allowance shape).
func NestedMappingSlot(outerKey, innerKey common.Address, baseSlot *big.Int) common.Hash {
	inner := MappingSlot(outerKey, baseSlot)
	return crypto.Keccak256Hash(
		common.LeftPadBytes(innerKey.Bytes(), 32),
		inner.Bytes(),
	)
}

// OverrideFactory accumulates storage patches for one token contract.
type OverrideFactory struct {
	token     common.Address
	slots     TokenSlots
	overrides map[common.Hash]common.Hash
}

func NewOverrideFactory(token common.Address, slots TokenSlots) *OverrideFactory {
	return &OverrideFactory{
		token:     token,
		slots:     slots,
		overrides: make(map[common.Hash]common.Hash),
	}
}

// SetBalance forges holder's balance inside the sandbox.
func (f *OverrideFactory) SetBalance(amount *big.Int, holder common.Address) {
	slot := MappingSlot(holder, f.slots.Balance)
	f.overrides[slot] = common.BigToHash(amount)
}

// SetAllowance forges owner's approval of spender.
func (f *OverrideFactory) SetAllowance(amount *big.Int, spender, owner common.Address) {
	slot := NestedMappingSlot(owner, spender, f.slots.Allowance)
	f.overrides[slot] = common.BigToHash(amount)
}

// Overrides returns the accumulated patches shaped for the engine.
func (f *OverrideFactory) Overrides() Overrides {
	out := make(map[common.Hash]common.Hash, len(f.overrides))
	for slot, val := range f.overrides {
		out[slot] = val
	}
	return Overrides{f.token: out}
}

// BalanceOverride is a one-shot helper for "as if holder already had amount".
func BalanceOverride(token common.Address, slots TokenSlots, holder common.Address, amount *big.Int) Overrides {
	f := NewOverrideFactory(token, slots)
	f.SetBalance(amount, holder)
	return f.Overrides()
}

// AllowanceOverride is a one-shot helper for a forged approval.
func AllowanceOverride(token common.Address, slots TokenSlots, owner, spender common.Address, amount *big.Int) Overrides {
	f := NewOverrideFactory(token, slots)
	f.SetAllowance(amount, spender, owner)
	return f.Overrides()
}

// MergeOverrides layers source over target without mutating either.
func MergeOverrides(target, source Overrides) Overrides {
	merged := make(Overrides, len(target))
	for addr, slots := range target {
		inner := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		merged[addr] = inner
	}
	for addr, slots := range source {
		if merged[addr] == nil {
			merged[addr] = make(map[common.Hash]common.Hash, len(slots))
		}
		for k, v := range slots {
			merged[addr][k] = v
		}
	}
	return merged
}
