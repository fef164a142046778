package simulator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/helixbox/tycho-simulation/internal/eth"
)

// AccountState is the full tracked state of one address.
type AccountState struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
	Storage map[common.Hash]common.Hash
}

func newAccountState() *AccountState {
	return &AccountState{
		Balance: uint256.NewInt(0),
		Storage: make(map[common.Hash]common.Hash),
	}
}

// Copy returns a deep copy.
func (a *AccountState) Copy() *AccountState {
	cp := &AccountState{
		Nonce:   a.Nonce,
		Balance: uint256.NewInt(0),
		Storage: make(map[common.Hash]common.Hash, len(a.Storage)),
	}
	if a.Balance != nil {
		cp.Balance.Set(a.Balance)
	}
	if a.Code != nil {
		cp.Code = make([]byte, len(a.Code))
		copy(cp.Code, a.Code)
	}
	for slot, val := range a.Storage {
		cp.Storage[slot] = val
	}
	return cp
}

// AccountInfo seeds an account before any probes target it.
type AccountInfo struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte
}

// SimulationParams describes one probe. To and Data are required; everything
// else has a default (see Engine.Simulate).
type SimulationParams struct {
	To        common.Address
	Data      []byte
	Block     eth.Block
	Overrides map[common.Address]map[common.Hash]common.Hash
	Caller    common.Address
	Value     *big.Int
	GasLimit  uint64
	Timestamp uint64
}

// SimulationResult carries everything a probe produced. The journal itself
// is already restored by the time a caller sees this; StateChanges is the
// only durable record of what the execution wrote.
type SimulationResult struct {
	ReturnData   []byte
	GasUsed      uint64
	StateChanges map[common.Address]map[common.Hash]common.Hash
}

// CallResult is what the external executor hands back on success.
type CallResult struct {
	GasUsed       uint64
	ReturnData    []byte
	StorageWrites map[common.Address]map[common.Hash]common.Hash
}

// Executor runs contract code against the journal's current view. It is the
// single expensive step of a probe; implementations report the storage
// writes they performed as a side channel.
type Executor interface {
	Call(journal *Journal, params SimulationParams) (*CallResult, error)
}
