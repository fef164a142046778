package simulator

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// EVMExecutor runs probes through go-ethereum's interpreter against the
// journal-backed state view.
type EVMExecutor struct {
	config *params.ChainConfig
}

func NewEVMExecutor() *EVMExecutor {
	return &EVMExecutor{
		config: params.MainnetChainConfig,
	}
}

func (x *EVMExecutor) Call(journal *Journal, p SimulationParams) (*CallResult, error) {
	stateDB := newJournalDB(journal)

	blockContext := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     func(n uint64) common.Hash { return p.Block.Hash },
		Coinbase:    common.Address{},
		BlockNumber: new(big.Int).SetUint64(p.Block.Number),
		Time:        p.Timestamp,
		Difficulty:  big.NewInt(0),
		GasLimit:    p.GasLimit,
		BaseFee:     big.NewInt(0),
	}

	evm := vm.NewEVM(blockContext, stateDB, x.config, vm.Config{})
	evm.SetTxContext(vm.TxContext{
		Origin:   p.Caller,
		GasPrice: big.NewInt(0),
	})

	to := p.To
	msg := &core.Message{
		To:               &to,
		From:             p.Caller,
		Nonce:            stateDB.GetNonce(p.Caller),
		Value:            p.Value,
		GasLimit:         p.GasLimit,
		GasPrice:         big.NewInt(0),
		GasFeeCap:        big.NewInt(0),
		GasTipCap:        big.NewInt(0),
		Data:             p.Data,
		SkipNonceChecks:       true,
		SkipTransactionChecks: true,
	}

	gp := new(core.GasPool).AddGas(p.GasLimit)
	result, err := core.ApplyMessage(evm, msg, gp)
	if err != nil {
		return nil, &ExecutionError{
			Reason:   err.Error(),
			OutOfGas: errors.Is(err, core.ErrGasLimitReached),
		}
	}

	if result.Failed() {
		return nil, &ExecutionError{
			Reason:     result.Err.Error(),
			OutOfGas:   errors.Is(result.Err, vm.ErrOutOfGas),
			ReturnData: result.ReturnData,
		}
	}

	return &CallResult{
		GasUsed:       result.UsedGas,
		ReturnData:    result.ReturnData,
		StorageWrites: stateDB.writes,
	}, nil
}
