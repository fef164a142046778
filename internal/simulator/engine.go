package simulator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// DefaultGasLimit bounds a probe's cost when the caller does not set one.
const DefaultGasLimit = 30_000_000

// Engine orchestrates one probe at a time: snapshot, delegate to the
// executor, collect the diff, restore the baseline. Whatever the outcome,
// the journal is observably unchanged after Simulate returns; all durable
// effects travel back to the caller inside the result.
type Engine struct {
	journal  *Journal
	executor Executor
	gasLimit uint64
	log      logrus.FieldLogger
}

type EngineOption func(*Engine)

// WithGasLimit changes the default gas ceiling for probes.
func WithGasLimit(limit uint64) EngineOption {
	return func(e *Engine) { e.gasLimit = limit }
}

func WithLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) { e.log = log }
}

func NewEngine(journal *Journal, executor Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		journal:  journal,
		executor: executor,
		gasLimit: DefaultGasLimit,
		log:      logrus.WithField("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Journal exposes the engine's backing store, mainly for seeding and tests.
func (e *Engine) Journal() *Journal {
	return e.journal
}

// InitAccount seeds balance, nonce and code for addr before probes target
// it. Storage slots previously detected for the address are not touched.
func (e *Engine) InitAccount(addr common.Address, info AccountInfo) {
	balance := uint256.NewInt(0)
	if info.Balance != nil {
		balance, _ = uint256.FromBig(info.Balance)
	}
	e.journal.SetAccount(addr, &AccountState{
		Nonce:   info.Nonce,
		Balance: balance,
		Code:    info.Code,
		Storage: make(map[common.Hash]common.Hash),
	})
}

// Simulate runs one probe. Defaults: gas limit from the configured ceiling,
// timestamp = call time, empty overrides, zero caller, zero value. The
// baseline snapshot is reverted unconditionally, on failure and on success,
// so repeated probes against the same journal are fully independent.
func (e *Engine) Simulate(params SimulationParams) (*SimulationResult, error) {
	if params.GasLimit == 0 {
		params.GasLimit = e.gasLimit
	}
	if params.Timestamp == 0 {
		if params.Block.Time != 0 {
			params.Timestamp = params.Block.Time
		} else {
			params.Timestamp = uint64(time.Now().Unix())
		}
	}
	if params.Value == nil {
		params.Value = big.NewInt(0)
	}

	baseline := e.journal.Snapshot()
	defer func() {
		if !e.journal.Revert(baseline) {
			// only possible if the executor reverted past our own baseline
			e.log.WithField("snapshot", baseline).Warn("baseline snapshot no longer addressable")
		}
	}()

	// overrides are call-scoped storage patches; they live between the
	// baseline snapshot and the final revert, so they never leak either
	for addr, slots := range params.Overrides {
		for slot, value := range slots {
			e.journal.SetState(addr, slot, value)
		}
	}

	res, err := e.executor.Call(e.journal, params)
	if err != nil {
		if execErr, ok := err.(*ExecutionError); ok {
			return nil, execErr
		}
		return nil, fmt.Errorf("executor: %w", err)
	}

	return &SimulationResult{
		ReturnData:   res.ReturnData,
		GasUsed:      res.GasUsed,
		StateChanges: res.StorageWrites,
	}, nil
}
