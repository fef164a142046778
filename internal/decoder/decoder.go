package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/protocol"
	"github.com/helixbox/tycho-simulation/internal/simulator"
)

// ErrPoolIgnored marks a pool id whose earlier decode failed; the id stays
// ignored for the rest of the process lifetime.
var ErrPoolIgnored = errors.New("pool id permanently ignored")

// DecodeError is terminal for the affected pool id.
type DecodeError struct {
	PoolID string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode pool %s: %s", e.PoolID, e.Reason)
}

// PoolSnapshot is the opaque state an external indexer hands over for one
// pool contract.
type PoolSnapshot struct {
	ID         string
	Address    common.Address
	Attributes map[string][]byte
	// token address -> raw on-chain balance
	Balances map[common.Address]*big.Int
	// contract storage and code to seed the sandbox with
	Storage map[common.Hash]common.Hash
	Code    []byte
}

// PoolDecoder turns indexer snapshots into pool instances, seeding the
// engine's journal with the contract's code and storage on the way.
type PoolDecoder struct {
	engine  *simulator.Engine
	tokens  map[common.Address]*eth.Token
	ignored map[string]struct{}
	log     logrus.FieldLogger
}

func NewPoolDecoder(engine *simulator.Engine, tokens []*eth.Token) *PoolDecoder {
	registry := make(map[common.Address]*eth.Token, len(tokens))
	for _, t := range tokens {
		registry[t.Address] = t
	}
	return &PoolDecoder{
		engine:  engine,
		tokens:  registry,
		ignored: make(map[string]struct{}),
		log:     logrus.WithField("component", "decoder"),
	}
}

// RegisterToken adds a token to the decoder's registry.
func (d *PoolDecoder) RegisterToken(t *eth.Token) {
	d.tokens[t.Address] = t
}

// Ignored reports whether a pool id has been written off.
func (d *PoolDecoder) Ignored(id string) bool {
	_, ok := d.ignored[id]
	return ok
}

// Decode produces a pool instance from a snapshot. A failure writes the pool
// id off permanently: later re-decode attempts return ErrPoolIgnored without
// doing any work.
func (d *PoolDecoder) Decode(snap PoolSnapshot, block eth.Block) (*protocol.Pool, error) {
	if _, ok := d.ignored[snap.ID]; ok {
		return nil, fmt.Errorf("pool %s: %w", snap.ID, ErrPoolIgnored)
	}

	kindAttr, ok := snap.Attributes["pool_type"]
	if !ok {
		return nil, d.fail(snap.ID, "missing pool_type attribute")
	}
	kind, err := protocol.PoolKindFromString(string(bytes.TrimSpace(kindAttr)))
	if err != nil {
		return nil, d.fail(snap.ID, err.Error())
	}

	if len(snap.Balances) < 2 {
		return nil, d.fail(snap.ID, fmt.Sprintf("needs at least two token balances, got %d", len(snap.Balances)))
	}

	addrs := make([]common.Address, 0, len(snap.Balances))
	for addr := range snap.Balances {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})

	poolTokens := make([]*eth.Token, 0, len(addrs))
	state := protocol.NewPoolState()
	for _, addr := range addrs {
		token, ok := d.tokens[addr]
		if !ok {
			return nil, d.fail(snap.ID, fmt.Sprintf("unknown token %s", addr.Hex()))
		}
		poolTokens = append(poolTokens, token)
		state = state.WithBalance(token, token.FromOnchain(snap.Balances[addr]), block)
	}

	// seed the sandbox so probes can run the pool's real code
	d.engine.InitAccount(snap.Address, simulator.AccountInfo{Code: snap.Code})
	journal := d.engine.Journal()
	for slot, val := range snap.Storage {
		journal.SetState(snap.Address, slot, val)
	}

	pool, err := protocol.NewPool(snap.ID, snap.Address, poolTokens, block, state, kind, d.engine)
	if err != nil {
		return nil, d.fail(snap.ID, err.Error())
	}
	return pool, nil
}

func (d *PoolDecoder) fail(id, reason string) error {
	d.ignored[id] = struct{}{}
	d.log.WithFields(logrus.Fields{"pool": id, "reason": reason}).Warn("pool failed to decode, ignoring id")
	return &DecodeError{PoolID: id, Reason: reason}
}
