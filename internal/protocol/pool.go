package protocol

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/simulator"
)

type balanceEntry struct {
	token   *eth.Token
	balance *big.Float
	block   eth.Block
}

// PoolState is the per-pool ledger: token address -> (token, human balance,
// last-updated block). It is immutable from the outside; every mutation
// returns a new state built from this one plus the change.
type PoolState struct {
	balances map[common.Address]balanceEntry
}

func NewPoolState() *PoolState {
	return &PoolState{balances: make(map[common.Address]balanceEntry)}
}

// Copy returns an independent state; mutating the copy never changes the
// source.
func (s *PoolState) Copy() *PoolState {
	cp := NewPoolState()
	for addr, entry := range s.balances {
		cp.balances[addr] = balanceEntry{
			token:   entry.token,
			balance: new(big.Float).SetPrec(entry.balance.Prec()).Set(entry.balance),
			block:   entry.block,
		}
	}
	return cp
}

// WithBalance derives a new state with the given balance line.
func (s *PoolState) WithBalance(token *eth.Token, amount *big.Float, block eth.Block) *PoolState {
	cp := s.Copy()
	cp.balances[token.Address] = balanceEntry{
		token:   token,
		balance: new(big.Float).SetPrec(amount.Prec()).Set(amount),
		block:   block.Clone(),
	}
	return cp
}

// Balance returns the tracked balance for addr. A token never tracked yields
// exactly zero, never an error.
func (s *PoolState) Balance(addr common.Address) *big.Float {
	if entry, ok := s.balances[addr]; ok {
		return new(big.Float).SetPrec(entry.balance.Prec()).Set(entry.balance)
	}
	return big.NewFloat(0)
}

// Token returns the tracked token record for addr.
func (s *PoolState) Token(addr common.Address) (*eth.Token, bool) {
	entry, ok := s.balances[addr]
	if !ok {
		return nil, false
	}
	return entry.token, true
}

// LastUpdated returns the block a balance line was last changed at.
func (s *PoolState) LastUpdated(addr common.Address) (eth.Block, bool) {
	entry, ok := s.balances[addr]
	if !ok {
		return eth.Block{}, false
	}
	return entry.block, true
}

type pairKey [2]common.Address

// Pool is a value-typed facade over one on-chain exchange contract plus the
// token set it trades. A swap probe never mutates the pool the caller holds;
// it returns a fresh instance wrapping the derived state, so alternative
// routes can be explored from the same starting point and sequential hops
// chained by threading returned pools forward.
type Pool struct {
	ID           string
	Address      common.Address
	Tokens       []*eth.Token
	Block        eth.Block
	State        *PoolState
	Capabilities CapabilitySet

	spotPrices map[pairKey]*big.Float
	encoder    SwapEncoder
	engine     *simulator.Engine
	adapter    *AdapterContract
	log        logrus.FieldLogger
}

// GetAmountOutResult is the outcome of one swap probe.
type GetAmountOutResult struct {
	Amount  *big.Float
	GasUsed uint64
	Pool    *Pool
}

// Aggregate folds another hop into this result: the amount becomes the
// other's amount and gas accumulates.
func (r *GetAmountOutResult) Aggregate(other *GetAmountOutResult) {
	r.Amount = other.Amount
	r.GasUsed += other.GasUsed
	r.Pool = other.Pool
}

type PoolOption func(*Pool)

// WithAdapter attaches the pricing contract wrapper; capabilities are then
// queried from it instead of defaulted.
func WithAdapter(adapter *AdapterContract) PoolOption {
	return func(p *Pool) { p.adapter = adapter }
}

// WithCapabilities pins the capability set explicitly.
func WithCapabilities(set CapabilitySet) PoolOption {
	return func(p *Pool) { p.Capabilities = set }
}

func NewPool(
	id string,
	address common.Address,
	tokens []*eth.Token,
	block eth.Block,
	state *PoolState,
	kind PoolKind,
	engine *simulator.Engine,
	opts ...PoolOption,
) (*Pool, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("pool %s: needs at least two tokens", id)
	}
	encoder, err := EncoderForKind(kind, tokens)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	if state == nil {
		state = NewPoolState()
	}
	p := &Pool{
		ID:         id,
		Address:    address,
		Tokens:     tokens,
		Block:      block,
		State:      state,
		spotPrices: make(map[pairKey]*big.Float),
		encoder:    encoder,
		engine:     engine,
		log:        logrus.WithField("pool", id),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Capabilities == nil {
		if p.adapter != nil {
			caps, err := p.queryCapabilities()
			if err != nil {
				return nil, err
			}
			p.Capabilities = caps
		} else {
			p.Capabilities = NewCapabilitySet(CapSellSide, CapPriceFunction)
		}
	}
	return p, nil
}

// PairID shapes a pool id string into the bytes32 the adapter expects.
func PairID(id string) common.Hash {
	return common.HexToHash(id)
}

// queryCapabilities asks the adapter for every ordered token pair and keeps
// the intersection.
func (p *Pool) queryCapabilities() (CapabilitySet, error) {
	var all []CapabilitySet
	maxLen := 0
	for _, t0 := range p.Tokens {
		for _, t1 := range p.Tokens {
			if t0.Address == t1.Address {
				continue
			}
			caps, err := p.adapter.GetCapabilities(PairID(p.ID), t0.Address, t1.Address, p.Block)
			if err != nil {
				return nil, err
			}
			if len(caps) > maxLen {
				maxLen = len(caps)
			}
			all = append(all, caps)
		}
	}
	if len(all) == 0 {
		return NewCapabilitySet(), nil
	}
	shared := all[0]
	for _, caps := range all[1:] {
		shared = shared.Intersect(caps)
	}
	if len(shared) < maxLen {
		p.log.Warn("pool has different capabilities depending on the token pair")
	}
	return shared, nil
}

// Kind reports the pool's protocol kind.
func (p *Pool) Kind() PoolKind {
	return p.encoder.Kind()
}

// HasToken reports membership in the pool's fixed token set.
func (p *Pool) HasToken(t *eth.Token) bool {
	for _, member := range p.Tokens {
		if member.Equal(t) {
			return true
		}
	}
	return false
}

// SpotPrice returns the cached price of buy in terms of sell, falling back
// to a balance-derived price when nothing has been cached yet.
func (p *Pool) SpotPrice(sell, buy *eth.Token) (*big.Float, error) {
	if price, ok := p.spotPrices[pairKey{sell.Address, buy.Address}]; ok {
		return new(big.Float).SetPrec(price.Prec()).Set(price), nil
	}
	sellBal := p.State.Balance(sell.Address)
	buyBal := p.State.Balance(buy.Address)
	if sellBal.Sign() > 0 && buyBal.Sign() > 0 {
		return SpotPriceFromBalances(sellBal, buyBal), nil
	}
	return nil, fmt.Errorf("pool %s: no spot price for %s/%s", p.ID, sell.Symbol, buy.Symbol)
}

// RefreshSpotPrices re-derives the cached price for every ordered token pair
// from the adapter's batched pricing call, probing with probeAmount of the
// sell side each time.
func (p *Pool) RefreshSpotPrices(probeAmount *big.Float) error {
	if p.adapter == nil {
		return fmt.Errorf("pool %s: no adapter attached", p.ID)
	}
	for _, sell := range p.Tokens {
		for _, buy := range p.Tokens {
			if sell.Address == buy.Address {
				continue
			}
			raw, err := sell.ToOnchain(probeAmount)
			if err != nil {
				return &ValidationError{PoolID: p.ID, Err: err}
			}
			results, err := p.adapter.Price(PairID(p.ID), sell.Address, buy.Address, []*big.Int{raw}, p.Block, nil)
			if err != nil {
				return err
			}
			price := ScalePrice(results[0].Price, sell.Decimals, buy.Decimals)
			p.spotPrices[pairKey{sell.Address, buy.Address}] = price
		}
	}
	return nil
}

// clone produces a pool copy that shares immutable parts (tokens, encoder,
// engine, adapter, capability set) but owns its state and price cache.
func (p *Pool) clone() *Pool {
	cp := *p
	cp.spotPrices = make(map[pairKey]*big.Float, len(p.spotPrices))
	for k, v := range p.spotPrices {
		cp.spotPrices[k] = v
	}
	return &cp
}

// GetAmountOut quotes selling amount of sellToken for buyToken by executing
// the pool contract's real swap path inside the sandbox. The receiver is
// untouched; the returned pool wraps the derived ledger.
func (p *Pool) GetAmountOut(sellToken, buyToken *eth.Token, amount *big.Float) (*GetAmountOutResult, error) {
	if !p.HasToken(sellToken) || !p.HasToken(buyToken) || sellToken.Equal(buyToken) {
		return nil, &ValidationError{PoolID: p.ID, Err: ErrInvalidTokenPair}
	}

	rawAmount, err := sellToken.ToOnchain(amount)
	if err != nil {
		return nil, &ValidationError{PoolID: p.ID, Err: err}
	}

	if p.Capabilities.Has(CapHardLimits) && p.adapter != nil {
		sellLimit, _, err := p.adapter.GetLimits(PairID(p.ID), sellToken.Address, buyToken.Address, p.Block, nil)
		if err != nil {
			return nil, err
		}
		if rawAmount.Cmp(sellLimit) > 0 {
			return nil, fmt.Errorf("pool %s: amount %s over limit %s: %w",
				p.ID, rawAmount, sellLimit, ErrSellAmountExceedsLimit)
		}
	}

	callData, err := p.encoder.EncodeSwap(sellToken, buyToken, rawAmount)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", p.ID, err)
	}

	res, err := p.engine.Simulate(simulator.SimulationParams{
		To:     p.Address,
		Data:   callData,
		Block:  p.Block,
		Caller: ExternalAccount,
	})
	if err != nil {
		return nil, err
	}

	rawBought := new(big.Int).SetBytes(res.ReturnData)
	bought := buyToken.FromOnchain(rawBought)

	// bookkeeping inferred from the probe's declared inputs and outputs:
	// the sold amount flows in, the bought amount flows out
	newSellBal := new(big.Float).SetPrec(amount.Prec()).Add(p.State.Balance(sellToken.Address), amount)
	newBuyBal := new(big.Float).SetPrec(bought.Prec()).Sub(p.State.Balance(buyToken.Address), bought)
	newState := p.State.
		WithBalance(sellToken, newSellBal, p.Block).
		WithBalance(buyToken, newBuyBal, p.Block)

	next := p.clone()
	next.State = newState
	if amount.Sign() > 0 && bought.Sign() > 0 {
		price := new(big.Float).SetPrec(bought.Prec()).Quo(bought, amount)
		next.spotPrices[pairKey{sellToken.Address, buyToken.Address}] = price
		next.spotPrices[pairKey{buyToken.Address, sellToken.Address}] =
			new(big.Float).SetPrec(price.Prec()).Quo(big.NewFloat(1), price)
	}

	return &GetAmountOutResult{
		Amount:  bought,
		GasUsed: res.GasUsed,
		Pool:    next,
	}, nil
}

// IsValidationError reports whether err is caller-local and non-fatal to the
// pool.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
