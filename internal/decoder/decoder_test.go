package decoder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/protocol"
	"github.com/helixbox/tycho-simulation/internal/simulator"
)

var (
	poolAddr  = common.HexToAddress("0x8888888888888888888888888888888888888888")
	testBlock = eth.Block{Number: 18_000_000, Hash: common.HexToHash("0xfeed"), Time: 1_700_000_000}
)

type noopExecutor struct{}

func (noopExecutor) Call(*simulator.Journal, simulator.SimulationParams) (*simulator.CallResult, error) {
	return &simulator.CallResult{}, nil
}

func knownTokenList() []*eth.Token {
	return []*eth.Token{eth.KnownTokens["USDC"], eth.KnownTokens["WETH"], eth.KnownTokens["DAI"]}
}

func validSnapshot() PoolSnapshot {
	usdc := eth.KnownTokens["USDC"]
	weth := eth.KnownTokens["WETH"]
	return PoolSnapshot{
		ID:         "0x01",
		Address:    poolAddr,
		Attributes: map[string][]byte{"pool_type": []byte("uniswap_v2")},
		Balances: map[common.Address]*big.Int{
			usdc.Address: big.NewInt(1_000_000_000_000), // 1M USDC
			weth.Address: new(big.Int).Mul(big.NewInt(500), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		},
		Storage: map[common.Hash]common.Hash{
			common.HexToHash("0x00"): common.HexToHash("0x2a"),
		},
		Code: []byte{0x60, 0x80, 0x60, 0x40},
	}
}

func TestDecode(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, knownTokenList())

	pool, err := dec.Decode(validSnapshot(), testBlock)
	require.NoError(t, err)

	assert.Equal(t, "0x01", pool.ID)
	assert.Equal(t, poolAddr, pool.Address)
	assert.Equal(t, protocol.KindConstantProduct, pool.Kind())
	require.Len(t, pool.Tokens, 2)

	// balances land in human units
	usdc := eth.KnownTokens["USDC"]
	weth := eth.KnownTokens["WETH"]
	assert.Zero(t, pool.State.Balance(usdc.Address).Cmp(big.NewFloat(1_000_000)))
	assert.Zero(t, pool.State.Balance(weth.Address).Cmp(big.NewFloat(500)))

	// the sandbox got the contract's code and storage
	journal := engine.Journal()
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, journal.GetCode(poolAddr))
	assert.Equal(t, common.HexToHash("0x2a"), journal.GetState(poolAddr, common.HexToHash("0x00")))
}

func TestDecodeStableSwapAttribute(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, knownTokenList())

	snap := validSnapshot()
	snap.Attributes["pool_type"] = []byte("curve\n")

	pool, err := dec.Decode(snap, testBlock)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindStableSwap, pool.Kind())
}

func TestDecodeMissingPoolType(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, knownTokenList())

	snap := validSnapshot()
	delete(snap.Attributes, "pool_type")

	_, err := dec.Decode(snap, testBlock)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "0x01", decErr.PoolID)
	assert.True(t, dec.Ignored("0x01"))
}

func TestDecodeUnknownToken(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, []*eth.Token{eth.KnownTokens["USDC"]})

	_, err := dec.Decode(validSnapshot(), testBlock)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Contains(t, decErr.Reason, "unknown token")
}

func TestDecodeTooFewBalances(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, knownTokenList())

	snap := validSnapshot()
	snap.Balances = map[common.Address]*big.Int{
		eth.KnownTokens["USDC"].Address: big.NewInt(1),
	}

	_, err := dec.Decode(snap, testBlock)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestDecodeIgnoredIsPermanent(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, knownTokenList())

	snap := validSnapshot()
	delete(snap.Attributes, "pool_type")

	_, err := dec.Decode(snap, testBlock)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)

	// even a now-valid snapshot for the same id is refused without work
	_, err = dec.Decode(validSnapshot(), testBlock)
	require.ErrorIs(t, err, ErrPoolIgnored)
	assert.False(t, engine.Journal().Exists(poolAddr), "no seeding happens for an ignored id")
}

func TestRegisterToken(t *testing.T) {
	engine := simulator.NewEngine(simulator.NewJournal(), noopExecutor{})
	dec := NewPoolDecoder(engine, []*eth.Token{eth.KnownTokens["USDC"]})

	dec.RegisterToken(eth.KnownTokens["WETH"])

	_, err := dec.Decode(validSnapshot(), testBlock)
	assert.NoError(t, err)
}
