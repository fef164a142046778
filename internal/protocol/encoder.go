package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/helixbox/tycho-simulation/internal/eth"
)

// PoolKind tags the closed set of supported pool protocols.
type PoolKind uint8

const (
	KindConstantProduct PoolKind = iota + 1
	KindStableSwap
)

func (k PoolKind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant-product"
	case KindStableSwap:
		return "stable-swap"
	}
	return fmt.Sprintf("PoolKind(%d)", uint8(k))
}

// PoolKindFromString parses a decoder attribute into a kind.
func PoolKindFromString(s string) (PoolKind, error) {
	switch s {
	case "constant_product", "uniswap_v2":
		return KindConstantProduct, nil
	case "stable_swap", "curve":
		return KindStableSwap, nil
	}
	return 0, fmt.Errorf("unknown pool kind %q", s)
}

// SwapEncoder is the capability every concrete pool kind supplies: turn
// "sell amount of sellToken for buyToken" into call data for the pool
// contract. The reply is always a single big-endian unsigned integer.
type SwapEncoder interface {
	Kind() PoolKind
	EncodeSwap(sell, buy *eth.Token, amount *big.Int) ([]byte, error)
}

// ConstantProductEncoder targets uniswap-v2 style pair contracts.
type ConstantProductEncoder struct{}

func (ConstantProductEncoder) Kind() PoolKind {
	return KindConstantProduct
}

func (ConstantProductEncoder) EncodeSwap(sell, buy *eth.Token, amount *big.Int) ([]byte, error) {
	data, err := eth.PoolSwapABI.Pack("swapExactIn", sell.Address, buy.Address, amount)
	if err != nil {
		return nil, fmt.Errorf("pack swapExactIn: %w", err)
	}
	return data, nil
}

// StableSwapEncoder targets curve style pools, which address tokens by
// their registered coin index.
type StableSwapEncoder struct {
	Indices map[common.Address]int64
}

func (StableSwapEncoder) Kind() PoolKind {
	return KindStableSwap
}

func (e StableSwapEncoder) EncodeSwap(sell, buy *eth.Token, amount *big.Int) ([]byte, error) {
	i, ok := e.Indices[sell.Address]
	if !ok {
		return nil, fmt.Errorf("no coin index for %s", sell.Symbol)
	}
	j, ok := e.Indices[buy.Address]
	if !ok {
		return nil, fmt.Errorf("no coin index for %s", buy.Symbol)
	}
	data, err := eth.PoolSwapABI.Pack("exchange", big.NewInt(i), big.NewInt(j), amount, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("pack exchange: %w", err)
	}
	return data, nil
}

// EncoderForKind returns the encoder for a pool kind.
func EncoderForKind(kind PoolKind, tokens []*eth.Token) (SwapEncoder, error) {
	switch kind {
	case KindConstantProduct:
		return ConstantProductEncoder{}, nil
	case KindStableSwap:
		indices := make(map[common.Address]int64, len(tokens))
		for i, t := range tokens {
			indices[t.Address] = int64(i)
		}
		return StableSwapEncoder{Indices: indices}, nil
	}
	return nil, fmt.Errorf("no encoder for %s", kind)
}
