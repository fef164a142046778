package eth

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// precision for human-amount floats; enough for exact round-trips on any
// uint256 amount with up to 18 decimal places
const floatPrec = 256

// Token describes one ERC-20 token. Created once by the ingestion layer and
// treated as an immutable constant afterwards.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int
	// rough gas cost of a transfer, used by routers to price hops
	Gas     *big.Int
	ChainID uint64

	// lazily derived container key, see Key()
	key uint64
}

// NewToken builds a token. The address must be non-zero.
func NewToken(address string, symbol string, decimals int, gas *big.Int, chainID uint64) (*Token, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("token %s: invalid address %q", symbol, address)
	}
	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("token %s: zero address", symbol)
	}
	if gas == nil {
		gas = big.NewInt(0)
	}
	return &Token{
		Symbol:   symbol,
		Address:  addr,
		Decimals: decimals,
		Gas:      gas,
		ChainID:  chainID,
	}, nil
}

// Equal compares token identity: (address, chain id).
func (t *Token) Equal(other *Token) bool {
	if other == nil {
		return false
	}
	return t.Address == other.Address && t.ChainID == other.ChainID
}

// Checksum returns the EIP-55 checksummed address string.
func (t *Token) Checksum() string {
	return t.Address.Hex()
}

// Key returns a numeric identity derived from the address bytes, computed on
// first use and cached. Intended as a cheap container key.
func (t *Token) Key() uint64 {
	if t.key == 0 {
		t.key = binary.BigEndian.Uint64(t.Address.Bytes()[12:20])
	}
	return t.key
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ToOnchain converts a human amount to on-chain integer units. Negative
// amounts are rejected; the amount is rounded half-up to exactly Decimals
// fractional digits before scaling.
func (t *Token) ToOnchain(amount *big.Float) (*big.Int, error) {
	if amount == nil {
		return nil, fmt.Errorf("token %s: nil amount", t.Symbol)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("token %s: negative amount %s", t.Symbol, amount.Text('f', t.Decimals))
	}
	scale := new(big.Float).SetPrec(floatPrec).SetInt(pow10(t.Decimals))
	scaled := new(big.Float).SetPrec(floatPrec).Mul(amount, scale)
	// round half-up to the nearest integer unit
	scaled.Add(scaled, big.NewFloat(0.5))
	out, _ := scaled.Int(nil)
	return out, nil
}

// FromOnchain converts on-chain integer units back to a human amount.
func (t *Token) FromOnchain(raw *big.Int) *big.Float {
	f := new(big.Float).SetPrec(floatPrec).SetInt(raw)
	scale := new(big.Float).SetPrec(floatPrec).SetInt(pow10(t.Decimals))
	return f.Quo(f, scale)
}

// Quantize re-rounds a human amount to Decimals places. Round-tripping an
// amount through ToOnchain/FromOnchain and quantizing yields the original
// value rounded to the token's precision.
func (t *Token) Quantize(amount *big.Float) *big.Float {
	raw, err := t.ToOnchain(amount)
	if err != nil {
		return new(big.Float).SetPrec(floatPrec)
	}
	return t.FromOnchain(raw)
}
