package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token addresses — Ethereum mainnet
var (
	WETHAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDCAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	USDTAddress = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	DAIAddress  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	WBTCAddress = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

const (
	WETHDecimals = 18
	USDCDecimals = 6
	USDTDecimals = 6
	DAIDecimals  = 18
	WBTCDecimals = 8

	MainnetChainID = 1
)

// KnownTokens — lookup by symbol string
var KnownTokens = map[string]*Token{
	"WETH": {Symbol: "WETH", Address: WETHAddress, Decimals: WETHDecimals, Gas: big.NewInt(29000), ChainID: MainnetChainID},
	"USDC": {Symbol: "USDC", Address: USDCAddress, Decimals: USDCDecimals, Gas: big.NewInt(40000), ChainID: MainnetChainID},
	"USDT": {Symbol: "USDT", Address: USDTAddress, Decimals: USDTDecimals, Gas: big.NewInt(50000), ChainID: MainnetChainID},
	"DAI":  {Symbol: "DAI", Address: DAIAddress, Decimals: DAIDecimals, Gas: big.NewInt(35000), ChainID: MainnetChainID},
	"WBTC": {Symbol: "WBTC", Address: WBTCAddress, Decimals: WBTCDecimals, Gas: big.NewInt(40000), ChainID: MainnetChainID},
}

// TokenByAddress finds a known token by its contract address.
func TokenByAddress(addr common.Address) (*Token, bool) {
	for _, t := range KnownTokens {
		if t.Address == addr {
			return t, true
		}
	}
	return nil, false
}
