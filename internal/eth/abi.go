package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ERC20 ABI — only the read methods slot detection needs
const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [{"internalType": "address", "name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// Adapter contract ABI — batched pricing and swap probes
const adapterABIJSON = `[
	{
		"inputs": [
			{"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
			{"internalType": "address", "name": "sellToken", "type": "address"},
			{"internalType": "address", "name": "buyToken", "type": "address"},
			{"internalType": "uint256[]", "name": "sellAmounts", "type": "uint256[]"}
		],
		"name": "price",
		"outputs": [{"internalType": "uint256[]", "name": "prices", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
			{"internalType": "address", "name": "sellToken", "type": "address"},
			{"internalType": "address", "name": "buyToken", "type": "address"}
		],
		"name": "getCapabilities",
		"outputs": [{"internalType": "uint256[]", "name": "capabilities", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
			{"internalType": "address", "name": "sellToken", "type": "address"},
			{"internalType": "address", "name": "buyToken", "type": "address"}
		],
		"name": "getLimits",
		"outputs": [{"internalType": "uint256[]", "name": "limits", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Pool swap entrypoints — one per pool kind
const poolSwapABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "sellToken", "type": "address"},
			{"internalType": "address", "name": "buyToken", "type": "address"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"}
		],
		"name": "swapExactIn",
		"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "int128", "name": "i", "type": "int128"},
			{"internalType": "int128", "name": "j", "type": "int128"},
			{"internalType": "uint256", "name": "dx", "type": "uint256"},
			{"internalType": "uint256", "name": "minDy", "type": "uint256"}
		],
		"name": "exchange",
		"outputs": [{"internalType": "uint256", "name": "dy", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Parsed ABI table, built once at startup and read-only afterwards.
var (
	ERC20ABI    abi.ABI
	AdapterABI  abi.ABI
	PoolSwapABI abi.ABI
)

func init() {
	ERC20ABI = mustParseABI(erc20ABIJSON)
	AdapterABI = mustParseABI(adapterABIJSON)
	PoolSwapABI = mustParseABI(poolSwapABIJSON)
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
