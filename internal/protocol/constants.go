package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Well-known sandbox addresses. The external account acts as the caller of
// every probe; the adapter address is where the pricing contract's bytecode
// is seeded.
var (
	ExternalAccount = common.HexToAddress("0xf847a638E44186F3287ee9F8cAF73FF4d4B80784")
	AdapterAddress  = common.HexToAddress("0xA2C5C98A892fD6656a7F39A2f63228C0Bc846270")

	// MaxBalance is half of the uint256 range, large enough for any forged
	// balance while staying clear of overflow in token math
	MaxBalance = new(big.Int).Rsh(
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
		1,
	)
)
