package protocol

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidTokenPair rejects a swap for a token outside the pool's fixed
// token set. Fatal to the call, not to the pool.
var ErrInvalidTokenPair = errors.New("invalid token pair")

// ErrSellAmountExceedsLimit rejects a sell amount above the pool's hard
// limit for the pair.
var ErrSellAmountExceedsLimit = errors.New("sell amount exceeds pool limit")

// ValidationError wraps a caller-local input problem.
type ValidationError struct {
	PoolID string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pool %s: %v", e.PoolID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SlotDetectionError reports an exhausted probe range. Fatal to the single
// override request only.
type SlotDetectionError struct {
	Contract common.Address
	Field    string
	Probed   int
}

func (e *SlotDetectionError) Error() string {
	return fmt.Sprintf("no %s slot found for %s in %d candidates", e.Field, e.Contract.Hex(), e.Probed)
}
