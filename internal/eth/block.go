package eth

import (
	"github.com/ethereum/go-ethereum/common"
)

// Block tags an execution context. It is never mutated after creation;
// derived states clone it when they need their own copy.
type Block struct {
	Number uint64
	Hash   common.Hash
	Time   uint64
}

// Equal compares block identity: (number, hash).
func (b Block) Equal(other Block) bool {
	return b.Number == other.Number && b.Hash == other.Hash
}

// Clone returns a copy for a derived state's context.
func (b Block) Clone() Block {
	return Block{Number: b.Number, Hash: b.Hash, Time: b.Time}
}
