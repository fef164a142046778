package simulator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = common.HexToAddress("0x2222222222222222222222222222222222222222")

	slot1 = common.HexToHash("0x01")
	slot2 = common.HexToHash("0x02")

	valX = common.HexToHash("0xaa")
	valY = common.HexToHash("0xbb")
)

func TestJournalAccountRoundTrip(t *testing.T) {
	j := NewJournal()

	_, ok := j.GetAccount(addrA)
	assert.False(t, ok, "untracked address must be not-found, not a default")

	j.SetAccount(addrA, &AccountState{
		Nonce:   7,
		Balance: uint256.NewInt(1000),
		Code:    []byte{0x60, 0x00},
		Storage: map[common.Hash]common.Hash{slot1: valX},
	})

	acct, ok := j.GetAccount(addrA)
	require.True(t, ok)
	assert.Equal(t, uint64(7), acct.Nonce)
	assert.Equal(t, uint256.NewInt(1000), acct.Balance)
	assert.Equal(t, []byte{0x60, 0x00}, acct.Code)
	assert.Equal(t, valX, acct.Storage[slot1])

	// the returned copy must not alias the journal's entry
	acct.Storage[slot2] = valY
	again, _ := j.GetAccount(addrA)
	_, leaked := again.Storage[slot2]
	assert.False(t, leaked)
}

func TestJournalFieldAccessors(t *testing.T) {
	j := NewJournal()

	assert.True(t, j.GetBalance(addrA).IsZero())
	assert.Zero(t, j.GetNonce(addrA))
	assert.Nil(t, j.GetCode(addrA))
	assert.Equal(t, common.Hash{}, j.GetState(addrA, slot1))

	j.SetBalance(addrA, uint256.NewInt(42))
	j.SetNonce(addrA, 3)
	j.SetCode(addrA, []byte{0x01})
	j.SetState(addrA, slot1, valX)

	assert.Equal(t, uint256.NewInt(42), j.GetBalance(addrA))
	assert.Equal(t, uint64(3), j.GetNonce(addrA))
	assert.Equal(t, []byte{0x01}, j.GetCode(addrA))
	assert.Equal(t, valX, j.GetState(addrA, slot1))
	assert.True(t, j.Exists(addrA))
	assert.False(t, j.Exists(addrB))
}

func TestJournalSnapshotRevert(t *testing.T) {
	j := NewJournal()
	j.SetState(addrA, slot1, valX)

	s0 := j.Snapshot()
	j.SetState(addrA, slot1, valY)
	j.SetState(addrA, slot2, valX)
	j.SetBalance(addrB, uint256.NewInt(99))

	require.True(t, j.Revert(s0))

	assert.Equal(t, valX, j.GetState(addrA, slot1))
	assert.Equal(t, common.Hash{}, j.GetState(addrA, slot2))
	assert.False(t, j.Exists(addrB), "account created after the snapshot must vanish")
}

func TestJournalRevertDiscardsNewerSnapshots(t *testing.T) {
	j := NewJournal()

	s0 := j.Snapshot()
	j.SetState(addrA, slot1, valX)
	s1 := j.Snapshot()
	j.SetState(addrA, slot1, valY)
	s2 := j.Snapshot()

	require.True(t, j.Revert(s1))
	assert.Equal(t, valX, j.GetState(addrA, slot1))

	// s2 died with the revert to s1; s1 and s0 stay addressable
	assert.False(t, j.Revert(s2))
	assert.True(t, j.Revert(s1))
	assert.True(t, j.Revert(s0))
	assert.Equal(t, common.Hash{}, j.GetState(addrA, slot1))
}

func TestJournalRevertBadID(t *testing.T) {
	j := NewJournal()
	j.SetState(addrA, slot1, valX)

	assert.False(t, j.Revert(0))
	assert.False(t, j.Revert(-1))
	assert.False(t, j.Revert(100))

	// a failed revert must leave state untouched
	assert.Equal(t, valX, j.GetState(addrA, slot1))
}

func TestJournalSetStateNewSlotRevertsToAbsent(t *testing.T) {
	j := NewJournal()
	j.SetAccount(addrA, &AccountState{Balance: uint256.NewInt(0), Storage: map[common.Hash]common.Hash{}})

	s := j.Snapshot()
	j.SetState(addrA, slot1, valX)
	require.True(t, j.Revert(s))

	acct, ok := j.GetAccount(addrA)
	require.True(t, ok)
	_, present := acct.Storage[slot1]
	assert.False(t, present, "slot written after the snapshot must be deleted, not zeroed")
}

type stubLoader struct {
	balance *big.Int
	nonce   uint64
	code    []byte
	storage map[common.Hash]common.Hash
	err     error

	storageReads int
}

func (l *stubLoader) Balance(common.Address) (*big.Int, error) {
	return l.balance, l.err
}

func (l *stubLoader) Nonce(common.Address) (uint64, error) {
	return l.nonce, l.err
}

func (l *stubLoader) Code(common.Address) ([]byte, error) {
	return l.code, l.err
}

func (l *stubLoader) Storage(_ common.Address, slot common.Hash) (common.Hash, error) {
	l.storageReads++
	return l.storage[slot], l.err
}

func TestJournalLoaderFaultIn(t *testing.T) {
	loader := &stubLoader{
		balance: big.NewInt(5000),
		nonce:   2,
		code:    []byte{0xfe},
		storage: map[common.Hash]common.Hash{slot1: valX},
	}
	j := NewJournalWithLoader(loader)

	assert.Equal(t, uint256.NewInt(5000), j.GetBalance(addrA))
	assert.Equal(t, uint64(2), j.GetNonce(addrA))
	assert.Equal(t, []byte{0xfe}, j.GetCode(addrA))
	assert.Equal(t, valX, j.GetState(addrA, slot1))

	// second read served from the local cache
	assert.Equal(t, valX, j.GetState(addrA, slot1))
	assert.Equal(t, 1, loader.storageReads)
}

func TestJournalLoaderFillsSurviveRevert(t *testing.T) {
	loader := &stubLoader{
		balance: big.NewInt(5000),
		storage: map[common.Hash]common.Hash{slot1: valX},
	}
	j := NewJournalWithLoader(loader)

	s := j.Snapshot()
	assert.Equal(t, valX, j.GetState(addrA, slot1))
	j.SetState(addrA, slot1, valY)
	require.True(t, j.Revert(s))

	// the faulted-in baseline is cached, not journaled
	assert.Equal(t, valX, j.GetState(addrA, slot1))
	assert.Equal(t, 1, loader.storageReads)
}

func TestJournalLoaderError(t *testing.T) {
	loader := &stubLoader{err: errors.New("node unreachable")}
	j := NewJournalWithLoader(loader)

	assert.True(t, j.GetBalance(addrA).IsZero())
	assert.False(t, j.Exists(addrA))
}
