package simulator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateLoader is an optional read-only fallback consulted when the journal
// misses locally. Faulted-in values are baseline state: they are cached but
// never journaled, so revert does not drop them.
type StateLoader interface {
	Balance(addr common.Address) (*big.Int, error)
	Nonce(addr common.Address) (uint64, error)
	Code(addr common.Address) ([]byte, error)
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)
}

// Journal holds account state with point-in-time snapshot and revert.
//
// Snapshot/revert form one linear, truncation-only log. The journal is NOT
// safe for concurrent mutation: two probes sharing a journal will corrupt
// each other's baselines. Callers either serialize probes against one
// journal or give each concurrent caller its own journal/engine pair.
type Journal struct {
	accounts map[common.Address]*AccountState
	loader   StateLoader

	// undo log; snapshots are marks into it, so a snapshot is O(1) and a
	// revert costs only the changes made since the mark
	undo  []func()
	marks []int
}

func NewJournal() *Journal {
	return &Journal{
		accounts: make(map[common.Address]*AccountState),
		undo:     make([]func(), 0),
		marks:    make([]int, 0),
	}
}

// NewJournalWithLoader builds a journal that faults missing state in from a
// remote reader, in the manner of a forked-state cache.
func NewJournalWithLoader(loader StateLoader) *Journal {
	j := NewJournal()
	j.loader = loader
	return j
}

func (j *Journal) record(undo func()) {
	j.undo = append(j.undo, undo)
}

// account returns the live entry, faulting it in through the loader when one
// is configured. Cache fills are not journaled.
func (j *Journal) account(addr common.Address) *AccountState {
	if acct, ok := j.accounts[addr]; ok {
		return acct
	}
	if j.loader == nil {
		return nil
	}
	bal, err := j.loader.Balance(addr)
	if err != nil {
		return nil
	}
	nonce, err := j.loader.Nonce(addr)
	if err != nil {
		return nil
	}
	code, err := j.loader.Code(addr)
	if err != nil {
		return nil
	}
	balance, _ := uint256.FromBig(bal)
	acct := &AccountState{
		Nonce:   nonce,
		Balance: balance,
		Code:    code,
		Storage: make(map[common.Hash]common.Hash),
	}
	j.accounts[addr] = acct
	return acct
}

// mutable returns the entry for addr, creating an empty one (journaled) if
// it does not exist yet.
func (j *Journal) mutable(addr common.Address) *AccountState {
	if acct := j.account(addr); acct != nil {
		return acct
	}
	acct := newAccountState()
	j.accounts[addr] = acct
	j.record(func() { delete(j.accounts, addr) })
	return acct
}

// GetAccount returns a copy of the tracked state for addr. An address that
// was never seeded or written yields not-found, not a default.
func (j *Journal) GetAccount(addr common.Address) (*AccountState, bool) {
	acct, ok := j.accounts[addr]
	if !ok {
		return nil, false
	}
	return acct.Copy(), true
}

// SetAccount replaces the whole state for addr.
func (j *Journal) SetAccount(addr common.Address, state *AccountState) {
	if prev, ok := j.accounts[addr]; ok {
		saved := prev
		j.record(func() { j.accounts[addr] = saved })
	} else {
		j.record(func() { delete(j.accounts, addr) })
	}
	j.accounts[addr] = state.Copy()
}

func (j *Journal) GetBalance(addr common.Address) *uint256.Int {
	acct := j.account(addr)
	if acct == nil || acct.Balance == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(acct.Balance)
}

func (j *Journal) SetBalance(addr common.Address, balance *uint256.Int) {
	acct := j.mutable(addr)
	prev := acct.Balance
	j.record(func() { acct.Balance = prev })
	acct.Balance = new(uint256.Int).Set(balance)
}

func (j *Journal) GetNonce(addr common.Address) uint64 {
	acct := j.account(addr)
	if acct == nil {
		return 0
	}
	return acct.Nonce
}

func (j *Journal) SetNonce(addr common.Address, nonce uint64) {
	acct := j.mutable(addr)
	prev := acct.Nonce
	j.record(func() { acct.Nonce = prev })
	acct.Nonce = nonce
}

func (j *Journal) GetCode(addr common.Address) []byte {
	acct := j.account(addr)
	if acct == nil {
		return nil
	}
	return acct.Code
}

func (j *Journal) SetCode(addr common.Address, code []byte) {
	acct := j.mutable(addr)
	prev := acct.Code
	j.record(func() { acct.Code = prev })
	acct.Code = code
}

func (j *Journal) GetState(addr common.Address, slot common.Hash) common.Hash {
	acct := j.account(addr)
	if acct == nil {
		return common.Hash{}
	}
	if val, ok := acct.Storage[slot]; ok {
		return val
	}
	if j.loader != nil {
		val, err := j.loader.Storage(addr, slot)
		if err == nil {
			acct.Storage[slot] = val
			return val
		}
	}
	return common.Hash{}
}

func (j *Journal) SetState(addr common.Address, slot, value common.Hash) {
	acct := j.mutable(addr)
	if prev, ok := acct.Storage[slot]; ok {
		saved := prev
		j.record(func() { acct.Storage[slot] = saved })
	} else {
		j.record(func() { delete(acct.Storage, slot) })
	}
	acct.Storage[slot] = value
}

// Exists reports whether addr is tracked locally.
func (j *Journal) Exists(addr common.Address) bool {
	_, ok := j.accounts[addr]
	return ok
}

// Snapshot captures the current state and returns its position in the log.
func (j *Journal) Snapshot() int {
	j.marks = append(j.marks, len(j.undo))
	return len(j.marks) - 1
}

// Revert restores the state captured at id and discards every snapshot with
// a higher id. Returns false, without touching anything, when id was never
// issued or has already been discarded.
func (j *Journal) Revert(id int) bool {
	if id < 0 || id >= len(j.marks) {
		return false
	}
	mark := j.marks[id]
	for len(j.undo) > mark {
		last := j.undo[len(j.undo)-1]
		j.undo = j.undo[:len(j.undo)-1]
		last()
	}
	j.marks = j.marks[:id+1]
	return true
}

// Accounts returns a deep copy of every tracked account, mainly for
// comparing journal states across probes.
func (j *Journal) Accounts() map[common.Address]*AccountState {
	out := make(map[common.Address]*AccountState, len(j.accounts))
	for addr, acct := range j.accounts {
		out[addr] = acct.Copy()
	}
	return out
}
