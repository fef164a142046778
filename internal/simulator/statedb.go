package simulator

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"
)

// journalDB implements vm.StateDB on top of the journal. Every storage write
// is mirrored into a diff map so the executor can hand the write set back as
// the probe's side channel.
type journalDB struct {
	journal         *Journal
	writes          map[common.Address]map[common.Hash]common.Hash
	logs            []*types.Log
	refund          uint64
	accessList      map[common.Address]map[common.Hash]bool
	accessListAddr  map[common.Address]bool
	originalStorage map[common.Address]map[common.Hash]common.Hash
	transient       map[common.Address]map[common.Hash]common.Hash
}

func newJournalDB(journal *Journal) *journalDB {
	return &journalDB{
		journal:         journal,
		writes:          make(map[common.Address]map[common.Hash]common.Hash),
		logs:            make([]*types.Log, 0),
		accessList:      make(map[common.Address]map[common.Hash]bool),
		accessListAddr:  make(map[common.Address]bool),
		originalStorage: make(map[common.Address]map[common.Hash]common.Hash),
		transient:       make(map[common.Address]map[common.Hash]common.Hash),
	}
}

// CreateAccount creates a new account
func (s *journalDB) CreateAccount(addr common.Address) {
	s.journal.SetBalance(addr, uint256.NewInt(0))
	s.journal.SetNonce(addr, 0)
}

// CreateContract is like CreateAccount but for contract creation
func (s *journalDB) CreateContract(addr common.Address) {
	s.CreateAccount(addr)
}

// Balance operations
func (s *journalDB) GetBalance(addr common.Address) *uint256.Int {
	return s.journal.GetBalance(addr)
}

func (s *journalDB) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	bal := s.journal.GetBalance(addr)
	newBal := new(uint256.Int).Add(bal, amount)
	s.journal.SetBalance(addr, newBal)
	return *bal
}

func (s *journalDB) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	bal := s.journal.GetBalance(addr)
	newBal := new(uint256.Int).Sub(bal, amount)
	s.journal.SetBalance(addr, newBal)
	return *bal
}

// Nonce operations
func (s *journalDB) GetNonce(addr common.Address) uint64 {
	return s.journal.GetNonce(addr)
}

func (s *journalDB) SetNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	s.journal.SetNonce(addr, nonce)
}

// Code operations
func (s *journalDB) GetCode(addr common.Address) []byte {
	return s.journal.GetCode(addr)
}

func (s *journalDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *journalDB) GetCodeHash(addr common.Address) common.Hash {
	code := s.GetCode(addr)
	if len(code) == 0 {
		if s.Exist(addr) {
			return crypto.Keccak256Hash(nil)
		}
		return common.Hash{}
	}
	return crypto.Keccak256Hash(code)
}

func (s *journalDB) SetCode(addr common.Address, code []byte, reason tracing.CodeChangeReason) []byte {
	oldCode := s.GetCode(addr)
	s.journal.SetCode(addr, code)
	return oldCode
}

// Storage operations
func (s *journalDB) GetState(addr common.Address, hash common.Hash) common.Hash {
	return s.journal.GetState(addr, hash)
}

func (s *journalDB) SetState(addr common.Address, key, value common.Hash) common.Hash {
	oldVal := s.GetState(addr, key)
	s.journal.SetState(addr, key, value)
	if s.writes[addr] == nil {
		s.writes[addr] = make(map[common.Hash]common.Hash)
	}
	s.writes[addr][key] = value
	return oldVal
}

func (s *journalDB) GetStateAndCommittedState(addr common.Address, hash common.Hash) (common.Hash, common.Hash) {
	current := s.GetState(addr, hash)

	if addrMap, ok := s.originalStorage[addr]; ok {
		if orig, ok := addrMap[hash]; ok {
			return current, orig
		}
	}
	// first time seeing this slot in this call — current IS the original
	if s.originalStorage[addr] == nil {
		s.originalStorage[addr] = make(map[common.Hash]common.Hash)
	}
	s.originalStorage[addr][hash] = current
	return current, current
}

func (s *journalDB) GetStorageRoot(addr common.Address) common.Hash {
	return common.Hash{}
}

// Transient storage (EIP-1153)
func (s *journalDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if m, ok := s.transient[addr]; ok {
		return m[key]
	}
	return common.Hash{}
}

func (s *journalDB) SetTransientState(addr common.Address, key, value common.Hash) {
	if s.transient[addr] == nil {
		s.transient[addr] = make(map[common.Hash]common.Hash)
	}
	s.transient[addr][key] = value
}

// Account existence
func (s *journalDB) Exist(addr common.Address) bool {
	if s.journal.Exists(addr) {
		return true
	}
	return len(s.GetCode(addr)) > 0 || s.GetBalance(addr).Sign() > 0 || s.GetNonce(addr) > 0
}

func (s *journalDB) Empty(addr common.Address) bool {
	return len(s.GetCode(addr)) == 0 && s.GetBalance(addr).Sign() == 0 && s.GetNonce(addr) == 0
}

// Snapshot operations delegate to the journal's linear log
func (s *journalDB) Snapshot() int {
	return s.journal.Snapshot()
}

func (s *journalDB) RevertToSnapshot(id int) {
	s.journal.Revert(id)
}

// Logs
func (s *journalDB) AddLog(log *types.Log) {
	s.logs = append(s.logs, log)
}

func (s *journalDB) Logs() []*types.Log {
	return s.logs
}

// Refunds
func (s *journalDB) AddRefund(gas uint64) {
	s.refund += gas
}

func (s *journalDB) SubRefund(gas uint64) {
	if gas > s.refund {
		s.refund = 0
	} else {
		s.refund -= gas
	}
}

func (s *journalDB) GetRefund() uint64 {
	return s.refund
}

// Preimages
func (s *journalDB) AddPreimage(hash common.Hash, preimage []byte) {}

// Self-destruct operations
func (s *journalDB) SelfDestruct(addr common.Address) uint256.Int {
	bal := s.journal.GetBalance(addr)
	s.journal.SetBalance(addr, uint256.NewInt(0))
	return *bal
}

func (s *journalDB) HasSelfDestructed(addr common.Address) bool {
	return false
}

func (s *journalDB) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	return s.SelfDestruct(addr), true
}

// Access list (EIP-2929)
func (s *journalDB) AddAddressToAccessList(addr common.Address) { s.accessListAddr[addr] = true }

func (s *journalDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessListAddr[addr] = true
	if s.accessList[addr] == nil {
		s.accessList[addr] = make(map[common.Hash]bool)
	}
	s.accessList[addr][slot] = true
}

func (s *journalDB) AddressInAccessList(addr common.Address) bool {
	return s.accessListAddr[addr]
}

func (s *journalDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOk := s.accessListAddr[addr]
	if !addrOk {
		return false, false
	}
	if s.accessList[addr] == nil {
		return true, false
	}
	return true, s.accessList[addr][slot]
}

// Prepare for call execution
func (s *journalDB) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	s.AddAddressToAccessList(sender)
	if dest != nil {
		s.AddAddressToAccessList(*dest)
	}
	s.AddAddressToAccessList(coinbase)
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	for _, el := range txAccesses {
		s.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			s.AddSlotToAccessList(el.Address, key)
		}
	}
}

// Point cache for verkle trees
func (s *journalDB) PointCache() *utils.PointCache {
	return nil
}

// Witness for stateless execution
func (s *journalDB) Witness() *stateless.Witness {
	return nil
}

// Access events for EIP-2930
func (s *journalDB) AccessEvents() *state.AccessEvents {
	return nil
}

// Finalise completes the state transition
func (s *journalDB) Finalise(deleteEmptyObjects bool) {
	// No-op for our simple implementation
}
