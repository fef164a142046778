package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/simulator"
)

var testToken = common.HexToAddress("0x5555555555555555555555555555555555555555")

// tokenContract emulates an ERC-20 whose balance mapping sits at balanceSlot
// and allowance mapping at allowanceSlot: it answers reads from whatever the
// journal holds at the canonical mapping entry.
type tokenContract struct {
	balanceSlot   int64
	allowanceSlot int64
	probes        int
}

func (c *tokenContract) Call(j *simulator.Journal, p simulator.SimulationParams) (*simulator.CallResult, error) {
	c.probes++
	var entry common.Hash
	switch {
	case len(p.Data) >= 4 && string(p.Data[:4]) == string(eth.ERC20ABI.Methods["balanceOf"].ID):
		entry = MappingSlot(ExternalAccount, big.NewInt(c.balanceSlot))
	case len(p.Data) >= 4 && string(p.Data[:4]) == string(eth.ERC20ABI.Methods["allowance"].ID):
		entry = NestedMappingSlot(ExternalAccount, AdapterAddress, big.NewInt(c.allowanceSlot))
	default:
		return nil, &simulator.ExecutionError{Reason: "unknown selector"}
	}
	return &simulator.CallResult{
		GasUsed:    25_000,
		ReturnData: j.GetState(p.To, entry).Bytes(),
	}, nil
}

func TestDetectBalanceSlot(t *testing.T) {
	contract := &tokenContract{balanceSlot: 42, allowanceSlot: 3}
	engine := simulator.NewEngine(simulator.NewJournal(), contract)
	detector := NewSlotDetector(engine)

	slot, err := detector.DetectBalanceSlot(testToken, testBlock, MaxBalance)
	require.NoError(t, err)
	assert.Zero(t, slot.Cmp(big.NewInt(42)))
	assert.Equal(t, 43, contract.probes, "linear scan stops at the first accepted candidate")

	// repeat lookups are served from the cache, no re-probing
	again, err := detector.DetectBalanceSlot(testToken, testBlock, MaxBalance)
	require.NoError(t, err)
	assert.Zero(t, again.Cmp(big.NewInt(42)))
	assert.Equal(t, 43, contract.probes)
}

func TestDetectAllowanceSlot(t *testing.T) {
	contract := &tokenContract{balanceSlot: 0, allowanceSlot: 3}
	engine := simulator.NewEngine(simulator.NewJournal(), contract)
	detector := NewSlotDetector(engine)

	slot, err := detector.DetectAllowanceSlot(testToken, testBlock, MaxBalance)
	require.NoError(t, err)
	assert.Zero(t, slot.Cmp(big.NewInt(3)))
}

func TestDetectLeavesNoTrace(t *testing.T) {
	contract := &tokenContract{balanceSlot: 5}
	journal := simulator.NewJournal()
	engine := simulator.NewEngine(journal, contract)
	detector := NewSlotDetector(engine)

	_, err := detector.DetectBalanceSlot(testToken, testBlock, MaxBalance)
	require.NoError(t, err)

	// every probe's one-slot override has been rolled back
	assert.Empty(t, journal.Accounts())
}

func TestDetectExhaustion(t *testing.T) {
	// balance mapping out of reach of a 5-slot scan
	contract := &tokenContract{balanceSlot: 50}
	engine := simulator.NewEngine(simulator.NewJournal(), contract)
	detector := NewSlotDetector(engine, WithMaxSlots(5))

	_, err := detector.DetectBalanceSlot(testToken, testBlock, MaxBalance)
	var detErr *SlotDetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, testToken, detErr.Contract)
	assert.Equal(t, "balance", detErr.Field)
	assert.Equal(t, 5, detErr.Probed)
	assert.Equal(t, 5, contract.probes)
}

type memorySlotStore struct {
	slots map[string]int64
	sets  int
}

func (s *memorySlotStore) GetTokenSlot(token common.Address, field string) (int64, bool) {
	v, ok := s.slots[field+":"+token.Hex()]
	return v, ok
}

func (s *memorySlotStore) SetTokenSlot(token common.Address, field string, slot int64) error {
	s.slots[field+":"+token.Hex()] = slot
	s.sets++
	return nil
}

func TestDetectorSlotStore(t *testing.T) {
	contract := &tokenContract{balanceSlot: 9}
	engine := simulator.NewEngine(simulator.NewJournal(), contract)
	store := &memorySlotStore{slots: make(map[string]int64)}
	detector := NewSlotDetector(engine, WithSlotStore(store))

	slot, err := detector.DetectBalanceSlot(testToken, testBlock, MaxBalance)
	require.NoError(t, err)
	assert.Zero(t, slot.Cmp(big.NewInt(9)))
	assert.Equal(t, 1, store.sets, "fresh detections persist to the store")

	// a second detector backed by the same store never probes
	contract2 := &tokenContract{balanceSlot: 9}
	engine2 := simulator.NewEngine(simulator.NewJournal(), contract2)
	detector2 := NewSlotDetector(engine2, WithSlotStore(store))

	slot, err = detector2.DetectBalanceSlot(testToken, testBlock, MaxBalance)
	require.NoError(t, err)
	assert.Zero(t, slot.Cmp(big.NewInt(9)))
	assert.Zero(t, contract2.probes)
}

func TestTokenSlotsFor(t *testing.T) {
	contract := &tokenContract{balanceSlot: 0, allowanceSlot: 1}
	engine := simulator.NewEngine(simulator.NewJournal(), contract)
	detector := NewSlotDetector(engine)

	slots, err := detector.TokenSlotsFor(testToken, testBlock)
	require.NoError(t, err)
	assert.Zero(t, slots.Balance.Cmp(big.NewInt(0)))
	assert.Zero(t, slots.Allowance.Cmp(big.NewInt(1)))
}
