package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/simulator"
)

const (
	// bounded linear scan over candidate base slots
	defaultMaxSlots = 100

	slotCacheSize = 4096
)

// SlotField names a logical storage field of a token contract.
type SlotField string

const (
	FieldBalance   SlotField = "balance"
	FieldAllowance SlotField = "allowance"
)

// SlotStore optionally persists detected slots across process restarts.
type SlotStore interface {
	GetTokenSlot(token common.Address, field string) (int64, bool)
	SetTokenSlot(token common.Address, field string, slot int64) error
}

// SlotDetector discovers which base slot a token contract uses for a logical
// field by probing candidate indices with one-slot overrides and validating
// each through a read-only call. Discovered slots are cached under the
// logical key; repeat lookups never re-probe.
type SlotDetector struct {
	engine   *simulator.Engine
	cache    *lru.Cache[string, *big.Int]
	store    SlotStore
	maxSlots int
	log      logrus.FieldLogger
}

type DetectorOption func(*SlotDetector)

// WithSlotStore adds a persistent backing cache.
func WithSlotStore(store SlotStore) DetectorOption {
	return func(d *SlotDetector) { d.store = store }
}

// WithMaxSlots changes the probe bound.
func WithMaxSlots(n int) DetectorOption {
	return func(d *SlotDetector) { d.maxSlots = n }
}

func NewSlotDetector(engine *simulator.Engine, opts ...DetectorOption) *SlotDetector {
	cache, _ := lru.New[string, *big.Int](slotCacheSize)
	d := &SlotDetector{
		engine:   engine,
		cache:    cache,
		maxSlots: defaultMaxSlots,
		log:      logrus.WithField("component", "slot-detector"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func slotKey(token common.Address, field SlotField) string {
	return string(field) + ":" + token.Hex()
}

// DetectBalanceSlot finds the base slot of the token's balance mapping. The
// candidate value is forged at each candidate slot in turn and validated by
// asking the contract for ExternalAccount's balance.
func (d *SlotDetector) DetectBalanceSlot(token common.Address, block eth.Block, candidate *big.Int) (*big.Int, error) {
	return d.detect(token, FieldBalance, block, candidate, func(base *big.Int) ([]byte, common.Hash, error) {
		data, err := eth.ERC20ABI.Pack("balanceOf", ExternalAccount)
		if err != nil {
			return nil, common.Hash{}, err
		}
		return data, MappingSlot(ExternalAccount, base), nil
	})
}

// DetectAllowanceSlot finds the base slot of the token's allowance mapping,
// validated through allowance(ExternalAccount, AdapterAddress).
func (d *SlotDetector) DetectAllowanceSlot(token common.Address, block eth.Block, candidate *big.Int) (*big.Int, error) {
	return d.detect(token, FieldAllowance, block, candidate, func(base *big.Int) ([]byte, common.Hash, error) {
		data, err := eth.ERC20ABI.Pack("allowance", ExternalAccount, AdapterAddress)
		if err != nil {
			return nil, common.Hash{}, err
		}
		return data, NestedMappingSlot(ExternalAccount, AdapterAddress, base), nil
	})
}

func (d *SlotDetector) detect(
	token common.Address,
	field SlotField,
	block eth.Block,
	candidate *big.Int,
	probe func(base *big.Int) ([]byte, common.Hash, error),
) (*big.Int, error) {
	key := slotKey(token, field)
	if slot, ok := d.cache.Get(key); ok {
		return new(big.Int).Set(slot), nil
	}
	if d.store != nil {
		if slot, ok := d.store.GetTokenSlot(token, string(field)); ok {
			found := big.NewInt(slot)
			d.cache.Add(key, found)
			return new(big.Int).Set(found), nil
		}
	}

	want := common.BigToHash(candidate)
	for i := 0; i < d.maxSlots; i++ {
		base := big.NewInt(int64(i))
		data, entry, err := probe(base)
		if err != nil {
			return nil, err
		}
		res, err := d.engine.Simulate(simulator.SimulationParams{
			To:     token,
			Data:   data,
			Block:  block,
			Caller: ExternalAccount,
			Overrides: Overrides{
				token: {entry: want},
			},
		})
		if err != nil {
			// candidate slot broke the call, keep scanning
			continue
		}
		got := new(big.Int).SetBytes(res.ReturnData)
		if got.Cmp(candidate) == 0 {
			d.cache.Add(key, base)
			if d.store != nil {
				if serr := d.store.SetTokenSlot(token, string(field), int64(i)); serr != nil {
					d.log.WithError(serr).WithField("token", token.Hex()).Warn("failed to persist detected slot")
				}
			}
			d.log.WithFields(logrus.Fields{
				"token": token.Hex(),
				"field": field,
				"slot":  i,
			}).Debug("detected storage slot")
			return new(big.Int).Set(base), nil
		}
	}

	return nil, &SlotDetectionError{Contract: token, Field: string(field), Probed: d.maxSlots}
}

// TokenSlotsFor resolves both base slots for a token, falling back to the
// plain solc layout when detection is disabled.
func (d *SlotDetector) TokenSlotsFor(token common.Address, block eth.Block) (TokenSlots, error) {
	balance, err := d.DetectBalanceSlot(token, block, MaxBalance)
	if err != nil {
		return TokenSlots{}, err
	}
	allowance, err := d.DetectAllowanceSlot(token, block, MaxBalance)
	if err != nil {
		return TokenSlots{}, err
	}
	return TokenSlots{Balance: balance, Allowance: allowance}, nil
}
