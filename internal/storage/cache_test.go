package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *CacheDB {
	t.Helper()
	db, err := NewCacheDB(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	tokenAddr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	acctAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestTokenSlotRoundTrip(t *testing.T) {
	db := newTestDB(t)

	_, ok := db.GetTokenSlot(tokenAddr, "balance")
	assert.False(t, ok)

	require.NoError(t, db.SetTokenSlot(tokenAddr, "balance", 9))
	require.NoError(t, db.SetTokenSlot(tokenAddr, "allowance", 10))

	slot, ok := db.GetTokenSlot(tokenAddr, "balance")
	require.True(t, ok)
	assert.Equal(t, int64(9), slot)

	slot, ok = db.GetTokenSlot(tokenAddr, "allowance")
	require.True(t, ok)
	assert.Equal(t, int64(10), slot)

	// re-detection overwrites
	require.NoError(t, db.SetTokenSlot(tokenAddr, "balance", 3))
	slot, _ = db.GetTokenSlot(tokenAddr, "balance")
	assert.Equal(t, int64(3), slot)
}

func TestTokenMetadataRoundTrip(t *testing.T) {
	db := newTestDB(t)

	_, _, ok := db.GetToken(tokenAddr)
	assert.False(t, ok)

	require.NoError(t, db.SetToken(tokenAddr, "USDC", 6, 1))

	symbol, decimals, ok := db.GetToken(tokenAddr)
	require.True(t, ok)
	assert.Equal(t, "USDC", symbol)
	assert.Equal(t, 6, decimals)
}

func TestAccountBatchRoundTrip(t *testing.T) {
	db := newTestDB(t)

	rows := []AccountRow{
		{Address: acctAddr, Balance: big.NewInt(1000), Nonce: 5, Code: []byte{0x60, 0x80}},
		{Address: tokenAddr, Balance: nil, Nonce: 0},
	}
	require.NoError(t, db.BatchSetAccounts(100, rows))

	loaded, err := db.LoadAccounts(100)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byAddr := make(map[common.Address]AccountRow, len(loaded))
	for _, r := range loaded {
		byAddr[r.Address] = r
	}
	acct := byAddr[acctAddr]
	assert.Zero(t, acct.Balance.Cmp(big.NewInt(1000)))
	assert.Equal(t, uint64(5), acct.Nonce)
	assert.Equal(t, []byte{0x60, 0x80}, acct.Code)

	// nil balance rows come back as zero
	assert.Zero(t, byAddr[tokenAddr].Balance.Sign())

	// other blocks stay empty
	loaded, err = db.LoadAccounts(101)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStorageBatchRoundTrip(t *testing.T) {
	db := newTestDB(t)

	slot := common.HexToHash("0x2a")
	val := common.HexToHash("0xff")
	require.NoError(t, db.BatchSetStorage(100, []StorageRow{
		{Address: acctAddr, Slot: slot, Value: val},
	}))

	loaded, err := db.LoadStorage(100)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, acctAddr, loaded[0].Address)
	assert.Equal(t, slot, loaded[0].Slot)
	assert.Equal(t, val, loaded[0].Value)
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SetTokenSlot(tokenAddr, "balance", 0))
	require.NoError(t, db.BatchSetAccounts(100, []AccountRow{{Address: acctAddr, Balance: big.NewInt(1)}}))
	require.NoError(t, db.BatchSetStorage(100, []StorageRow{
		{Address: acctAddr, Slot: common.HexToHash("0x01"), Value: common.HexToHash("0x02")},
		{Address: acctAddr, Slot: common.HexToHash("0x03"), Value: common.HexToHash("0x04")},
	}))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["detected_slots"])
	assert.Equal(t, int64(1), stats["account_entries"])
	assert.Equal(t, int64(2), stats["storage_entries"])
}
