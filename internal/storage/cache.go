package storage

import (
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS token_slots (
	address TEXT NOT NULL,
	field   TEXT NOT NULL,
	slot    INTEGER NOT NULL,
	PRIMARY KEY (address, field)
);

CREATE TABLE IF NOT EXISTS tokens (
	address  TEXT PRIMARY KEY,
	symbol   TEXT NOT NULL,
	decimals INTEGER NOT NULL,
	chain_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_state (
	block_number INTEGER NOT NULL,
	address      TEXT NOT NULL,
	balance      TEXT,
	nonce        INTEGER,
	code         BLOB,
	PRIMARY KEY (block_number, address)
);

CREATE TABLE IF NOT EXISTS storage_state (
	block_number INTEGER NOT NULL,
	address      TEXT NOT NULL,
	slot         TEXT NOT NULL,
	value        TEXT NOT NULL,
	PRIMARY KEY (block_number, address, slot)
);
`

// CacheDB persists detected storage slots, token metadata and ingested state
// snapshots between runs.
type CacheDB struct {
	db *sql.DB
}

func NewCacheDB(dbPath string) (*CacheDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &CacheDB{db: db}, nil
}

func (c *CacheDB) Close() error {
	return c.db.Close()
}

// Detected slot operations; satisfies the slot detector's store capability.
func (c *CacheDB) GetTokenSlot(token common.Address, field string) (int64, bool) {
	var slot int64
	err := c.db.QueryRow(
		"SELECT slot FROM token_slots WHERE address = ? AND field = ?",
		token.Hex(), field,
	).Scan(&slot)

	if err == sql.ErrNoRows {
		return 0, false
	}
	if err != nil {
		return 0, false
	}

	return slot, true
}

func (c *CacheDB) SetTokenSlot(token common.Address, field string, slot int64) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO token_slots (address, field, slot) VALUES (?, ?, ?)",
		token.Hex(), field, slot,
	)
	return err
}

// Token metadata operations
func (c *CacheDB) GetToken(addr common.Address) (symbol string, decimals int, ok bool) {
	err := c.db.QueryRow(
		"SELECT symbol, decimals FROM tokens WHERE address = ?",
		addr.Hex(),
	).Scan(&symbol, &decimals)

	if err != nil {
		return "", 0, false
	}

	return symbol, decimals, true
}

func (c *CacheDB) SetToken(addr common.Address, symbol string, decimals int, chainID uint64) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO tokens (address, symbol, decimals, chain_id) VALUES (?, ?, ?, ?)",
		addr.Hex(), symbol, decimals, chainID,
	)
	return err
}

// Batch operations for snapshot ingestion

type AccountRow struct {
	Address common.Address
	Balance *big.Int
	Nonce   uint64
	Code    []byte
}

func (c *CacheDB) BatchSetAccounts(blockNumber uint64, accounts []AccountRow) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO account_state (block_number, address, balance, nonce, code) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, acc := range accounts {
		balance := "0"
		if acc.Balance != nil {
			balance = acc.Balance.String()
		}
		_, err := stmt.Exec(
			blockNumber,
			acc.Address.Hex(),
			balance,
			acc.Nonce,
			acc.Code,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type StorageRow struct {
	Address common.Address
	Slot    common.Hash
	Value   common.Hash
}

func (c *CacheDB) BatchSetStorage(blockNumber uint64, storage []StorageRow) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO storage_state (block_number, address, slot, value) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range storage {
		_, err := stmt.Exec(
			blockNumber,
			s.Address.Hex(),
			s.Slot.Hex(),
			s.Value.Hex(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadAccounts returns every ingested account row for a block, for seeding a
// journal.
func (c *CacheDB) LoadAccounts(blockNumber uint64) ([]AccountRow, error) {
	rows, err := c.db.Query(
		"SELECT address, balance, nonce, code FROM account_state WHERE block_number = ?",
		blockNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountRow
	for rows.Next() {
		var addr, balanceStr string
		var nonce uint64
		var code []byte
		if err := rows.Scan(&addr, &balanceStr, &nonce, &code); err != nil {
			return nil, err
		}
		balance := new(big.Int)
		balance.SetString(balanceStr, 10)
		out = append(out, AccountRow{
			Address: common.HexToAddress(addr),
			Balance: balance,
			Nonce:   nonce,
			Code:    code,
		})
	}
	return out, rows.Err()
}

// LoadStorage returns every ingested storage row for a block.
func (c *CacheDB) LoadStorage(blockNumber uint64) ([]StorageRow, error) {
	rows, err := c.db.Query(
		"SELECT address, slot, value FROM storage_state WHERE block_number = ?",
		blockNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StorageRow
	for rows.Next() {
		var addr, slot, value string
		if err := rows.Scan(&addr, &slot, &value); err != nil {
			return nil, err
		}
		out = append(out, StorageRow{
			Address: common.HexToAddress(addr),
			Slot:    common.HexToHash(slot),
			Value:   common.HexToHash(value),
		})
	}
	return out, rows.Err()
}

// stats for monitoring cache contents

func (c *CacheDB) GetStats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM token_slots").Scan(&count); err != nil {
		return nil, err
	}
	stats["detected_slots"] = count

	if err := c.db.QueryRow("SELECT COUNT(*) FROM account_state").Scan(&count); err != nil {
		return nil, err
	}
	stats["account_entries"] = count

	if err := c.db.QueryRow("SELECT COUNT(*) FROM storage_state").Scan(&count); err != nil {
		return nil, err
	}
	stats["storage_entries"] = count

	return stats, nil
}
