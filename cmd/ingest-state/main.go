package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/helixbox/tycho-simulation/internal/storage"
)

// ParquetRow is one record of an account-state dump. Rows with an empty Slot
// carry account fields; rows with a Slot carry a single storage word.
type ParquetRow struct {
	BlockNumber int64
	Address     string
	Balance     string
	Nonce       int64
	Code        string
	Slot        string
	Value       string
}

func main() {
	_ = godotenv.Load("../../.env")

	parquetFile := flag.String("file", "", "Path to parquet state dump")
	dbPath := flag.String("db", "data/state.db", "Path to SQLite cache database")
	flag.Parse()

	if *parquetFile == "" {
		log.Fatal("Usage: --file <parquet_file>")
	}

	fmt.Printf("Ingesting state snapshot from %s...\n", *parquetFile)

	db, err := storage.NewCacheDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fr, err := local.NewLocalFileReader(*parquetFile)
	if err != nil {
		log.Fatalf("Failed to open parquet file: %v", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 4)
	if err != nil {
		log.Fatalf("Failed to create parquet reader: %v", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	fmt.Printf("Total rows: %d\n", numRows)

	batchSize := 1000
	totalAccounts := 0
	totalStorage := 0
	startTime := time.Now()

	for i := 0; i < numRows; i += batchSize {
		toRead := batchSize
		if i+toRead > numRows {
			toRead = numRows - i
		}

		rawRows, err := pr.ReadByNumber(toRead)
		if err != nil {
			log.Printf("Warning: failed to read batch at %d: %v", i, err)
			break
		}
		if len(rawRows) == 0 {
			break
		}

		// batches are keyed by block, group as we go
		accounts := make(map[uint64][]storage.AccountRow)
		slots := make(map[uint64][]storage.StorageRow)

		for _, rawRow := range rawRows {
			pRow, ok := rawRow.(ParquetRow)
			if !ok {
				pRowPtr, ok := rawRow.(*ParquetRow)
				if !ok {
					continue
				}
				pRow = *pRowPtr
			}

			blockNum := uint64(pRow.BlockNumber)
			addr := common.HexToAddress(pRow.Address)

			if pRow.Slot != "" {
				slots[blockNum] = append(slots[blockNum], storage.StorageRow{
					Address: addr,
					Slot:    common.HexToHash(pRow.Slot),
					Value:   common.HexToHash(pRow.Value),
				})
				continue
			}

			balance := new(big.Int)
			if pRow.Balance != "" {
				if _, ok := balance.SetString(pRow.Balance, 10); !ok {
					continue
				}
			}
			var code []byte
			if pRow.Code != "" {
				code, err = hex.DecodeString(strings.TrimPrefix(pRow.Code, "0x"))
				if err != nil {
					continue
				}
			}
			accounts[blockNum] = append(accounts[blockNum], storage.AccountRow{
				Address: addr,
				Balance: balance,
				Nonce:   uint64(pRow.Nonce),
				Code:    code,
			})
		}

		for blockNum, rows := range accounts {
			if err := db.BatchSetAccounts(blockNum, rows); err != nil {
				log.Fatalf("Failed to write account batch: %v", err)
			}
			totalAccounts += len(rows)
		}
		for blockNum, rows := range slots {
			if err := db.BatchSetStorage(blockNum, rows); err != nil {
				log.Fatalf("Failed to write storage batch: %v", err)
			}
			totalStorage += len(rows)
		}

		if (i/batchSize)%10 == 0 {
			elapsed := time.Since(startTime)
			rate := float64(i+len(rawRows)) / elapsed.Seconds()
			fmt.Printf("  Progress: %d/%d rows (%.0f rows/sec)\n", i+len(rawRows), numRows, rate)
		}
	}

	elapsed := time.Since(startTime)
	fmt.Printf("\nIngestion complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Accounts: %d\n", totalAccounts)
	fmt.Printf("   Storage entries: %d\n", totalStorage)

	stats, err := db.GetStats()
	if err == nil {
		fmt.Printf("\nDatabase stats:\n")
		for k, v := range stats {
			fmt.Printf("   %s: %d\n", k, v)
		}
	}
}
