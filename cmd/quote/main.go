package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/helixbox/tycho-simulation/internal/eth"
	"github.com/helixbox/tycho-simulation/internal/protocol"
	"github.com/helixbox/tycho-simulation/internal/simulator"
	"github.com/helixbox/tycho-simulation/internal/storage"
)

func main() {
	blockNum := flag.Int64("block", 0, "Block number to probe at")
	poolAddr := flag.String("pool", "", "Pool contract address")
	sellSym := flag.String("sell", "WETH", "Sell token symbol")
	buySym := flag.String("buy", "USDC", "Buy token symbol")
	amountStr := flag.String("amount", "1.0", "Human amount to sell")
	kindStr := flag.String("kind", "constant_product", "Pool kind (constant_product|stable_swap)")
	cachePath := flag.String("cache", "", "Optional sqlite cache for detected slots")
	flag.Parse()

	if *blockNum == 0 || *poolAddr == "" {
		log.Fatal("Usage: quote --block <number> --pool <address> [--sell WETH --buy USDC --amount 1.0]")
	}

	sellToken, ok := eth.KnownTokens[*sellSym]
	if !ok {
		log.Fatalf("unknown sell token %q", *sellSym)
	}
	buyToken, ok := eth.KnownTokens[*buySym]
	if !ok {
		log.Fatalf("unknown buy token %q", *buySym)
	}

	amount, _, err := big.ParseFloat(*amountStr, 10, 256, big.ToNearestEven)
	if err != nil {
		log.Fatalf("bad amount %q: %v", *amountStr, err)
	}

	kind, err := protocol.PoolKindFromString(*kindStr)
	if err != nil {
		log.Fatal(err)
	}

	client, err := eth.NewClient()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	fmt.Printf("Fetching block %d header...\n", *blockNum)
	block, err := client.BlockHeader(ctx, big.NewInt(*blockNum))
	if err != nil {
		log.Fatal(err)
	}

	// journal faults state in lazily from the node at the probe block
	reader := eth.NewStateReader(client, big.NewInt(*blockNum))
	journal := simulator.NewJournalWithLoader(reader)
	engine := simulator.NewEngine(journal, simulator.NewEVMExecutor())

	pool, err := protocol.NewPool(
		*poolAddr,
		common.HexToAddress(*poolAddr),
		[]*eth.Token{sellToken, buyToken},
		block,
		nil,
		kind,
		engine,
	)
	if err != nil {
		log.Fatal(err)
	}

	if *cachePath != "" {
		cache, err := storage.NewCacheDB(*cachePath)
		if err != nil {
			log.Fatal(err)
		}
		defer cache.Close()

		detector := protocol.NewSlotDetector(engine, protocol.WithSlotStore(cache))
		slots, err := detector.TokenSlotsFor(sellToken.Address, block)
		if err != nil {
			log.Printf("Warning: slot detection failed: %v", err)
		} else {
			fmt.Printf("Detected %s slots: balance=%s allowance=%s\n", sellToken.Symbol, slots.Balance, slots.Allowance)
		}
	}

	fmt.Printf("Quoting %s %s -> %s on pool %s...\n", amount.Text('f', 6), sellToken.Symbol, buyToken.Symbol, *poolAddr)
	result, err := pool.GetAmountOut(sellToken, buyToken, amount)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n=== Quote ===\n")
	fmt.Printf("Amount out: %s %s\n", result.Amount.Text('f', buyToken.Decimals), buyToken.Symbol)
	fmt.Printf("Gas used: %d\n", result.GasUsed)
	fmt.Printf("New pool %s balance: %s\n", sellToken.Symbol, result.Pool.State.Balance(sellToken.Address).Text('f', 6))
	fmt.Printf("New pool %s balance: %s\n", buyToken.Symbol, result.Pool.State.Balance(buyToken.Address).Text('f', 6))

	// the original pool is untouched, so quoting again reproduces the result
	again, err := pool.GetAmountOut(sellToken, buyToken, amount)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Repeat probe amount out: %s %s\n", again.Amount.Text('f', buyToken.Decimals), buyToken.Symbol)
}
