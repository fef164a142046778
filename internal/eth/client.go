package eth

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
)

type Client struct {
	rpc *ethclient.Client
}

func NewClient() (*Client, error) {
	godotenv.Load()
	url := os.Getenv("ETH_RPC_URL")

	if url == "" {
		return nil, fmt.Errorf("ETH_RPC_URL not set in .env")
	}

	rpc, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}

	return &Client{rpc: rpc}, nil
}

func (c *Client) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return c.rpc.BlockByNumber(ctx, number)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, account, blockNumber)
}

func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.rpc.CodeAt(ctx, account, blockNumber)
}

func (c *Client) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	return c.rpc.StorageAt(ctx, account, key, blockNumber)
}

func (c *Client) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return c.rpc.NonceAt(ctx, account, blockNumber)
}

// BlockHeader fetches the (number, hash, time) context tag for a block.
func (c *Client) BlockHeader(ctx context.Context, number *big.Int) (Block, error) {
	block, err := c.rpc.BlockByNumber(ctx, number)
	if err != nil {
		return Block{}, fmt.Errorf("failed to fetch block %s: %w", number, err)
	}
	return Block{
		Number: block.NumberU64(),
		Hash:   block.Hash(),
		Time:   block.Time(),
	}, nil
}

// StateReader binds a client to one block so fetches need no context or block
// arguments. It satisfies the journal's remote loader capability.
type StateReader struct {
	client  *Client
	block   *big.Int
	timeout time.Duration
}

func NewStateReader(client *Client, blockNumber *big.Int) *StateReader {
	return &StateReader{
		client:  client,
		block:   blockNumber,
		timeout: 10 * time.Second,
	}
}

func (r *StateReader) Balance(addr common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.BalanceAt(ctx, addr, r.block)
}

func (r *StateReader) Nonce(addr common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.NonceAt(ctx, addr, r.block)
}

func (r *StateReader) Code(addr common.Address) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.CodeAt(ctx, addr, r.block)
}

func (r *StateReader) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	data, err := r.client.StorageAt(ctx, addr, slot, r.block)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}
