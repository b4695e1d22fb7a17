package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and exposes the calls the monitor needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient dials the node at rpcURL. A websocket URL is required for live
// subscriptions; http works for backfill-only use.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// CodeAt returns the deployed bytecode at addr in the latest block.
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return c.ethClient.CodeAt(ctx, addr, nil)
}

// FilterLogs returns logs in the given range for one address and optional topic0
// filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	address common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// SubscribeLogs opens a live log subscription for one address and optional
// topic0 filters. Matching logs are delivered on ch until the subscription
// errors or is unsubscribed.
func (c *Client) SubscribeLogs(
	ctx context.Context,
	address common.Address,
	topic0 []common.Hash,
	ch chan<- types.Log,
) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{address},
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.SubscribeFilterLogs(ctx, query, ch)
}
