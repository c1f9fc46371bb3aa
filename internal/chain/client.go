package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and exposes the calls the watcher needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient dials the node at rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(rpcClient), nil
}

// NewClientFromRPC wraps an already connected RPC client.
func NewClientFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// NewLogFilter installs a node-side log filter (eth_newFilter) and returns its id.
// A nil FromBlock installs the filter at "latest".
func (c *Client) NewLogFilter(ctx context.Context, query ethereum.FilterQuery) (string, error) {
	var id string
	if err := c.rpcClient.CallContext(ctx, &id, "eth_newFilter", filterArg(query)); err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("node returned empty filter id")
	}
	return id, nil
}

// LogFilterChanges returns the logs matched by the filter since the previous call.
func (c *Client) LogFilterChanges(ctx context.Context, id string) ([]types.Log, error) {
	var logs []types.Log
	if err := c.rpcClient.CallContext(ctx, &logs, "eth_getFilterChanges", id); err != nil {
		return nil, err
	}
	return logs, nil
}

// UninstallLogFilter removes the filter from the node.
func (c *Client) UninstallLogFilter(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.rpcClient.CallContext(ctx, &ok, "eth_uninstallFilter", id); err != nil {
		return false, err
	}
	return ok, nil
}

func filterArg(q ethereum.FilterQuery) map[string]interface{} {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "latest"
	} else {
		arg["fromBlock"] = hexutil.EncodeBig(q.FromBlock)
	}
	if q.ToBlock != nil {
		arg["toBlock"] = hexutil.EncodeBig(q.ToBlock)
	}
	return arg
}
