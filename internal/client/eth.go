package client

import (
	"context"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/multicall"
)

// GetLogs cross-checks eth_getLogs across all providers and requires
// full equality. Log entries can trigger minting downstream, so a
// single divergent provider must surface as a disagreement, never be
// papered over.
func (c *Client) GetLogs(ctx context.Context, q ethrpc.FilterQuery) ([]ethrpc.LogEntry, error) {
	// Most queries return zero events.
	results := parallelCall[[]ethrpc.LogEntry](ctx, c, "eth_getLogs", []ethrpc.FilterQuery{q}, 100)
	return multicall.ReduceWithEquality(results, ethrpc.LogsEqual)
}

// GetBlockByNumber cross-checks eth_getBlockByNumber (without full
// transactions) across all providers and requires full equality.
func (c *Client) GetBlockByNumber(ctx context.Context, spec ethrpc.BlockSpec) (ethrpc.Block, error) {
	sizeHint := ethrpc.ResponseSizeEstimate(24 * 1024)
	if c.network == ethrpc.NetworkSepolia {
		sizeHint = 12 * 1024
	}
	results := parallelCall[ethrpc.Block](ctx, c, "eth_getBlockByNumber", []any{spec, false}, sizeHint)
	return multicall.ReduceWithEquality(results, func(a, b ethrpc.Block) bool { return a == b })
}

// GetTransactionReceipt cross-checks eth_getTransactionReceipt across
// all providers and requires full equality. nil means the transaction
// is not yet mined; providers must agree on that too.
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash ethrpc.Hash) (*ethrpc.TransactionReceipt, error) {
	results := parallelCall[*ethrpc.TransactionReceipt](ctx, c, "eth_getTransactionReceipt", []ethrpc.Hash{txHash}, 700)
	return multicall.ReduceWithEquality(results, ethrpc.ReceiptsEqual)
}

// FeeHistory cross-checks eth_feeHistory with a strict majority keyed
// on the oldest block: honest providers may race on the newest blocks
// but a plurality must agree on the same window.
func (c *Client) FeeHistory(ctx context.Context, params ethrpc.FeeHistoryParams) (ethrpc.FeeHistory, error) {
	// A typical response is slightly above 300 bytes.
	results := parallelCall[ethrpc.FeeHistory](ctx, c, "eth_feeHistory", params, 512)
	return multicall.ReduceWithStrictMajorityByKey(results,
		func(f ethrpc.FeeHistory) ethrpc.Quantity { return f.OldestBlock },
		ethrpc.FeeHistory.Equal,
	)
}

// SendRawTransaction submits a signed transaction through the first
// provider that accepts it. A successful reply is small, and most
// calls error when the same transaction was already submitted through
// another provider, so sequential dispatch suffices here.
func (c *Client) SendRawTransaction(ctx context.Context, rawTxHex string) (ethrpc.Hash, error) {
	return sequentialCallUntilOK[ethrpc.Hash](ctx, c, "eth_sendRawTransaction", []string{rawTxHex}, 256)
}

// GetTransactionCount fans eth_getTransactionCount out to every
// provider and returns the raw aggregate; callers choose the reduction
// that matches their trust requirement.
func (c *Client) GetTransactionCount(ctx context.Context, address ethrpc.Address, block ethrpc.BlockSpec) multicall.Results[ethrpc.Quantity] {
	return parallelCall[ethrpc.Quantity](ctx, c, "eth_getTransactionCount", []any{address, block}, 50)
}

// FinalizedTransactionCount requires every provider to agree on the
// nonce at the finalized block.
func (c *Client) FinalizedTransactionCount(ctx context.Context, address ethrpc.Address) (ethrpc.Quantity, error) {
	results := c.GetTransactionCount(ctx, address, ethrpc.BlockByTag("finalized"))
	return multicall.ReduceWithEquality(results, func(a, b ethrpc.Quantity) bool { return a == b })
}

// LatestTransactionCount takes the smallest nonce any provider reports
// at the latest block: providers legitimately lag each other at the
// chain head, and the most conservative observation is the safe one.
func (c *Client) LatestTransactionCount(ctx context.Context, address ethrpc.Address) (ethrpc.Quantity, error) {
	results := c.GetTransactionCount(ctx, address, ethrpc.BlockByTag("latest"))
	return multicall.ReduceWithMinByKey(results, func(q ethrpc.Quantity) ethrpc.Quantity { return q })
}
