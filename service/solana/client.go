package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ranklabs/txrank/service/metrics"
	"github.com/ranklabs/txrank/service/prioritization"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)

	GetBlockWithOpts(
		ctx context.Context,
		slot uint64,
		opts *rpc.GetBlockOpts,
	) (*rpc.GetBlockResult, error)
}

// Client fetches blocks and scores their transactions for scheduling.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc     RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Solana client.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:     rpcClient,
		logger:  logger,
		metrics: m,
	}
}

// GetLatestSlot returns the latest finalized slot.
func (c *Client) GetLatestSlot(ctx context.Context) (uint64, error) {
	start := time.Now()
	slot, err := c.rpc.GetSlot(ctx, rpc.CommitmentFinalized)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetSlot", status, duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get latest slot", "error", err)
		return 0, fmt.Errorf("failed to get latest slot: %w", err)
	}
	return slot, nil
}

// GetBlockScores fetches the block at the given slot and derives priority
// details for every transaction in it. Transactions whose compute budget
// directives are malformed are kept with Unresolved=true and zero priority so
// callers can apply their lowest-priority fallback.
func (c *Client) GetBlockScores(ctx context.Context, slot uint64) ([]*ScoredTransaction, error) {
	maxVersion := uint64(0)
	includeRewards := false
	opts := &rpc.GetBlockOpts{
		Encoding:                       solana.EncodingBase64,
		TransactionDetails:             rpc.TransactionDetailsFull,
		Rewards:                        &includeRewards,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	start := time.Now()
	block, err := c.rpc.GetBlockWithOpts(ctx, slot, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetBlock", status, duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get block", "slot", slot, "error", err)
		return nil, fmt.Errorf("failed to get block %d: %w", slot, err)
	}

	var blockTime time.Time
	if block.BlockTime != nil {
		blockTime = block.BlockTime.Time()
	}

	scoreStart := time.Now()
	scored := make([]*ScoredTransaction, 0, len(block.Transactions))
	for _, twm := range block.Transactions {
		tx, err := twm.GetTransaction()
		if err != nil {
			// Transaction bytes we cannot decode carry no usable signal;
			// nothing to rank, skip it.
			c.logger.WarnContext(ctx, "failed to decode block transaction",
				"slot", slot,
				"error", err,
			)
			continue
		}

		var fee uint64
		if twm.Meta != nil {
			fee = twm.Meta.Fee
		}

		scored = append(scored, c.scoreTransaction(tx, slot, blockTime, fee))
	}

	if c.metrics != nil {
		c.metrics.RecordBlockScoreDuration("rpc", time.Since(scoreStart).Seconds())
	}

	c.logger.InfoContext(ctx, "scored block transactions",
		"slot", slot,
		"count", len(scored),
	)

	return scored, nil
}

// scoreTransaction derives priority details for one decoded transaction.
func (c *Client) scoreTransaction(tx *solana.Transaction, slot uint64, blockTime time.Time, fee uint64) *ScoredTransaction {
	txn := &ScoredTransaction{
		Slot:      slot,
		BlockTime: blockTime,
		Fee:       fee,
	}
	if len(tx.Signatures) > 0 {
		txn.Signature = tx.Signatures[0].String()
	}

	details, ok := prioritization.NewSanitizedVersionedTransaction(tx).GetTransactionPriorityDetails(false)
	if !ok {
		txn.Unresolved = true
		if c.metrics != nil {
			c.metrics.RecordTransactionScored("unresolved")
		}
		return txn
	}

	txn.Priority = details.Priority
	txn.ComputeUnitLimit = details.ComputeUnitLimit
	if c.metrics != nil {
		c.metrics.RecordTransactionScored("resolved")
	}
	return txn
}
