package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ranklabs/txrank/service/db"
	"github.com/ranklabs/txrank/service/metrics"
	natspkg "github.com/ranklabs/txrank/service/nats"
	"github.com/ranklabs/txrank/service/solana"
)

// ScoreBlockInput contains the input parameters for scoring a block.
type ScoreBlockInput struct {
	// Slot is the slot to score. Zero means "score the latest finalized
	// slot", resolved by the GetLatestSlot activity.
	Slot uint64 `json:"slot"`
}

// ScoreBlockResult contains the result of scoring a block.
type ScoreBlockResult struct {
	Slot             uint64    `json:"slot"`
	TransactionCount int       `json:"transaction_count"`
	Written          int       `json:"written"`
	Skipped          int       `json:"skipped"`
	Unresolved       int       `json:"unresolved"`
	ScoreTime        time.Time `json:"score_time"`
	Error            *string   `json:"error,omitempty"`
}

// GetLatestSlotResult contains the result of the GetLatestSlot activity.
type GetLatestSlotResult struct {
	Slot uint64 `json:"slot"`
}

// FetchBlockScoresInput contains parameters for the FetchBlockScores activity.
type FetchBlockScoresInput struct {
	Slot uint64 `json:"slot"`
}

// FetchBlockScoresResult contains the result of fetching and scoring a block.
type FetchBlockScoresResult struct {
	Transactions []*solana.ScoredTransaction `json:"transactions"`
}

// WriteScoresInput contains parameters for the WriteScores activity.
type WriteScoresInput struct {
	Slot         uint64                      `json:"slot"`
	Transactions []*solana.ScoredTransaction `json:"transactions"`
}

// WriteScoresResult contains the result of writing scores.
type WriteScoresResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"` // Already existed in DB
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	CreateScore(context.Context, db.CreateScoreParams) (*db.Score, error)
}

// SolanaClientInterface defines the Solana operations needed by activities.
// This allows for easy mocking in tests.
type SolanaClientInterface interface {
	GetLatestSlot(ctx context.Context) (uint64, error)
	GetBlockScores(ctx context.Context, slot uint64) ([]*solana.ScoredTransaction, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
// This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishScore(ctx context.Context, event *natspkg.ScoreEvent) error
	PublishScoreBatch(ctx context.Context, events []*natspkg.ScoreEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	store        StoreInterface
	solanaClient SolanaClientInterface
	publisher    PublisherInterface
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	store StoreInterface,
	solanaClient SolanaClientInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:        store,
		solanaClient: solanaClient,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
	}
}

// GetLatestSlot resolves the latest finalized slot from the Solana RPC.
func (a *Activities) GetLatestSlot(ctx context.Context) (*GetLatestSlotResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("GetLatestSlot", time.Since(start).Seconds())
		}
	}()

	slot, err := a.solanaClient.GetLatestSlot(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to get latest slot", "error", err)
		return nil, fmt.Errorf("failed to get latest slot: %w", err)
	}

	a.logger.DebugContext(ctx, "resolved latest finalized slot", "slot", slot)
	return &GetLatestSlotResult{Slot: slot}, nil
}

// FetchBlockScores fetches the block at the given slot and derives priority
// details for each of its transactions.
func (a *Activities) FetchBlockScores(ctx context.Context, input FetchBlockScoresInput) (*FetchBlockScoresResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("FetchBlockScores", time.Since(start).Seconds())
		}
	}()

	a.logger.DebugContext(ctx, "fetching block scores", "slot", input.Slot)

	transactions, err := a.solanaClient.GetBlockScores(ctx, input.Slot)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch block scores",
			"slot", input.Slot,
			"error", err,
		)
		return nil, fmt.Errorf("failed to fetch block scores: %w", err)
	}

	a.logger.InfoContext(ctx, "fetched block scores successfully",
		"slot", input.Slot,
		"count", len(transactions),
	)

	return &FetchBlockScoresResult{Transactions: transactions}, nil
}

// WriteScores writes scored transactions to the database.
// It handles duplicate signatures gracefully by skipping them.
// After writing, it publishes score events to NATS for real-time subscribers.
func (a *Activities) WriteScores(ctx context.Context, input WriteScoresInput) (*WriteScoresResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("WriteScores", time.Since(start).Seconds())
		}
	}()

	a.logger.DebugContext(ctx, "writing scores",
		"slot", input.Slot,
		"count", len(input.Transactions),
	)

	written := 0
	skipped := 0
	var writtenScores []*db.Score

	for _, txn := range input.Transactions {
		params := db.CreateScoreParams{
			Signature:        txn.Signature,
			Slot:             int64(txn.Slot),
			Priority:         int64(txn.Priority),
			ComputeUnitLimit: int64(txn.ComputeUnitLimit),
			Fee:              int64(txn.Fee),
			Unresolved:       txn.Unresolved,
		}
		if !txn.BlockTime.IsZero() {
			blockTime := txn.BlockTime
			params.BlockTime = &blockTime
		}

		score, err := a.store.CreateScore(ctx, params)
		if err != nil {
			if db.IsDuplicateKeyError(err) {
				a.logger.DebugContext(ctx, "score already exists, skipping",
					"signature", txn.Signature,
				)
				skipped++
				if a.metrics != nil {
					a.metrics.RecordDBOperation("create_score", "duplicate")
				}
				continue
			}

			a.logger.ErrorContext(ctx, "failed to write score",
				"signature", txn.Signature,
				"error", err,
			)
			if a.metrics != nil {
				a.metrics.RecordDBOperation("create_score", "error")
			}
			return nil, fmt.Errorf("failed to write score %s: %w", txn.Signature, err)
		}

		written++
		writtenScores = append(writtenScores, score)
		if a.metrics != nil {
			a.metrics.RecordDBOperation("create_score", "success")
		}
	}

	a.logger.InfoContext(ctx, "wrote scores to database",
		"slot", input.Slot,
		"written", written,
		"skipped", skipped,
		"total", len(input.Transactions),
	)

	// Publish newly written scores to NATS. Scores are persisted either way;
	// the publish is best-effort.
	if len(writtenScores) > 0 && a.publisher != nil {
		events := make([]*natspkg.ScoreEvent, 0, len(writtenScores))
		for _, score := range writtenScores {
			events = append(events, natspkg.FromDBScore(score))
		}

		if err := a.publisher.PublishScoreBatch(ctx, events); err != nil {
			a.logger.ErrorContext(ctx, "failed to publish scores to NATS",
				"slot", input.Slot,
				"count", len(events),
				"error", err,
			)
		} else {
			a.logger.DebugContext(ctx, "published scores to NATS",
				"slot", input.Slot,
				"count", len(events),
			)
		}
	}

	return &WriteScoresResult{
		Written: written,
		Skipped: skipped,
	}, nil
}
