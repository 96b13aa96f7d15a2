package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// ScoreBlockWorkflow is the Temporal workflow that scores the transactions of
// a finalized Solana block. It is triggered by a Temporal schedule at a
// configured interval (e.g., every 30 seconds).
//
// The workflow performs these steps:
// 1. Resolve the slot to score (GetLatestSlot activity when none was given)
// 2. Fetch the block and derive priority details (FetchBlockScores activity)
// 3. Persist the scores and publish them to NATS (WriteScores activity)
func ScoreBlockWorkflow(ctx workflow.Context, input ScoreBlockInput) (*ScoreBlockResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ScoreBlockWorkflow started", "slot", input.Slot)

	result := &ScoreBlockResult{
		Slot:      input.Slot,
		ScoreTime: workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 300 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Resolve the slot if the schedule didn't pin one.
	if result.Slot == 0 {
		var slotResult *GetLatestSlotResult
		err := workflow.ExecuteActivity(ctx, a.GetLatestSlot).Get(ctx, &slotResult)
		if err != nil {
			errMsg := fmt.Sprintf("failed to get latest slot: %v", err)
			result.Error = &errMsg
			return result, fmt.Errorf("failed to get latest slot: %w", err)
		}
		result.Slot = slotResult.Slot
		logger.Info("resolved latest finalized slot", "slot", result.Slot)
	}

	// Step 2: Fetch the block and score its transactions.
	var fetchResult *FetchBlockScoresResult
	err := workflow.ExecuteActivity(ctx, a.FetchBlockScores, FetchBlockScoresInput{Slot: result.Slot}).Get(ctx, &fetchResult)
	if err != nil {
		logger.Error("failed to fetch block scores", "slot", result.Slot, "error", err)
		errMsg := fmt.Sprintf("failed to fetch block scores: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to fetch block scores: %w", err)
	}

	result.TransactionCount = len(fetchResult.Transactions)
	for _, txn := range fetchResult.Transactions {
		if txn.Unresolved {
			result.Unresolved++
		}
	}

	logger.Info("fetched block scores successfully",
		"slot", result.Slot,
		"transaction_count", result.TransactionCount,
		"unresolved", result.Unresolved,
	)

	// If the block was empty, we're done.
	if result.TransactionCount == 0 {
		logger.Info("no transactions in block", "slot", result.Slot)
		return result, nil
	}

	// Step 3: Write scores to the database and publish them.
	writeInput := WriteScoresInput{
		Slot:         result.Slot,
		Transactions: fetchResult.Transactions,
	}

	var writeResult *WriteScoresResult
	err = workflow.ExecuteActivity(ctx, a.WriteScores, writeInput).Get(ctx, &writeResult)
	if err != nil {
		logger.Error("failed to write scores",
			"slot", result.Slot,
			"error", err,
		)
		errMsg := fmt.Sprintf("failed to write scores: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to write scores: %w", err)
	}

	result.Written = writeResult.Written
	result.Skipped = writeResult.Skipped

	logger.Info("ScoreBlockWorkflow completed successfully",
		"slot", result.Slot,
		"transaction_count", result.TransactionCount,
		"written", result.Written,
		"skipped", result.Skipped,
	)

	return result, nil
}
