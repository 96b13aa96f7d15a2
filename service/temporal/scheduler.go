package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedule that drives block scoring.
// The schedule triggers the ScoreBlockWorkflow at a fixed interval.
type Scheduler interface {
	// CreateScoreSchedule creates the schedule that scores the latest
	// finalized block on the given interval.
	CreateScoreSchedule(ctx context.Context, interval time.Duration) error

	// UpsertScoreSchedule creates the schedule, or updates its interval
	// if it already exists.
	UpsertScoreSchedule(ctx context.Context, interval time.Duration) error

	// DeleteScoreSchedule deletes the schedule. This stops block scoring.
	DeleteScoreSchedule(ctx context.Context) error
}
