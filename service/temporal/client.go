package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// CreateScoreSchedule creates the Temporal schedule that triggers the
// ScoreBlockWorkflow at the given interval.
func (c *Client) CreateScoreSchedule(ctx context.Context, interval time.Duration) error {
	id := scoreScheduleID()

	c.logger.Debug("creating score schedule",
		"schedule_id", id,
		"interval", interval,
	)

	scheduleSpec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{
			{
				Every: interval,
			},
		},
	}

	// Slot zero means "latest finalized"; the workflow resolves it.
	workflowAction := client.ScheduleWorkflowAction{
		ID:        "score-block",
		Workflow:  "ScoreBlockWorkflow",
		TaskQueue: c.taskQueue,
		Args:      []interface{}{ScoreBlockInput{}},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:     id,
		Spec:   scheduleSpec,
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"created_by": "txrank",
		},
	})

	if err != nil {
		c.logger.Error("failed to create schedule",
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("score schedule created",
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// UpsertScoreSchedule creates or updates the block-scoring schedule.
// If the schedule already exists, it updates the interval. Otherwise, it
// creates a new schedule.
func (c *Client) UpsertScoreSchedule(ctx context.Context, interval time.Duration) error {
	id := scoreScheduleID()

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	desc, err := handle.Describe(ctx)
	if err != nil {
		// Schedule doesn't exist or error getting it - create new one
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.CreateScoreSchedule(ctx, interval)
	}

	c.logger.Debug("schedule exists, updating interval",
		"schedule_id", id,
		"old_interval", desc.Schedule.Spec.Intervals[0].Every,
		"new_interval", interval,
	)

	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})

	if err != nil {
		c.logger.Error("failed to update schedule",
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("score schedule updated",
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// DeleteScoreSchedule deletes the block-scoring schedule.
func (c *Client) DeleteScoreSchedule(ctx context.Context) error {
	id := scoreScheduleID()

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("score schedule deleted", "schedule_id", id)
	return nil
}

// TriggerScoreWorkflow starts a one-off ScoreBlockWorkflow for the given slot
// outside the schedule. Slot zero scores the latest finalized block.
func (c *Client) TriggerScoreWorkflow(ctx context.Context, slot uint64) (*ScoreBlockResult, error) {
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("score-block-%d-%d", slot, time.Now().UnixNano()),
		TaskQueue: c.taskQueue,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, "ScoreBlockWorkflow", ScoreBlockInput{Slot: slot})
	if err != nil {
		return nil, fmt.Errorf("failed to start score workflow: %w", err)
	}

	var result ScoreBlockResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("score workflow failed: %w", err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// scoreScheduleID returns the Temporal schedule ID for block scoring.
// There is a single scoring schedule per deployment.
func scoreScheduleID() string {
	return "score-blocks"
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
