package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ranklabs/txrank/service/metrics"
)

// Publisher defines the interface for publishing score events to NATS.
type Publisher interface {
	// PublishScore publishes a single score event to JetStream.
	// The event is published to the subject "scores.{slot}".
	PublishScore(ctx context.Context, event *ScoreEvent) error

	// PublishScoreBatch publishes multiple score events.
	// This is more efficient than calling PublishScore multiple times.
	PublishScoreBatch(ctx context.Context, events []*ScoreEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes score events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for scores.
	StreamName = "SCORES"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "scores.*"

	// StreamRetention is how long messages are retained (7 days by default).
	// Priority details lose scheduling value quickly, so the window is short.
	StreamRetention = 7 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
// If m is nil, no metrics will be recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("txrank-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Transaction priority scores derived from finalized blocks",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	_, err = p.js.CreateStream(ctx, streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishScore publishes a single score event.
func (p *JetStreamPublisher) PublishScore(ctx context.Context, event *ScoreEvent) error {
	subject := fmt.Sprintf("scores.%d", event.Slot)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal score event: %w", err)
	}

	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(status)
	}
	if err != nil {
		return fmt.Errorf("failed to publish score: %w", err)
	}

	p.logger.Debug("published score event",
		"subject", subject,
		"signature", event.Signature,
		"priority", event.Priority,
	)

	return nil
}

// PublishScoreBatch publishes multiple score events efficiently.
func (p *JetStreamPublisher) PublishScoreBatch(ctx context.Context, events []*ScoreEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := p.PublishScore(ctx, event); err != nil {
			// Log error but continue with other events; don't fail the
			// entire batch on one error.
			p.logger.Error("failed to publish score in batch",
				"signature", event.Signature,
				"slot", event.Slot,
				"error", err,
			)
			continue
		}
	}

	p.logger.Debug("published score batch",
		"count", len(events),
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
