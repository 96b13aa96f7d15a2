package nats

import (
	"time"

	"github.com/ranklabs/txrank/service/db"
)

// ScoreEvent represents a scored transaction published to NATS.
// This is published to the subject "scores.{slot}" in JetStream.
type ScoreEvent struct {
	// Transaction identifiers
	Signature string `json:"signature"`
	Slot      int64  `json:"slot"`

	// Priority details derived from the transaction's compute budget
	// directives. Unresolved means the directives were malformed and
	// the transaction carries no usable priority signal.
	Priority         int64 `json:"priority"`
	ComputeUnitLimit int64 `json:"compute_unit_limit"`
	Unresolved       bool  `json:"unresolved,omitempty"`

	// Transaction details
	Fee int64 `json:"fee"`

	// Timing information
	BlockTime *time.Time `json:"block_time,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromDBScore converts a stored score to a ScoreEvent for publishing.
func FromDBScore(score *db.Score) *ScoreEvent {
	return &ScoreEvent{
		Signature:        score.Signature,
		Slot:             score.Slot,
		Priority:         score.Priority,
		ComputeUnitLimit: score.ComputeUnitLimit,
		Unresolved:       score.Unresolved,
		Fee:              score.Fee,
		BlockTime:        score.BlockTime,
		PublishedAt:      time.Now().UTC(),
	}
}
