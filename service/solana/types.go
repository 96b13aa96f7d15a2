package solana

import (
	"time"
)

// ScoredTransaction is a block transaction annotated with its scheduling
// priority details. This is our domain model, independent of the RPC response
// format.
type ScoredTransaction struct {
	Signature        string    `json:"signature"`
	Slot             uint64    `json:"slot"`
	BlockTime        time.Time `json:"block_time"`
	Priority         uint64    `json:"priority"`
	ComputeUnitLimit uint64    `json:"compute_unit_limit"`
	Fee              uint64    `json:"fee"`

	// Unresolved is true when the transaction's compute budget directives
	// were malformed and no priority could be derived. Such transactions
	// keep zero priority so the scheduler ranks them last.
	Unresolved bool `json:"unresolved,omitempty"`
}
