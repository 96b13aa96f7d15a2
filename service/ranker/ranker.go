// Package ranker maintains a bounded, priority-ordered view of recently
// scored transactions for block scheduling.
package ranker

import (
	"container/heap"
	"log/slog"
	"sort"
	"sync"

	"github.com/ranklabs/txrank/service/metrics"
	"github.com/ranklabs/txrank/service/solana"
)

// Entry is one ranked transaction.
type Entry struct {
	Signature        string `json:"signature"`
	Slot             uint64 `json:"slot"`
	Priority         uint64 `json:"priority"`
	ComputeUnitLimit uint64 `json:"compute_unit_limit"`
	Unresolved       bool   `json:"unresolved,omitempty"`
}

// Ranker holds up to capacity entries ordered by priority. When full, adding
// a higher-priority entry evicts the lowest-priority one; lower-priority
// entries are dropped. Safe for concurrent use.
type Ranker struct {
	mu       sync.Mutex
	capacity int
	entries  entryHeap // min-heap on priority, so the root is the eviction candidate
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Ranker with the given capacity.
// If m is nil, no metrics will be recorded.
func New(capacity int, m *metrics.Metrics, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		capacity: capacity,
		entries:  make(entryHeap, 0, capacity),
		metrics:  m,
		logger:   logger,
	}
}

// Add inserts a scored transaction into the ranking. Unresolved transactions
// carry zero priority and so are the first to be evicted under pressure.
func (r *Ranker) Add(txn *solana.ScoredTransaction) {
	entry := Entry{
		Signature:        txn.Signature,
		Slot:             txn.Slot,
		Priority:         txn.Priority,
		ComputeUnitLimit: txn.ComputeUnitLimit,
		Unresolved:       txn.Unresolved,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.capacity {
		if r.entries[0].Priority >= entry.Priority {
			// Full and nothing cheaper to evict.
			return
		}
		evicted := r.entries[0]
		r.entries[0] = entry
		heap.Fix(&r.entries, 0)
		r.logger.Debug("evicted lowest-priority entry",
			"evicted_signature", evicted.Signature,
			"evicted_priority", evicted.Priority,
		)
	} else {
		heap.Push(&r.entries, entry)
	}

	if r.metrics != nil {
		r.metrics.SetRankingSize(len(r.entries))
	}
}

// Len returns the number of entries currently held.
func (r *Ranker) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Rankings returns up to limit entries in descending priority order.
// A non-positive limit returns all entries.
func (r *Ranker) Rankings(limit int) []Entry {
	r.mu.Lock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// SelectBlock greedily picks the highest-priority entries whose declared
// compute unit limits fit within maxComputeUnits. Entries that do not fit are
// skipped, not truncated. The ranking itself is left untouched; selection is
// a read-only scheduling decision.
func (r *Ranker) SelectBlock(maxComputeUnits uint64) []Entry {
	ranked := r.Rankings(0)

	selected := make([]Entry, 0, len(ranked))
	var used uint64
	for _, entry := range ranked {
		if used+entry.ComputeUnitLimit > maxComputeUnits {
			continue
		}
		selected = append(selected, entry)
		used += entry.ComputeUnitLimit
	}
	return selected
}

// entryHeap is a min-heap of entries keyed on priority.
type entryHeap []Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
