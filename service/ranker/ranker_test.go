package ranker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranklabs/txrank/service/solana"
)

func scoredTxn(sig string, priority, limit uint64) *solana.ScoredTransaction {
	return &solana.ScoredTransaction{
		Signature:        sig,
		Slot:             1000,
		Priority:         priority,
		ComputeUnitLimit: limit,
	}
}

func TestRankings_DescendingPriority(t *testing.T) {
	r := New(10, nil, nil)
	r.Add(scoredTxn("low", 1, 200_000))
	r.Add(scoredTxn("high", 100, 200_000))
	r.Add(scoredTxn("mid", 50, 200_000))

	rankings := r.Rankings(0)
	require.Len(t, rankings, 3)
	assert.Equal(t, "high", rankings[0].Signature)
	assert.Equal(t, "mid", rankings[1].Signature)
	assert.Equal(t, "low", rankings[2].Signature)
}

func TestRankings_Limit(t *testing.T) {
	r := New(10, nil, nil)
	for i := range 5 {
		r.Add(scoredTxn(fmt.Sprintf("sig%d", i), uint64(i), 200_000))
	}

	rankings := r.Rankings(2)
	require.Len(t, rankings, 2)
	assert.Equal(t, uint64(4), rankings[0].Priority)
	assert.Equal(t, uint64(3), rankings[1].Priority)
}

func TestAdd_EvictsLowestWhenFull(t *testing.T) {
	r := New(2, nil, nil)
	r.Add(scoredTxn("a", 10, 200_000))
	r.Add(scoredTxn("b", 20, 200_000))

	// Higher priority than the current minimum evicts it.
	r.Add(scoredTxn("c", 15, 200_000))
	assert.Equal(t, 2, r.Len())

	rankings := r.Rankings(0)
	assert.Equal(t, "b", rankings[0].Signature)
	assert.Equal(t, "c", rankings[1].Signature)

	// Lower priority than the current minimum is dropped.
	r.Add(scoredTxn("d", 1, 200_000))
	rankings = r.Rankings(0)
	require.Len(t, rankings, 2)
	assert.Equal(t, "b", rankings[0].Signature)
	assert.Equal(t, "c", rankings[1].Signature)
}

func TestSelectBlock_RespectsComputeBudget(t *testing.T) {
	r := New(10, nil, nil)
	r.Add(scoredTxn("big", 100, 1_000_000))
	r.Add(scoredTxn("mid", 50, 400_000))
	r.Add(scoredTxn("small", 10, 200_000))

	selected := r.SelectBlock(1_300_000)
	require.Len(t, selected, 2)
	assert.Equal(t, "big", selected[0].Signature)
	assert.Equal(t, "mid", selected[1].Signature)

	// Selection does not consume the ranking.
	assert.Equal(t, 3, r.Len())
}

func TestSelectBlock_SkipsOversizedButKeepsFilling(t *testing.T) {
	r := New(10, nil, nil)
	r.Add(scoredTxn("huge", 100, 2_000_000))
	r.Add(scoredTxn("small", 10, 200_000))

	selected := r.SelectBlock(500_000)
	require.Len(t, selected, 1)
	assert.Equal(t, "small", selected[0].Signature)
}
