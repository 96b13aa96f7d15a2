package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranklabs/txrank/client"
)

func TestCompileFilters_Invalid(t *testing.T) {
	_, err := compileFilters([]string{".priority >"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jq filter")
}

func TestMatchesFilters(t *testing.T) {
	entry := client.RankingEntry{
		Signature:        "sig1",
		Slot:             1000,
		Priority:         5000,
		ComputeUnitLimit: 150_000,
	}

	tests := []struct {
		name    string
		filters []string
		want    bool
	}{
		{
			name:    "no filters matches everything",
			filters: nil,
			want:    true,
		},
		{
			name:    "single matching filter",
			filters: []string{".priority > 1000"},
			want:    true,
		},
		{
			name:    "single non-matching filter",
			filters: []string{".priority > 10000"},
			want:    false,
		},
		{
			name:    "all filters must match",
			filters: []string{".priority > 1000", ".slot == 999"},
			want:    false,
		},
		{
			name:    "field match",
			filters: []string{`.signature == "sig1"`, ".compute_unit_limit == 150000"},
			want:    true,
		},
		{
			name:    "non-boolean result does not match",
			filters: []string{".priority"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, err := compileFilters(tt.filters)
			require.NoError(t, err)

			match, err := matchesFilters(entry, codes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, match)
		})
	}
}
