package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/score", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, "dHhkYXRh", body["transaction"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"signature":          "sig1",
			"priority":           5000,
			"compute_unit_limit": 150000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	score, err := client.Score(context.Background(), "dHhkYXRh")
	require.NoError(t, err)
	assert.Equal(t, "sig1", score.Signature)
	assert.Equal(t, uint64(5000), score.Priority)
	assert.Equal(t, uint64(150000), score.ComputeUnitLimit)
	assert.False(t, score.Unresolved)
}

func TestScore_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid transaction: must be base64-encoded wire format",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Score(context.Background(), "not-a-transaction")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction")
}

func TestRankings_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/rankings", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"rankings": []map[string]interface{}{
				{"signature": "high", "priority": 100, "compute_unit_limit": 200000},
				{"signature": "low", "priority": 1, "compute_unit_limit": 200000},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	rankings, err := client.Rankings(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "high", rankings[0].Signature)
	assert.Equal(t, uint64(100), rankings[0].Priority)
}

func TestSelectBlock_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/rankings/block", r.URL.Path)
		assert.Equal(t, "500000", r.URL.Query().Get("max_compute_units"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"max_compute_units":  500000,
			"compute_units_used": 200000,
			"transactions": []map[string]interface{}{
				{"signature": "small", "priority": 10, "compute_unit_limit": 200000},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	selection, err := client.SelectBlock(context.Background(), 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), selection.MaxComputeUnits)
	assert.Equal(t, uint64(200_000), selection.ComputeUnitsUsed)
	require.Len(t, selection.Transactions, 1)
	assert.Equal(t, "small", selection.Transactions[0].Signature)
}

func TestGetScore_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/scores/sig1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"signature":          "sig1",
			"slot":               1000,
			"priority":           5000,
			"compute_unit_limit": 150000,
			"fee":                9000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	score, err := client.GetScore(context.Background(), "sig1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), score.Slot)
	assert.Equal(t, int64(5000), score.Priority)
}

func TestGetScore_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "score not found",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetScore(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score not found")
}

func TestListScores_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scores", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scores": []map[string]interface{}{
				{"signature": "sig1", "slot": 1000, "priority": 30},
				{"signature": "sig2", "slot": 1001, "priority": 20},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	scores, err := client.ListScores(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, int64(30), scores[0].Priority)
}

func TestListScoresBySlot_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scores", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("slot"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scores": []map[string]interface{}{
				{"signature": "sig1", "slot": 1000, "priority": 30},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	scores, err := client.ListScoresBySlot(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, int64(1000), scores[0].Slot)
}

func TestScoreBlock_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/score/block", r.URL.Path)

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, float64(1000), body["slot"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"slot":              1000,
			"transaction_count": 3,
			"written":           3,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.ScoreBlock(context.Background(), 1000)
	assert.NoError(t, err)
}
