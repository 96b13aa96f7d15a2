package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/ranklabs/txrank/service/config"
	"github.com/ranklabs/txrank/service/db"
	"github.com/ranklabs/txrank/service/metrics"
	"github.com/ranklabs/txrank/service/prioritization"
	"github.com/ranklabs/txrank/service/ranker"
	"github.com/ranklabs/txrank/service/solana"
	"github.com/ranklabs/txrank/service/temporal"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - larger than any Solana transaction
	maxSignatureLength = 100     // Solana signatures are 88 chars base58, give buffer
	defaultListLimit   = 100
	maxListLimit       = 1000
)

var (
	// Valid base58 characters (no 0, O, I, l)
	validSignatureRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// scoreResponse is the JSON response format for a scored transaction.
type scoreResponse struct {
	Signature        string `json:"signature"`
	Priority         uint64 `json:"priority"`
	ComputeUnitLimit uint64 `json:"compute_unit_limit"`
	Unresolved       bool   `json:"unresolved,omitempty"`
}

// handleScoreTransaction returns a handler that scores a single base64-encoded
// transaction and adds it to the in-memory ranking.
// POST /api/v1/score
func handleScoreTransaction(rk *ranker.Ranker, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Transaction string `json:"transaction"` // base64-encoded wire transaction
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode score request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if req.Transaction == "" {
			writeError(w, "transaction is required", http.StatusBadRequest)
			return
		}

		tx, err := solanago.TransactionFromBase64(req.Transaction)
		if err != nil {
			logger.Debug("failed to decode transaction", "error", err)
			writeError(w, "invalid transaction: must be base64-encoded wire format", http.StatusBadRequest)
			return
		}

		resp := scoreResponse{}
		if len(tx.Signatures) > 0 {
			resp.Signature = tx.Signatures[0].String()
		}

		details, ok := prioritization.NewSanitizedVersionedTransaction(tx).GetTransactionPriorityDetails(false)
		if ok {
			resp.Priority = details.Priority
			resp.ComputeUnitLimit = details.ComputeUnitLimit
		} else {
			resp.Unresolved = true
		}

		if m != nil {
			outcome := "resolved"
			if resp.Unresolved {
				outcome = "unresolved"
			}
			m.RecordTransactionScored(outcome)
		}

		rk.Add(&solana.ScoredTransaction{
			Signature:        resp.Signature,
			Priority:         resp.Priority,
			ComputeUnitLimit: resp.ComputeUnitLimit,
			Unresolved:       resp.Unresolved,
		})

		logger.Debug("scored submitted transaction",
			"signature", resp.Signature,
			"priority", resp.Priority,
			"unresolved", resp.Unresolved,
		)

		writeJSON(w, resp, http.StatusOK)
	})
}

// handleGetRankings returns a handler that lists the current in-memory ranking
// in descending priority order.
// GET /api/v1/rankings?limit={limit}
func handleGetRankings(rk *ranker.Ranker, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r.URL.Query().Get("limit"), 0)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rankings := rk.Rankings(limit)
		logger.Debug("rankings listed", "count", len(rankings))

		writeJSON(w, map[string]interface{}{
			"rankings": rankings,
		}, http.StatusOK)
	})
}

// handleSelectBlock returns a handler that greedily selects the highest-priority
// ranked transactions fitting within a compute unit budget.
// GET /api/v1/rankings/block?max_compute_units={n}
func handleSelectBlock(rk *ranker.Ranker, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		maxComputeUnits := cfg.MaxBlockComputeUnits
		if raw := r.URL.Query().Get("max_compute_units"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || parsed == 0 {
				writeError(w, "max_compute_units must be a positive integer", http.StatusBadRequest)
				return
			}
			maxComputeUnits = parsed
		}

		selected := rk.SelectBlock(maxComputeUnits)

		var used uint64
		for _, entry := range selected {
			used += entry.ComputeUnitLimit
		}

		logger.Debug("block selected",
			"max_compute_units", maxComputeUnits,
			"selected", len(selected),
			"compute_units_used", used,
		)

		writeJSON(w, map[string]interface{}{
			"max_compute_units":  maxComputeUnits,
			"compute_units_used": used,
			"transactions":       selected,
		}, http.StatusOK)
	})
}

// storedScoreResponse is the JSON response format for a persisted score.
type storedScoreResponse struct {
	Signature        string     `json:"signature"`
	Slot             int64      `json:"slot"`
	BlockTime        *time.Time `json:"block_time,omitempty"`
	Priority         int64      `json:"priority"`
	ComputeUnitLimit int64      `json:"compute_unit_limit"`
	Fee              int64      `json:"fee"`
	Unresolved       bool       `json:"unresolved,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func scoreToResponse(s *db.Score) storedScoreResponse {
	return storedScoreResponse{
		Signature:        s.Signature,
		Slot:             s.Slot,
		BlockTime:        s.BlockTime,
		Priority:         s.Priority,
		ComputeUnitLimit: s.ComputeUnitLimit,
		Fee:              s.Fee,
		Unresolved:       s.Unresolved,
		CreatedAt:        s.CreatedAt,
	}
}

// handleGetScore returns a handler that retrieves a persisted score by signature.
// GET /api/v1/scores/{signature}
func handleGetScore(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")

		if err := validateSignature(signature); err != nil {
			logger.Debug("invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		score, err := store.GetScore(r.Context(), signature)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "score not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get score", "signature", signature, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, scoreToResponse(score), http.StatusOK)
	})
}

// handleListScores returns a handler that lists persisted scores.
// GET /api/v1/scores?slot={slot} lists all scores for a slot;
// GET /api/v1/scores?limit={limit}&offset={offset} lists the top scores.
func handleListScores(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rawSlot := r.URL.Query().Get("slot"); rawSlot != "" {
			slot, err := strconv.ParseInt(rawSlot, 10, 64)
			if err != nil || slot < 0 {
				writeError(w, "slot must be a non-negative integer", http.StatusBadRequest)
				return
			}

			scores, err := store.ListScoresBySlot(r.Context(), slot)
			if err != nil {
				logger.Error("failed to list scores by slot", "slot", slot, "error", err)
				writeError(w, "internal server error", http.StatusInternalServerError)
				return
			}

			writeScoreList(w, scores)
			return
		}

		limit, err := parseLimit(r.URL.Query().Get("limit"), defaultListLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		offset := 0
		if rawOffset := r.URL.Query().Get("offset"); rawOffset != "" {
			offset, err = strconv.Atoi(rawOffset)
			if err != nil || offset < 0 {
				writeError(w, "offset must be a non-negative integer", http.StatusBadRequest)
				return
			}
		}

		scores, err := store.ListTopScores(r.Context(), db.ListTopScoresParams{
			Limit:  int32(limit),
			Offset: int32(offset),
		})
		if err != nil {
			logger.Error("failed to list top scores", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeScoreList(w, scores)
	})
}

// handleTriggerScoreBlock returns a handler that runs the block-scoring
// workflow once for a given slot. Slot zero scores the latest finalized block.
// POST /api/v1/score/block
func handleTriggerScoreBlock(temporalClient *temporal.Client, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Slot uint64 `json:"slot"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode trigger request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		result, err := temporalClient.TriggerScoreWorkflow(r.Context(), req.Slot)
		if err != nil {
			logger.Error("failed to run score workflow", "slot", req.Slot, "error", err)
			writeError(w, "failed to score block", http.StatusInternalServerError)
			return
		}

		logger.Info("scored block via trigger",
			"slot", result.Slot,
			"transaction_count", result.TransactionCount,
			"written", result.Written,
		)

		writeJSON(w, result, http.StatusOK)
	})
}

func writeScoreList(w http.ResponseWriter, scores []*db.Score) {
	resp := make([]storedScoreResponse, len(scores))
	for i, score := range scores {
		resp[i] = scoreToResponse(score)
	}
	writeJSON(w, map[string]interface{}{
		"scores": resp,
	}, http.StatusOK)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// parseLimit parses a limit query parameter with a default and an upper bound.
func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	if limit > maxListLimit {
		return 0, fmt.Errorf("limit too large: maximum is %d", maxListLimit)
	}
	return limit, nil
}

// validateSignature validates a transaction signature for security and format.
func validateSignature(signature string) error {
	if signature == "" {
		return fmt.Errorf("signature is required")
	}

	if len(signature) > maxSignatureLength {
		return fmt.Errorf("signature too long: maximum length is %d characters", maxSignatureLength)
	}

	for _, r := range signature {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("invalid characters in signature: control characters not allowed")
		}
	}

	if !validSignatureRegex.MatchString(signature) {
		return fmt.Errorf("invalid signature format: must contain only valid base58 characters")
	}

	return nil
}
