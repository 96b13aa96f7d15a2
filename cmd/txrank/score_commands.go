package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/ranklabs/txrank/client"
	"github.com/ranklabs/txrank/service/prioritization"
)

// cmdLogger returns a quiet logger for CLI commands. Command output goes to
// stdout; only errors are logged.
func cmdLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func apiClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, cmdLogger())
}

// scoreCommand scores a transaction locally without contacting the server.
func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score a transaction offline from its base64 wire format",
		ArgsUsage: "<base64-transaction>",
		Description: `Derives the priority and compute unit limit of a transaction from its
compute budget instructions. Reads the transaction from the first argument,
or from stdin when the argument is "-" or absent.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			encoded := c.Args().First()
			if encoded == "" || encoded == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read transaction from stdin: %w", err)
				}
				encoded = strings.TrimSpace(string(data))
			}
			if encoded == "" {
				return fmt.Errorf("transaction is required (argument or stdin)")
			}

			tx, err := solanago.TransactionFromBase64(encoded)
			if err != nil {
				return fmt.Errorf("invalid transaction: %w", err)
			}

			sanitized := prioritization.NewSanitizedVersionedTransaction(tx)
			details, ok := sanitized.GetTransactionPriorityDetails(false)

			signature := ""
			if len(tx.Signatures) > 0 {
				signature = tx.Signatures[0].String()
			}

			if c.Bool("json") {
				out := map[string]interface{}{
					"signature":  signature,
					"unresolved": !ok,
				}
				if ok {
					out["priority"] = details.Priority
					out["compute_unit_limit"] = details.ComputeUnitLimit
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			if !ok {
				fmt.Printf("✗ Transaction could not be resolved\n")
				fmt.Printf("  Signature: %s\n", signature)
				return nil
			}

			fmt.Printf("✓ Transaction scored\n")
			fmt.Printf("  Signature:          %s\n", signature)
			fmt.Printf("  Priority:           %d\n", details.Priority)
			fmt.Printf("  Compute unit limit: %d\n", details.ComputeUnitLimit)
			return nil
		},
	}
}

// clientScoreCommand submits a transaction to the server for scoring.
func clientScoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Submit a transaction to the server for scoring and ranking",
		ArgsUsage: "<base64-transaction>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			encoded := c.Args().First()
			if encoded == "" {
				return fmt.Errorf("transaction argument is required")
			}

			score, err := apiClient(c).Score(c.Context, encoded)
			if err != nil {
				return fmt.Errorf("failed to score transaction: %w", err)
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(score)
			}

			fmt.Printf("✓ Transaction scored and ranked\n")
			fmt.Printf("  Signature:          %s\n", score.Signature)
			fmt.Printf("  Priority:           %d\n", score.Priority)
			fmt.Printf("  Compute unit limit: %d\n", score.ComputeUnitLimit)
			if score.Unresolved {
				fmt.Printf("  Unresolved:         true\n")
			}
			return nil
		},
	}
}

// rankingsCommand lists the server's in-memory ranking.
func rankingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "rankings",
		Usage: "List the current transaction ranking",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries to return",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "Filter entries with a jq expression (all expressions must evaluate true)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			rankings, err := apiClient(c).Rankings(c.Context, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to get rankings: %w", err)
			}

			codes, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			if len(codes) > 0 {
				filtered := make([]client.RankingEntry, 0, len(rankings))
				for _, entry := range rankings {
					match, err := matchesFilters(entry, codes)
					if err != nil {
						return err
					}
					if match {
						filtered = append(filtered, entry)
					}
				}
				rankings = filtered
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(rankings)
			}

			if len(rankings) == 0 {
				fmt.Println("No ranked transactions")
				return nil
			}

			fmt.Printf("Ranked transactions (%d):\n", len(rankings))
			for i, entry := range rankings {
				fmt.Printf("%3d. %s\n", i+1, entry.Signature)
				fmt.Printf("     priority=%d compute_unit_limit=%d slot=%d\n",
					entry.Priority, entry.ComputeUnitLimit, entry.Slot)
			}
			return nil
		},
	}
}

// selectBlockCommand asks the server for a greedy block selection.
func selectBlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "select-block",
		Usage: "Select the highest-priority transactions fitting a compute budget",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "max-compute-units",
				Usage: "Compute unit budget (0 uses the server default)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			selection, err := apiClient(c).SelectBlock(c.Context, c.Uint64("max-compute-units"))
			if err != nil {
				return fmt.Errorf("failed to select block: %w", err)
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(selection)
			}

			fmt.Printf("✓ Selected %d transactions\n", len(selection.Transactions))
			fmt.Printf("  Budget: %d compute units\n", selection.MaxComputeUnits)
			fmt.Printf("  Used:   %d compute units\n", selection.ComputeUnitsUsed)
			for i, entry := range selection.Transactions {
				fmt.Printf("%3d. %s priority=%d compute_unit_limit=%d\n",
					i+1, entry.Signature, entry.Priority, entry.ComputeUnitLimit)
			}
			return nil
		},
	}
}

// getScoreCommand fetches one persisted score by signature.
func getScoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a persisted score by transaction signature",
		ArgsUsage: "<signature>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			signature := c.Args().First()
			if signature == "" {
				return fmt.Errorf("signature argument is required")
			}

			score, err := apiClient(c).GetScore(c.Context, signature)
			if err != nil {
				return fmt.Errorf("failed to get score: %w", err)
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(score)
			}

			printStoredScore(score)
			return nil
		},
	}
}

// listScoresCommand lists persisted scores, optionally for a single slot.
func listScoresCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List persisted scores in descending priority order",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of scores to return",
				Value:   20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of scores to skip",
			},
			&cli.Int64Flag{
				Name:  "slot",
				Usage: "List all scores for this slot instead",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			var scores []client.StoredScore
			var err error
			if c.IsSet("slot") {
				scores, err = apiClient(c).ListScoresBySlot(c.Context, c.Int64("slot"))
			} else {
				scores, err = apiClient(c).ListScores(c.Context, c.Int("limit"), c.Int("offset"))
			}
			if err != nil {
				return fmt.Errorf("failed to list scores: %w", err)
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(scores)
			}

			if len(scores) == 0 {
				fmt.Println("No scores found")
				return nil
			}

			fmt.Printf("Scores (%d):\n", len(scores))
			for _, score := range scores {
				fmt.Printf("  %s slot=%d priority=%d compute_unit_limit=%d fee=%d\n",
					score.Signature, score.Slot, score.Priority, score.ComputeUnitLimit, score.Fee)
			}
			return nil
		},
	}
}

// scoreBlockCommand triggers a one-off block-scoring workflow.
func scoreBlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "score-block",
		Usage: "Score a finalized block once via the server",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "slot",
				Usage: "Slot to score (0 scores the latest finalized block)",
			},
		},
		Action: func(c *cli.Context) error {
			slot := c.Uint64("slot")
			if err := apiClient(c).ScoreBlock(c.Context, slot); err != nil {
				return fmt.Errorf("failed to score block: %w", err)
			}

			if slot == 0 {
				fmt.Println("✓ Scored latest finalized block")
			} else {
				fmt.Printf("✓ Scored block at slot %d\n", slot)
			}
			return nil
		},
	}
}

func printStoredScore(score *client.StoredScore) {
	fmt.Printf("Score for %s:\n", score.Signature)
	fmt.Printf("  Slot:               %d\n", score.Slot)
	fmt.Printf("  Priority:           %d\n", score.Priority)
	fmt.Printf("  Compute unit limit: %d\n", score.ComputeUnitLimit)
	fmt.Printf("  Fee:                %d\n", score.Fee)
	if score.BlockTime != nil {
		fmt.Printf("  Block time:         %s\n", score.BlockTime.Format("2006-01-02 15:04:05 MST"))
	}
	if score.Unresolved {
		fmt.Printf("  Unresolved:         true\n")
	}
}

// compileFilters compiles jq filter expressions.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, 0, len(filters))
	for _, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid jq filter %q: %w", filter, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// matchesFilters reports whether all compiled filters evaluate to true for the
// given value. The value is round-tripped through JSON so filters see the same
// field names as the API output.
func matchesFilters(v interface{}, codes []*gojq.Code) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value for filtering: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return false, fmt.Errorf("failed to unmarshal value for filtering: %w", err)
	}

	for _, code := range codes {
		iter := code.Run(decoded)
		result, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := result.(error); isErr {
			return false, fmt.Errorf("jq filter error: %w", err)
		}
		if truthy, isBool := result.(bool); !isBool || !truthy {
			return false, nil
		}
	}
	return true, nil
}
