package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/ranklabs/txrank/service/db"
)

// openStore connects to the database named by the global --database-url flag.
// The caller must close the returned pool.
func openStore(c *cli.Context) (*db.Store, *pgxpool.Pool, error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (flag or DATABASE_URL)")
	}

	pool, err := pgxpool.New(c.Context, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool, nil
}

func dbListScoresCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-scores",
		Usage: "List stored scores directly from the database",
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
			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			var scores []*db.Score
			if c.IsSet("slot") {
				scores, err = store.ListScoresBySlot(c.Context, c.Int64("slot"))
			} else {
				scores, err = store.ListTopScores(c.Context, db.ListTopScoresParams{
					Limit:  int32(c.Int("limit")),
					Offset: int32(c.Int("offset")),
				})
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
				fmt.Printf("  %s slot=%d priority=%d compute_unit_limit=%d fee=%d unresolved=%t\n",
					score.Signature, score.Slot, score.Priority,
					score.ComputeUnitLimit, score.Fee, score.Unresolved)
			}
			return nil
		},
	}
}

func dbGetScoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-score",
		Usage:     "Get a stored score directly from the database",
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

			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			score, err := store.GetScore(c.Context, signature)
			if err != nil {
				return fmt.Errorf("failed to get score: %w", err)
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(score)
			}

			fmt.Printf("Score for %s:\n", score.Signature)
			fmt.Printf("  Slot:               %d\n", score.Slot)
			fmt.Printf("  Priority:           %d\n", score.Priority)
			fmt.Printf("  Compute unit limit: %d\n", score.ComputeUnitLimit)
			fmt.Printf("  Fee:                %d\n", score.Fee)
			fmt.Printf("  Unresolved:         %t\n", score.Unresolved)
			fmt.Printf("  Created at:         %s\n", score.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func dbCountScoresCommand() *cli.Command {
	return &cli.Command{
		Name:  "count-scores",
		Usage: "Count stored scores",
		Action: func(c *cli.Context) error {
			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := store.CountScores(c.Context)
			if err != nil {
				return fmt.Errorf("failed to count scores: %w", err)
			}

			fmt.Printf("%d scores\n", count)
			return nil
		},
	}
}
