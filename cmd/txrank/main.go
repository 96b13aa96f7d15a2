package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "txrank",
		Usage: "Solana transaction priority scoring service CLI",
		Description: `A command-line tool for scoring Solana transactions and debugging the txrank service.

Use this CLI to score transactions offline, query the ranking API, and inspect database state.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Offline scoring (no server required)
			scoreCommand(),
			// HTTP API commands
			{
				Name:  "client",
				Usage: "HTTP API commands",
				Subcommands: []*cli.Command{
					clientScoreCommand(),
					rankingsCommand(),
					selectBlockCommand(),
					getScoreCommand(),
					listScoresCommand(),
					scoreBlockCommand(),
				},
			},
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					dbListScoresCommand(),
					dbGetScoreCommand(),
					dbCountScoresCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for API commands",
				EnvVars: []string{"TXRANK_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
