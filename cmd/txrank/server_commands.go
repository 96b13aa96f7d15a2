package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check whether the server is reachable",
		Action: func(c *cli.Context) error {
			httpClient := &http.Client{Timeout: 10 * time.Second}

			req, err := http.NewRequestWithContext(c.Context, "GET", c.String("server-url")+"/health", nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}

			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server unhealthy: status %d: %s", resp.StatusCode, string(body))
			}

			fmt.Printf("✓ Server healthy: %s\n", string(body))
			return nil
		},
	}
}
