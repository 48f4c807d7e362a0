// Command brokerctl is a small operator CLI for the console-mcp broker: it
// can make sure a broker is running (spawning one if not) and print a
// running broker's maintenance stats.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/console-mcp/broker/internal/config"
	"github.com/console-mcp/broker/internal/spawn"
)

var rootCmd = &cobra.Command{
	Use:   "brokerctl",
	Short: "Operate the console-mcp broker",
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Ensure a broker is running, spawning one if necessary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		opts := spawn.Options{
			DiscoveryPort: cfg.DiscoveryPort,
			LockTimeout:   cfg.SpawnLockTimeout,
			ReadyTimeout:  cfg.SpawnReadyTimeout,
		}

		res, err := spawn.Ensure(cmd.Context(), nil, opts)
		if err != nil {
			return fmt.Errorf("ensure broker: %w", err)
		}

		status := "spawned"
		if res.AlreadyRunning {
			status = "already running"
		}
		fmt.Printf("broker %s (serverId=%s, wsUrl=%s)\n", status, res.Discovery.ServerID, res.Discovery.WSURL)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a running broker's maintenance stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		url := fmt.Sprintf("http://127.0.0.1:%d/maintenance/stats", cfg.DiscoveryPort)

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("no broker reachable at %s: %w", url, err)
		}
		defer resp.Body.Close()

		var body map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode stats response: %w", err)
		}
		out, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
