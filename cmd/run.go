// File: cmd/run.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/internal/adb"
	"github.com/SerupAI/mobiledroid/internal/agent"
	"github.com/SerupAI/mobiledroid/internal/device"
	"github.com/SerupAI/mobiledroid/internal/integration"
	"github.com/SerupAI/mobiledroid/internal/llmclient"
	"github.com/SerupAI/mobiledroid/internal/observability"
)

// newRunCmd creates the `run` command, which executes one task end to end
// and prints the TaskResult as JSON.
func newRunCmd() *cobra.Command {
	var (
		serial       string
		maxSteps     int
		outputFormat string
		purpose      string
	)

	runCmd := &cobra.Command{
		Use:   "run \"task description\"",
		Short: "Executes a natural-language task on a connected device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			task := args[0]

			if serial == "" {
				serial = cfg.Device.Serial
			}
			if serial == "" {
				return fmt.Errorf("no device serial: pass --serial or set device.serial in the config")
			}
			if purpose != "" {
				cfg.LLM.Purpose = purpose
			}

			adbClient := adb.New(cfg.Device.ServerAddr, cfg.Device.ConnectTimeout, logger)
			if strings.Contains(serial, ":") {
				// TCP devices have to be connected through the server first.
				if _, err := adbClient.Connect(ctx, serial); err != nil {
					return fmt.Errorf("failed to connect to device %s: %w", serial, err)
				}
			}
			driver := device.NewDriver(adbClient, serial, cfg.Device.ShellTimeout, logger)

			store, closeStore, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			resolver := integration.NewResolver(store, cfg.LLM.CacheTTL, logger)

			ag := agent.New(
				device.NewSampler(driver, logger),
				device.NewExecutor(driver, logger),
				resolver,
				llmclient.New,
				cfg.Agent,
				cfg.LLM,
				logger,
			)

			result := ag.Execute(ctx, task, outputFormat, maxSteps)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render task result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !result.Success {
				return fmt.Errorf("task %s: %s", result.State, result.Error)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&serial, "serial", "s", "", "device serial, e.g. 10.0.3.2:5555 (default from config)")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget for this task (default from config)")
	runCmd.Flags().StringVar(&outputFormat, "output-format", "", "expected shape of the task result, passed to the model")
	runCmd.Flags().StringVar(&purpose, "purpose", "", "integration purpose to resolve (default from config)")

	return runCmd
}

// openStore picks the integration store: Postgres when a database URL is
// configured, otherwise the in-memory store seeded from the config file.
func openStore(ctx context.Context, logger *zap.Logger) (integration.Store, func(), error) {
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		store, err := integration.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}

	logger.Debug("no database configured, using config-file integrations",
		zap.Int("count", len(cfg.Integrations)))
	store, err := integration.NewMemoryStore(cfg.Integrations)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}
