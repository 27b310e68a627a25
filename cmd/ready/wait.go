package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/readykit/ready"
	"github.com/readykit/ready/config"
	"github.com/spf13/cobra"
)

// settleCheckInterval is how often the wait loop re-inspects element states
// to detect that every condition has settled without overall success.
const settleCheckInterval = time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// waitCmd blocks until every configured condition holds.
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until all conditions hold",
	Long: `Block until every condition in the config file holds.

Each condition is polled independently with exponential backoff. A
condition that exceeds the configured timeout is reported and counts as a
failure; with timeout 0 the command waits until interrupted.

Exit codes:
  0 - All conditions held
  1 - One or more conditions timed out, or the wait was interrupted

Example:
  ready wait -c conditions.yaml
  ready wait --config /etc/ready/conditions.yaml --verbose`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)

	waitCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	waitCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	_ = waitCmd.MarkFlagRequired("config")
}

func runWait(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"title", cfg.Title,
		"conditions", len(cfg.Conditions),
		"wait", cfg.Wait.Duration().String(),
		"timeout", cfg.Timeout.Duration().String(),
	)

	conditions, err := config.BuildConditions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build conditions: %w", err)
	}

	done := make(chan struct{})

	var mu sync.Mutex
	var failed []string

	session, err := ready.Poll(conditions,
		func() { close(done) },
		ready.WithWait(cfg.Wait.Duration()),
		ready.WithMultiplier(cfg.Multiplier),
		ready.WithTimeout(cfg.Timeout.Duration()),
		ready.WithTimeoutCallback(func(c ready.Condition) {
			logger.Warn("condition timed out", "condition", c.Name())
			mu.Lock()
			failed = append(failed, c.Name())
			mu.Unlock()
		}),
		ready.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	defer session.Destroy()

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(settleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Info("all conditions held", "conditions", len(conditions))
			return nil

		case <-ctx.Done():
			logger.Warn("interrupted")
			return fmt.Errorf("interrupted before all conditions held")

		case <-ticker.C:
			// success fires via done; this path only detects that every
			// element has settled while at least one timed out
			if allSettled(session.States()) {
				mu.Lock()
				names := append([]string(nil), failed...)
				mu.Unlock()
				if len(names) == 0 {
					// everything succeeded; the done case will fire
					continue
				}
				return fmt.Errorf("%d condition(s) did not hold: %v", len(names), names)
			}
		}
	}
}

// allSettled reports whether no element is still pending or checking.
func allSettled(states []ready.ElementState) bool {
	for _, s := range states {
		if s == ready.StatePending || s == ready.StateChecking {
			return false
		}
	}
	return true
}
