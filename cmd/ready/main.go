// Package main is the entry point for the ready CLI.
//
// The readiness poller can be used as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	ready wait -c conditions.yaml     # Block until all conditions hold
//	ready validate -c conditions.yaml # Validate configuration
//	ready version                     # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "ready",
	Short: "Wait for readiness conditions",
	Long: `ready blocks until a set of readiness conditions hold.

It polls each configured condition with exponential backoff until the
condition is satisfied or its timeout expires, then exits 0 when every
condition held and 1 otherwise. Useful as a gate in startup scripts,
entrypoints, and CI pipelines.

Quick start:
  1. Create a config file (conditions.yaml)
  2. Run: ready wait -c conditions.yaml

Example config:
  timeout: 30s
  conditions:
    - name: postgres
      type: tcp
      address: localhost:5432
    - name: api
      type: http
      url: http://localhost:8080/healthz`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this ready binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ready %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
