package main

import (
	"fmt"

	"github.com/readykit/ready/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without polling anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a ready configuration file without polling anything.

This command parses the YAML, merges defaults under each condition,
expands environment variables, and validates all fields. It's useful for
CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  ready validate -c conditions.yaml
  ready validate --config /etc/ready/conditions.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	byType := make(map[string]int, 3)
	for _, cc := range cfg.Conditions {
		byType[cc.Type]++
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Wait:       %s\n", cfg.Wait.Duration())
	fmt.Printf("  Multiplier: %v\n", cfg.Multiplier)
	fmt.Printf("  Timeout:    %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Conditions: %d (%d file, %d tcp, %d http)\n",
		len(cfg.Conditions), byType[config.TypeFile], byType[config.TypeTCP], byType[config.TypeHTTP])

	return nil
}
