// Package cmd holds the CLI entry points.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Polite news acquisition pipeline",
		Long: `harvester collects candidate articles from configured sources,
fetches and extracts their content politely (per-domain rate limiting,
rotated identity, backoff) and stores one canonical record per URL.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}
