package main

import (
	"fmt"
	"os"

	"github.com/goodtune/cortes/internal/config"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cortes",
	Short: "cortes - power-cut schedule viewer for CNEL EP notifications",
	Long: `cortes queries the CNEL EP outage notification service and shows the
scheduled power cuts for an identification number, contract account or unique
code: grouped by day, with per-window status, a live countdown for cuts in
progress and the total hours with and without power.`,
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
