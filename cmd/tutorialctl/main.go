// Package main provides an operator CLI for the tutorial pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "tutorialctl",
	Short:        "Operate the URL to tutorial pipeline",
	Long:         "tutorialctl submits URLs, advances and retries submissions, and exports submission reports against the pipeline's own storage and queue.",
	SilenceUsage: true,
}

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (defaults to LOG_LEVEL)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
