// Command agenthub runs the agent session manager: a single HTTP surface
// over heterogeneous coding-agent CLIs.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "agenthub",
	Short: "Session manager for coding-agent CLIs",
	Long: `Agenthub manages concurrent sessions against coding-agent CLIs
(claude, codex, amp, opencode), normalizes their output into a single
event schema, and exposes sessions over HTTP with offset polling and
SSE streaming.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a structured logger with the configured verbosity.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
