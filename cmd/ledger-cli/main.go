// Command ledger-cli is a thin, scriptable front end over pkg/ledger: it
// opens or creates one encrypted ledger file per invocation, runs a single
// subcommand against it, and persists the result.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	logJSON      bool
	maxListLimit int
	logger       zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledger-cli",
	Short: "Encrypted journal storage engine",
	Long: `ledger-cli drives a single encrypted journal file: entry types,
entries, compositions, templates, full-text search, and an integrity
checker, all layered over one passphrase-sealed SQLite image.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		writer := os.Stderr
		if logJSON {
			logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
		} else {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: writer}).Level(level).With().Timestamp().Logger()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON instead of console text")
	rootCmd.PersistentFlags().IntVar(&maxListLimit, "max-list-limit", 0, "cap list results when a command doesn't set its own --limit (0 = uncapped)")
}
