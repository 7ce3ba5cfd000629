package main

import (
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search PATH QUERY",
	Short: "Full-text search over entry content",
	Args:  cobra.ExactArgs(2),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	path, query := args[0], args[1]

	l, pass, err := openLedger(path)
	if err != nil {
		return err
	}
	defer closeLedgerLogged(l, pass)

	entries, err := l.SearchEntries(query)
	if err != nil {
		return err
	}
	return printEntries(entries)
}
