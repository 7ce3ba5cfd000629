package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hotsaucejake/ledger-sub000/pkg/ledger"
)

var getCmd = &cobra.Command{
	Use:   "get PATH ID",
	Short: "Look up a single entry by id",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	path := args[0]
	id, err := uuid.Parse(args[1])
	if err != nil {
		return err
	}

	l, pass, err := openLedger(path)
	if err != nil {
		return err
	}
	defer closeLedgerLogged(l, pass)

	entry, err := l.GetEntry(id)
	if err != nil {
		return err
	}
	return printEntries([]ledger.Entry{entry})
}
