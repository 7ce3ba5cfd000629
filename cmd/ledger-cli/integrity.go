package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var integrityCmd = &cobra.Command{
	Use:   "integrity PATH",
	Short: "Check cross-table invariants, reporting any violations",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntegrity,
}

func init() {
	rootCmd.AddCommand(integrityCmd)
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	path := args[0]

	l, pass, err := openLedger(path)
	if err != nil {
		return err
	}
	defer closeLedgerLogged(l, pass)

	report, err := l.CheckIntegrity()
	for _, v := range report.Violations {
		fmt.Fprintf(os.Stderr, "%s: %s\n", v.Invariant, v.Detail)
	}
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}
