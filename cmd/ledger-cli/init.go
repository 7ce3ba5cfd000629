package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init PATH",
	Short: "Create a brand-new encrypted ledger file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	l, pass, err := createLedger(path)
	if err != nil {
		return err
	}
	if err := l.Close(pass); err != nil {
		return fmt.Errorf("failed to seal ledger: %w", err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
