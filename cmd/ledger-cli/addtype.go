package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hotsaucejake/ledger-sub000/pkg/ledger"
)

var (
	addTypeName   string
	addTypeSchema string
)

var addTypeCmd = &cobra.Command{
	Use:   "add-type PATH",
	Short: "Create or version an entry type's schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddType,
}

func init() {
	addTypeCmd.Flags().StringVar(&addTypeName, "name", "", "entry type name (required)")
	addTypeCmd.Flags().StringVar(&addTypeSchema, "schema", "", "schema JSON, or @file to read it from a file (required)")
	_ = addTypeCmd.MarkFlagRequired("name")
	_ = addTypeCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(addTypeCmd)
}

func runAddType(cmd *cobra.Command, args []string) error {
	path := args[0]
	schemaJSON, err := resolveJSONArg(addTypeSchema)
	if err != nil {
		return err
	}

	l, pass, err := openLedger(path)
	if err != nil {
		return err
	}
	defer closeLedgerLogged(l, pass)

	meta, err := l.Metadata()
	if err != nil {
		return err
	}

	id, err := l.CreateEntryType(ledger.NewEntryType{
		Name:       addTypeName,
		SchemaJSON: schemaJSON,
		DeviceID:   meta.DeviceID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("entry type %q: %s\n", addTypeName, id)
	return nil
}

// resolveJSONArg returns raw as-is unless it starts with '@', in which case
// the remainder is treated as a path to read the JSON from.
func resolveJSONArg(raw string) (json.RawMessage, error) {
	if len(raw) > 0 && raw[0] == '@' {
		data, err := os.ReadFile(raw[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", raw[1:], err)
		}
		return json.RawMessage(data), nil
	}
	return json.RawMessage(raw), nil
}
