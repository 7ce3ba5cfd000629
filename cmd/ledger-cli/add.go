package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hotsaucejake/ledger-sub000/pkg/ledger"
)

var (
	addType       string
	addData       string
	addTags       string
	addSupersedes string
)

var addCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Insert a new entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addType, "type", "", "entry type name (required)")
	addCmd.Flags().StringVar(&addData, "data", "", "entry data JSON, or @file (required)")
	addCmd.Flags().StringVar(&addTags, "tags", "", "comma-separated tags")
	addCmd.Flags().StringVar(&addSupersedes, "supersedes", "", "id of the entry this one replaces")
	_ = addCmd.MarkFlagRequired("type")
	_ = addCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := resolveJSONArg(addData)
	if err != nil {
		return err
	}

	var tags []string
	if addTags != "" {
		tags = strings.Split(addTags, ",")
	}

	var supersedes *uuid.UUID
	if addSupersedes != "" {
		id, err := uuid.Parse(addSupersedes)
		if err != nil {
			return fmt.Errorf("invalid --supersedes id: %w", err)
		}
		supersedes = &id
	}

	l, pass, err := openLedger(path)
	if err != nil {
		return err
	}
	defer closeLedgerLogged(l, pass)

	entryType, err := l.GetEntryType(addType)
	if err != nil {
		return err
	}
	meta, err := l.Metadata()
	if err != nil {
		return err
	}

	id, err := l.AddEntry(ledger.NewEntry{
		EntryTypeID: entryType.ID,
		Data:        data,
		Tags:        tags,
		DeviceID:    meta.DeviceID,
		Supersedes:  supersedes,
	})
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}
