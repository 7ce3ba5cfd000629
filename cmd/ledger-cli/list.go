package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hotsaucejake/ledger-sub000/pkg/ledger"
)

var (
	listType  string
	listTag   string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list PATH",
	Short: "List entries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "restrict to this entry type name")
	listCmd.Flags().StringVar(&listTag, "tag", "", "restrict to entries carrying this tag")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "max results (0 = no limit)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	path := args[0]

	l, pass, err := openLedger(path)
	if err != nil {
		return err
	}
	defer closeLedgerLogged(l, pass)

	filter := ledger.ListFilter{Limit: listLimit}
	if listType != "" {
		entryType, err := l.GetEntryType(listType)
		if err != nil {
			return err
		}
		filter.EntryTypeID = &entryType.ID
	}
	if listTag != "" {
		filter.Tag = &listTag
	}

	entries, err := l.ListEntries(filter)
	if err != nil {
		return err
	}
	return printEntries(entries)
}

func printEntries(entries []ledger.Entry) error {
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if err := enc.Encode(entrySummary(e)); err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	return nil
}

type entryView struct {
	ID          string          `json:"id"`
	EntryTypeID string          `json:"entry_type_id"`
	Data        json.RawMessage `json:"data"`
	Tags        []string        `json:"tags"`
	CreatedAt   string          `json:"created_at"`
}

func entrySummary(e ledger.Entry) entryView {
	return entryView{
		ID:          e.ID.String(),
		EntryTypeID: e.EntryTypeID.String(),
		Data:        e.Data,
		Tags:        e.Tags,
		CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
