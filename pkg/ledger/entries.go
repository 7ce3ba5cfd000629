package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// Entry is one immutable, append-only record.
type Entry struct {
	ID            uuid.UUID
	EntryTypeID   uuid.UUID
	SchemaVersion int
	Data          json.RawMessage
	Tags          []string
	CreatedAt     time.Time
	DeviceID      uuid.UUID
	Supersedes    *uuid.UUID
}

// NewEntry are the caller-supplied fields for AddEntry. The entry's schema
// version is not caller-supplied: it is always stamped from the entry
// type's currently active version at insert time.
type NewEntry struct {
	EntryTypeID uuid.UUID
	Data        json.RawMessage
	Tags        []string
	DeviceID    uuid.UUID
	// Supersedes, if set, marks this entry as replacing an earlier one. The
	// referenced id is not required to exist.
	Supersedes *uuid.UUID
	// CreatedAt overrides the insert timestamp; nil means now.
	CreatedAt *time.Time
}

func toEntry(e model.Entry) Entry {
	return Entry{
		ID:            e.ID,
		EntryTypeID:   e.EntryTypeID,
		SchemaVersion: e.SchemaVersion,
		Data:          e.Data,
		Tags:          e.Tags,
		CreatedAt:     e.CreatedAt,
		DeviceID:      e.DeviceID,
		Supersedes:    e.Supersedes,
	}
}

// AddEntry validates in.Data against the entry type's active schema,
// normalizes its tags, and inserts it.
func (l *Ledger) AddEntry(in NewEntry) (uuid.UUID, error) {
	return l.s.InsertEntry(model.NewEntry{
		EntryTypeID: in.EntryTypeID,
		Data:        in.Data,
		Tags:        in.Tags,
		DeviceID:    in.DeviceID,
		Supersedes:  in.Supersedes,
		CreatedAt:   in.CreatedAt,
	})
}

// GetEntry performs a strict id lookup.
func (l *Ledger) GetEntry(id uuid.UUID) (Entry, error) {
	e, err := l.s.GetEntry(id)
	if err != nil {
		return Entry{}, err
	}
	return toEntry(e), nil
}

// ListFilter filters ListEntries results; all fields are optional and
// AND-composed.
type ListFilter struct {
	EntryTypeID   *uuid.UUID
	Tag           *string
	Since         *time.Time
	Until         *time.Time
	CompositionID *uuid.UUID
	Limit         int
}

// ListEntries applies filter and returns matches ordered by created_at
// descending. If filter.Limit is unset, l's configured MaxListLimit (if
// any) applies instead.
func (l *Ledger) ListEntries(filter ListFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = l.maxListLimit
	}
	entries, err := l.s.ListEntries(model.ListFilter{
		EntryTypeID:   filter.EntryTypeID,
		Tag:           filter.Tag,
		Since:         filter.Since,
		Until:         filter.Until,
		CompositionID: filter.CompositionID,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}
	return toEntries(entries), nil
}

// SearchEntries runs a full-text query against entry content and orders
// hits by relevance, then created_at descending.
func (l *Ledger) SearchEntries(query string) ([]Entry, error) {
	entries, err := l.s.SearchEntries(query)
	if err != nil {
		return nil, err
	}
	return toEntries(entries), nil
}

// SupersededEntryIDs returns the distinct set of entry ids that have been
// replaced by a later entry's Supersedes field.
func (l *Ledger) SupersededEntryIDs() ([]uuid.UUID, error) {
	return l.s.SupersededEntryIDs()
}

func toEntries(entries []model.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	return out
}
