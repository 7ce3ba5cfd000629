package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// Composition is a named, unordered grouping of entries.
type Composition struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
	DeviceID    uuid.UUID
	Metadata    json.RawMessage
}

// NewComposition are the caller-supplied fields for CreateComposition.
type NewComposition struct {
	Name        string
	Description *string
	DeviceID    uuid.UUID
	Metadata    json.RawMessage
}

// EntryComposition is one link row between an entry and a composition.
type EntryComposition struct {
	EntryID       uuid.UUID
	CompositionID uuid.UUID
	AddedAt       time.Time
}

func toComposition(c model.Composition) Composition {
	return Composition{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		DeviceID:    c.DeviceID,
		Metadata:    c.Metadata,
	}
}

func toEntryComposition(ec model.EntryComposition) EntryComposition {
	return EntryComposition(ec)
}

// CreateComposition creates a new named grouping.
func (l *Ledger) CreateComposition(in NewComposition) (uuid.UUID, error) {
	return l.s.CreateComposition(model.NewComposition{
		Name:        in.Name,
		Description: in.Description,
		DeviceID:    in.DeviceID,
		Metadata:    in.Metadata,
	})
}

// GetComposition looks up a composition by its unique name.
func (l *Ledger) GetComposition(name string) (Composition, error) {
	c, err := l.s.GetComposition(name)
	if err != nil {
		return Composition{}, err
	}
	return toComposition(c), nil
}

// GetCompositionByID looks up a composition by id.
func (l *Ledger) GetCompositionByID(id uuid.UUID) (Composition, error) {
	c, err := l.s.GetCompositionByID(id)
	if err != nil {
		return Composition{}, err
	}
	return toComposition(c), nil
}

// CompositionFilter filters ListCompositions.
type CompositionFilter struct {
	Limit int
}

// ListCompositions returns all compositions ordered by name.
func (l *Ledger) ListCompositions(filter CompositionFilter) ([]Composition, error) {
	cs, err := l.s.ListCompositions(model.CompositionFilter{Limit: filter.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]Composition, len(cs))
	for i, c := range cs {
		out[i] = toComposition(c)
	}
	return out, nil
}

// RenameComposition updates a composition's name.
func (l *Ledger) RenameComposition(id uuid.UUID, newName string) error {
	return l.s.RenameComposition(id, newName)
}

// DeleteComposition removes a composition and its entry links; entries
// themselves are untouched.
func (l *Ledger) DeleteComposition(id uuid.UUID) error {
	return l.s.DeleteComposition(id)
}

// AttachEntryToComposition links entry to composition, idempotently.
func (l *Ledger) AttachEntryToComposition(entryID, compositionID uuid.UUID) error {
	return l.s.AttachEntryToComposition(entryID, compositionID)
}

// DetachEntryFromComposition removes the link, failing NotFound if absent.
func (l *Ledger) DetachEntryFromComposition(entryID, compositionID uuid.UUID) error {
	return l.s.DetachEntryFromComposition(entryID, compositionID)
}

// GetEntryCompositions lists the compositions an entry belongs to.
func (l *Ledger) GetEntryCompositions(entryID uuid.UUID) ([]EntryComposition, error) {
	links, err := l.s.GetEntryCompositions(entryID)
	if err != nil {
		return nil, err
	}
	return toEntryCompositions(links), nil
}

// GetCompositionEntries lists a composition's member links, newest first.
func (l *Ledger) GetCompositionEntries(compositionID uuid.UUID) ([]EntryComposition, error) {
	links, err := l.s.GetCompositionEntries(compositionID)
	if err != nil {
		return nil, err
	}
	return toEntryCompositions(links), nil
}

func toEntryCompositions(links []model.EntryComposition) []EntryComposition {
	out := make([]EntryComposition, len(links))
	for i, link := range links {
		out[i] = toEntryComposition(link)
	}
	return out
}
