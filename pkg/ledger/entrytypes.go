package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// SchemaField describes one field of an entry type's data schema.
type SchemaField struct {
	Name     string
	Type     string
	Required bool
	Nullable bool
}

// EntryType is the base, name-stable view of a versioned entry type,
// joined to its currently active schema version.
type EntryType struct {
	ID         uuid.UUID
	Name       string
	CreatedAt  time.Time
	DeviceID   uuid.UUID
	Version    int
	SchemaJSON json.RawMessage
	Fields     []SchemaField
}

// NewEntryType are the caller-supplied fields for CreateEntryType.
// SchemaJSON is the compact field-list shape: {"fields":[{"name":...,
// "type":...,"required":bool,"nullable":bool}, ...]}.
type NewEntryType struct {
	Name       string
	SchemaJSON json.RawMessage
	DeviceID   uuid.UUID
}

func toEntryType(et model.EntryType) EntryType {
	fields := make([]SchemaField, len(et.Schema.Fields))
	for i, f := range et.Schema.Fields {
		fields[i] = SchemaField{Name: f.Name, Type: string(f.Type), Required: f.Required, Nullable: f.Nullable}
	}
	return EntryType{
		ID:         et.ID,
		Name:       et.Name,
		CreatedAt:  et.CreatedAt,
		DeviceID:   et.DeviceID,
		Version:    et.Version,
		SchemaJSON: et.SchemaJSON,
		Fields:     fields,
	}
}

// CreateEntryType creates a brand-new entry type, or appends the next
// version if the name already exists. The base id is returned either way.
func (l *Ledger) CreateEntryType(in NewEntryType) (uuid.UUID, error) {
	return l.s.CreateEntryType(model.NewEntryType{
		Name:       in.Name,
		SchemaJSON: in.SchemaJSON,
		DeviceID:   in.DeviceID,
	})
}

// GetEntryType returns the active version of the named entry type.
func (l *Ledger) GetEntryType(name string) (EntryType, error) {
	et, err := l.s.GetEntryType(name)
	if err != nil {
		return EntryType{}, err
	}
	return toEntryType(et), nil
}

// ListEntryTypes returns one row per name, each at its active version,
// ordered by name.
func (l *Ledger) ListEntryTypes() ([]EntryType, error) {
	ets, err := l.s.ListEntryTypes()
	if err != nil {
		return nil, err
	}
	out := make([]EntryType, len(ets))
	for i, et := range ets {
		out[i] = toEntryType(et)
	}
	return out, nil
}
