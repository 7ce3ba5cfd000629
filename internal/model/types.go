package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FormatVersion is the current on-disk logical format.
const FormatVersion = "0.1"

// Metadata is the singleton row describing the store itself.
type Metadata struct {
	FormatVersion string
	DeviceID      uuid.UUID
	CreatedAt     time.Time
	LastModified  time.Time
}

// FieldType is a recognized schema field type.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldInteger  FieldType = "integer"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldDatetime FieldType = "datetime"
)

// SchemaField describes one field of an entry-type schema.
type SchemaField struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Nullable bool      `json:"nullable,omitempty"`
}

// Schema is the parsed shape of an entry type version's schema_json.
type Schema struct {
	Fields []SchemaField `json:"fields"`
}

// EntryType is the base, name-stable row for a versioned entry type.
type EntryType struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	DeviceID  uuid.UUID

	// Active version, joined in for convenience by readers.
	Version    int
	SchemaJSON json.RawMessage
	Schema     Schema
}

// NewEntryType are the caller-supplied fields for CreateEntryType.
type NewEntryType struct {
	Name       string
	SchemaJSON json.RawMessage
	DeviceID   uuid.UUID
}

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

// NewEntry are the caller-supplied fields for InsertEntry. SchemaVersion is
// not caller-supplied: insert_entry always validates against and stamps the
// entry type's currently active version.
type NewEntry struct {
	EntryTypeID uuid.UUID
	Data        json.RawMessage
	Tags        []string
	DeviceID    uuid.UUID
	Supersedes  *uuid.UUID
	CreatedAt   *time.Time // nil means "now"
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

// CompositionFilter filters ListCompositions.
type CompositionFilter struct {
	Limit int
}

// EntryComposition is one link row between an entry and a composition.
type EntryComposition struct {
	EntryID       uuid.UUID
	CompositionID uuid.UUID
	AddedAt       time.Time
}

// Template is the base, name-stable row for a versioned template.
type Template struct {
	ID          uuid.UUID
	Name        string
	EntryTypeID uuid.UUID
	Description *string
	CreatedAt   time.Time
	DeviceID    uuid.UUID

	Version      int
	TemplateJSON json.RawMessage
}

// NewTemplate are the caller-supplied fields for CreateTemplate.
type NewTemplate struct {
	Name         string
	EntryTypeID  uuid.UUID
	Description  *string
	TemplateJSON json.RawMessage
	DeviceID     uuid.UUID
}

// DefaultTemplateLink marks template as the default for entry_type_id. At
// most one link per entry type may have Active set.
type DefaultTemplateLink struct {
	EntryTypeID uuid.UUID
	TemplateID  uuid.UUID
	Active      bool
}

// IntegrityViolation names a single failed invariant, identified by name so
// a caller can report which check failed rather than just that one did.
type IntegrityViolation struct {
	Invariant string
	Detail    string
}

// IntegrityReport is the result of check_integrity.
type IntegrityReport struct {
	Violations []IntegrityViolation
}

func (r IntegrityReport) OK() bool { return len(r.Violations) == 0 }
