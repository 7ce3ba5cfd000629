package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// Template is the base, name-stable view of a versioned entry template.
type Template struct {
	ID           uuid.UUID
	Name         string
	EntryTypeID  uuid.UUID
	Description  *string
	CreatedAt    time.Time
	DeviceID     uuid.UUID
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

func toTemplate(t model.Template) Template {
	return Template{
		ID:           t.ID,
		Name:         t.Name,
		EntryTypeID:  t.EntryTypeID,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
		DeviceID:     t.DeviceID,
		Version:      t.Version,
		TemplateJSON: t.TemplateJSON,
	}
}

// CreateTemplate creates a template bound to an entry type.
func (l *Ledger) CreateTemplate(in NewTemplate) (uuid.UUID, error) {
	return l.s.CreateTemplate(model.NewTemplate{
		Name:         in.Name,
		EntryTypeID:  in.EntryTypeID,
		Description:  in.Description,
		TemplateJSON: in.TemplateJSON,
		DeviceID:     in.DeviceID,
	})
}

// GetTemplate returns a template's active version by name.
func (l *Ledger) GetTemplate(name string) (Template, error) {
	t, err := l.s.GetTemplate(name)
	if err != nil {
		return Template{}, err
	}
	return toTemplate(t), nil
}

// GetTemplateByID returns a template's active version by id.
func (l *Ledger) GetTemplateByID(id uuid.UUID) (Template, error) {
	t, err := l.s.GetTemplateByID(id)
	if err != nil {
		return Template{}, err
	}
	return toTemplate(t), nil
}

// ListTemplates returns each template at its active version, ordered by
// name.
func (l *Ledger) ListTemplates() ([]Template, error) {
	ts, err := l.s.ListTemplates()
	if err != nil {
		return nil, err
	}
	out := make([]Template, len(ts))
	for i, t := range ts {
		out[i] = toTemplate(t)
	}
	return out, nil
}

// UpdateTemplate appends a new version of template, returning the new
// version number.
func (l *Ledger) UpdateTemplate(id uuid.UUID, templateJSON json.RawMessage) (int, error) {
	return l.s.UpdateTemplate(id, templateJSON)
}

// DeleteTemplate removes a template, its versions, and any default-template
// link pointing at it.
func (l *Ledger) DeleteTemplate(id uuid.UUID) error {
	return l.s.DeleteTemplate(id)
}

// SetDefaultTemplate makes template the active default for entryType.
func (l *Ledger) SetDefaultTemplate(entryTypeID, templateID uuid.UUID) error {
	return l.s.SetDefaultTemplate(entryTypeID, templateID)
}

// ClearDefaultTemplate removes the active default for entryType, if any.
func (l *Ledger) ClearDefaultTemplate(entryTypeID uuid.UUID) error {
	return l.s.ClearDefaultTemplate(entryTypeID)
}

// GetDefaultTemplate returns the active default template for entryType,
// NotFound if none is set.
func (l *Ledger) GetDefaultTemplate(entryTypeID uuid.UUID) (Template, error) {
	t, err := l.s.GetDefaultTemplate(entryTypeID)
	if err != nil {
		return Template{}, err
	}
	return toTemplate(t), nil
}
