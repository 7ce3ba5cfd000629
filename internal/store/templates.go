package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// activeTemplateVersion mirrors activeEntryTypeVersion for templates: the
// active=1 row, or MAX(version) as a defensive fallback.
func activeTemplateVersion(q querier, templateID uuid.UUID) (versionID uuid.UUID, version int, templateJSON json.RawMessage, err error) {
	var idStr string
	row := q.QueryRow(`
		SELECT id, version, template_json FROM template_versions
		WHERE template_id = ? AND active = 1
		ORDER BY version DESC LIMIT 1
	`, templateID.String())
	scanErr := row.Scan(&idStr, &version, &templateJSON)
	if scanErr == sql.ErrNoRows {
		row = q.QueryRow(`
			SELECT id, version, template_json FROM template_versions
			WHERE template_id = ? ORDER BY version DESC LIMIT 1
		`, templateID.String())
		scanErr = row.Scan(&idStr, &version, &templateJSON)
	}
	if scanErr == sql.ErrNoRows {
		return uuid.Nil, 0, nil, model.ErrorNotFound("template %s has no versions", templateID)
	}
	if scanErr != nil {
		return uuid.Nil, 0, nil, model.ErrorStorage(scanErr, "failed to load active template version")
	}
	versionID, err = uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, 0, nil, model.ErrorStorage(err, "template_versions.id is not a valid UUID")
	}
	return versionID, version, templateJSON, nil
}

func scanTemplateBase(scanner interface{ Scan(dest ...any) error }) (model.Template, error) {
	var t model.Template
	var idStr, name, entryTypeIDStr, createdAtStr, deviceIDStr string
	var description sql.NullString

	if err := scanner.Scan(&idStr, &name, &entryTypeIDStr, &description, &createdAtStr, &deviceIDStr); err != nil {
		if err == sql.ErrNoRows {
			return model.Template{}, err
		}
		return model.Template{}, model.ErrorStorage(err, "failed to scan template row")
	}

	var err error
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return model.Template{}, model.ErrorStorage(err, "templates.id is not a valid UUID")
	}
	if t.EntryTypeID, err = uuid.Parse(entryTypeIDStr); err != nil {
		return model.Template{}, model.ErrorStorage(err, "templates.entry_type_id is not a valid UUID")
	}
	if t.DeviceID, err = uuid.Parse(deviceIDStr); err != nil {
		return model.Template{}, model.ErrorStorage(err, "templates.device_id is not a valid UUID")
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return model.Template{}, model.ErrorStorage(err, "templates.created_at is not a valid timestamp")
	}
	t.Name = name
	if description.Valid {
		t.Description = &description.String
	}
	return t, nil
}

const templateBaseColumns = `id, name, entry_type_id, description, created_at, device_id`

// CreateTemplate creates a template bound to an entry type, failing if the
// name is taken or the entry type is missing.
func (s *Store) CreateTemplate(in model.NewTemplate) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if err := mustExist(tx, "entry_types", in.EntryTypeID, "entry type"); err != nil {
			return err
		}

		var exists int
		scanErr := tx.QueryRow(`SELECT 1 FROM templates WHERE name = ?`, in.Name).Scan(&exists)
		if scanErr == nil {
			return model.ErrorValidation("template name %q already taken", in.Name)
		}
		if scanErr != sql.ErrNoRows {
			return model.ErrorStorage(scanErr, "failed to check template name")
		}

		now := time.Now().UTC()
		id = uuid.New()

		var descriptionArg any
		if in.Description != nil {
			descriptionArg = *in.Description
		}

		if _, err := tx.Exec(`
			INSERT INTO templates(id, name, entry_type_id, description, created_at, device_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), in.Name, in.EntryTypeID.String(), descriptionArg, now.Format(time.RFC3339Nano), in.DeviceID.String()); err != nil {
			return model.ErrorStorage(err, "failed to insert template")
		}
		if _, err := tx.Exec(`
			INSERT INTO template_versions(id, template_id, version, template_json, created_at, active)
			VALUES (?, ?, 1, ?, ?, 1)`,
			uuid.New().String(), id.String(), string(in.TemplateJSON), now.Format(time.RFC3339Nano)); err != nil {
			return model.ErrorStorage(err, "failed to insert template version")
		}

		if err := touchLastModified(tx, now); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) getTemplateByQuery(query, arg string, notFoundMsg string) (model.Template, error) {
	var out model.Template
	err := s.withLock(func() error {
		row := s.db.QueryRow(query, arg)
		base, err := scanTemplateBase(row)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound(notFoundMsg)
		}
		if err != nil {
			return err
		}

		_, version, templateJSON, err := activeTemplateVersion(s.db, base.ID)
		if err != nil {
			return err
		}
		base.Version = version
		base.TemplateJSON = templateJSON
		out = base
		return nil
	})
	return out, err
}

// GetTemplate returns a template's active version by name.
func (s *Store) GetTemplate(name string) (model.Template, error) {
	return s.getTemplateByQuery(`SELECT `+templateBaseColumns+` FROM templates WHERE name = ?`, name, "template not found")
}

// GetTemplateByID returns a template's active version by id.
func (s *Store) GetTemplateByID(id uuid.UUID) (model.Template, error) {
	return s.getTemplateByQuery(`SELECT `+templateBaseColumns+` FROM templates WHERE id = ?`, id.String(), "template not found")
}

// ListTemplates returns each template at its active version, ordered by
// name.
func (s *Store) ListTemplates() ([]model.Template, error) {
	var out []model.Template
	err := s.withLock(func() error {
		rows, err := s.db.Query(`SELECT ` + templateBaseColumns + ` FROM templates ORDER BY name ASC`)
		if err != nil {
			return model.ErrorStorage(err, "failed to list templates")
		}
		defer rows.Close()

		var bases []model.Template
		for rows.Next() {
			base, err := scanTemplateBase(rows)
			if err != nil {
				return err
			}
			bases = append(bases, base)
		}
		if err := rows.Err(); err != nil {
			return model.ErrorStorage(err, "failed to iterate templates")
		}

		for _, base := range bases {
			_, version, templateJSON, err := activeTemplateVersion(s.db, base.ID)
			if err != nil {
				return err
			}
			base.Version = version
			base.TemplateJSON = templateJSON
			out = append(out, base)
		}
		return nil
	})
	return out, err
}

// UpdateTemplate deactivates the prior active version and inserts a new one
// at version = max+1, returning the new version number.
func (s *Store) UpdateTemplate(id uuid.UUID, templateJSON json.RawMessage) (int, error) {
	var newVersion int
	err := s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if err := mustExist(tx, "templates", id, "template"); err != nil {
			return err
		}

		var maxVersion int
		if err := tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM template_versions WHERE template_id = ?`,
			id.String()).Scan(&maxVersion); err != nil {
			return model.ErrorStorage(err, "failed to compute next template version")
		}
		newVersion = maxVersion + 1

		if _, err := tx.Exec(`UPDATE template_versions SET active = 0 WHERE template_id = ? AND active = 1`, id.String()); err != nil {
			return model.ErrorStorage(err, "failed to deactivate prior template versions")
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(`
			INSERT INTO template_versions(id, template_id, version, template_json, created_at, active)
			VALUES (?, ?, ?, ?, ?, 1)`,
			uuid.New().String(), id.String(), newVersion, string(templateJSON), now.Format(time.RFC3339Nano)); err != nil {
			return model.ErrorStorage(err, "failed to insert new template version")
		}

		if err := touchLastModified(tx, now); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// DeleteTemplate removes default-template links, versions, then the base
// row; entries that referenced the template via a historical insert are
// unaffected (templates only seed defaults, they are not foreign-keyed from
// entries).
func (s *Store) DeleteTemplate(id uuid.UUID) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM entry_type_templates WHERE template_id = ?`, id.String()); err != nil {
			return model.ErrorStorage(err, "failed to delete default-template links")
		}
		if _, err := tx.Exec(`DELETE FROM template_versions WHERE template_id = ?`, id.String()); err != nil {
			return model.ErrorStorage(err, "failed to delete template versions")
		}
		res, err := tx.Exec(`DELETE FROM templates WHERE id = ?`, id.String())
		if err != nil {
			return model.ErrorStorage(err, "failed to delete template")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return model.ErrorStorage(err, "failed to read rows affected")
		}
		if n == 0 {
			return model.ErrorNotFound("template %s not found", id)
		}

		if err := touchLastModified(tx, time.Now().UTC()); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// SetDefaultTemplate makes template the active default for entryType,
// deactivating any prior default and reactivating the link if it already
// existed from a previous, since-cleared default.
func (s *Store) SetDefaultTemplate(entryTypeID, templateID uuid.UUID) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if err := mustExist(tx, "entry_types", entryTypeID, "entry type"); err != nil {
			return err
		}

		var templateEntryTypeIDStr string
		err = tx.QueryRow(`SELECT entry_type_id FROM templates WHERE id = ?`, templateID.String()).Scan(&templateEntryTypeIDStr)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound("template %s not found", templateID)
		}
		if err != nil {
			return model.ErrorStorage(err, "failed to load template")
		}
		if templateEntryTypeIDStr != entryTypeID.String() {
			return model.ErrorValidation("template %s does not belong to entry type %s", templateID, entryTypeID)
		}

		if _, err := tx.Exec(`UPDATE entry_type_templates SET active = 0 WHERE entry_type_id = ? AND active = 1`,
			entryTypeID.String()); err != nil {
			return model.ErrorStorage(err, "failed to deactivate prior default template")
		}
		if _, err := tx.Exec(`
			INSERT INTO entry_type_templates(entry_type_id, template_id, active) VALUES (?, ?, 1)
			ON CONFLICT(entry_type_id, template_id) DO UPDATE SET active = 1`,
			entryTypeID.String(), templateID.String()); err != nil {
			return model.ErrorStorage(err, "failed to set default template")
		}

		if err := touchLastModified(tx, time.Now().UTC()); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// ClearDefaultTemplate deactivates the active default for entryType, if any.
func (s *Store) ClearDefaultTemplate(entryTypeID uuid.UUID) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`UPDATE entry_type_templates SET active = 0 WHERE entry_type_id = ? AND active = 1`,
			entryTypeID.String()); err != nil {
			return model.ErrorStorage(err, "failed to clear default template")
		}
		if err := touchLastModified(tx, time.Now().UTC()); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// GetDefaultTemplate returns the currently active default's active version
// for entryType, NotFound if none is set.
func (s *Store) GetDefaultTemplate(entryTypeID uuid.UUID) (model.Template, error) {
	var out model.Template
	err := s.withLock(func() error {
		var templateIDStr string
		err := s.db.QueryRow(`SELECT template_id FROM entry_type_templates WHERE entry_type_id = ? AND active = 1`,
			entryTypeID.String()).Scan(&templateIDStr)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound("no default template set for entry type %s", entryTypeID)
		}
		if err != nil {
			return model.ErrorStorage(err, "failed to load default template link")
		}

		templateID, err := uuid.Parse(templateIDStr)
		if err != nil {
			return model.ErrorStorage(err, "entry_type_templates.template_id is not a valid UUID")
		}

		row := s.db.QueryRow(`SELECT `+templateBaseColumns+` FROM templates WHERE id = ?`, templateID.String())
		base, err := scanTemplateBase(row)
		if err == sql.ErrNoRows {
			return model.ErrorStorage(nil, "default template link references missing template %s", templateID)
		}
		if err != nil {
			return err
		}

		_, version, templateJSON, err := activeTemplateVersion(s.db, base.ID)
		if err != nil {
			return err
		}
		base.Version = version
		base.TemplateJSON = templateJSON
		out = base
		return nil
	})
	return out, err
}
