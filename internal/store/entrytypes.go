package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/hotsaucejake/ledger-sub000/internal/validate"
)

// activeEntryTypeVersion is the row selected as "current" for an entry
// type: the single active=1 row, or MAX(version) as a defensive fallback.
// CheckIntegrity still flags the broken invariant that would make the
// fallback fire.
func activeEntryTypeVersion(q querier, entryTypeID uuid.UUID) (versionID uuid.UUID, version int, schemaJSON json.RawMessage, err error) {
	var idStr string
	row := q.QueryRow(`
		SELECT id, version, schema_json FROM entry_type_versions
		WHERE entry_type_id = ? AND active = 1
		ORDER BY version DESC LIMIT 1
	`, entryTypeID.String())
	scanErr := row.Scan(&idStr, &version, &schemaJSON)
	if scanErr == sql.ErrNoRows {
		row = q.QueryRow(`
			SELECT id, version, schema_json FROM entry_type_versions
			WHERE entry_type_id = ? ORDER BY version DESC LIMIT 1
		`, entryTypeID.String())
		scanErr = row.Scan(&idStr, &version, &schemaJSON)
	}
	if scanErr == sql.ErrNoRows {
		return uuid.Nil, 0, nil, model.ErrorNotFound("entry type %s has no versions", entryTypeID)
	}
	if scanErr != nil {
		return uuid.Nil, 0, nil, model.ErrorStorage(scanErr, "failed to load active entry type version")
	}
	versionID, err = uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, 0, nil, model.ErrorStorage(err, "entry_type_versions.id is not a valid UUID")
	}
	return versionID, version, schemaJSON, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers run
// either standalone or inside a mutation's transaction.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func scanEntryType(base model.EntryType, versionID uuid.UUID, version int, schemaJSON json.RawMessage) (model.EntryType, error) {
	var schema model.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return model.EntryType{}, model.ErrorSchema(err, "stored schema_json is not valid")
	}
	base.Version = version
	base.SchemaJSON = schemaJSON
	base.Schema = schema
	return base, nil
}

// CreateEntryType creates a brand-new entry type, or appends the next
// version if the name already exists.
func (s *Store) CreateEntryType(in model.NewEntryType) (uuid.UUID, error) {
	schema, err := validate.ValidateSchemaShape(in.SchemaJSON)
	if err != nil {
		return uuid.Nil, err
	}
	canonicalSchemaJSON, err := json.Marshal(schema)
	if err != nil {
		return uuid.Nil, model.ErrorJSON(err, "failed to marshal schema")
	}

	var entryTypeID uuid.UUID
	err = s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		now := time.Now().UTC()

		var existingID string
		scanErr := tx.QueryRow(`SELECT id FROM entry_types WHERE name = ?`, in.Name).Scan(&existingID)
		switch {
		case scanErr == sql.ErrNoRows:
			entryTypeID = uuid.New()
			if _, err := tx.Exec(`INSERT INTO entry_types(id, name, created_at, device_id) VALUES (?, ?, ?, ?)`,
				entryTypeID.String(), in.Name, now.Format(time.RFC3339Nano), in.DeviceID.String()); err != nil {
				return model.ErrorStorage(err, "failed to insert entry_types row")
			}
			if _, err := tx.Exec(`INSERT INTO entry_type_versions(id, entry_type_id, version, schema_json, created_at, active)
				VALUES (?, ?, 1, ?, ?, 1)`,
				uuid.New().String(), entryTypeID.String(), string(canonicalSchemaJSON), now.Format(time.RFC3339Nano)); err != nil {
				return model.ErrorStorage(err, "failed to insert entry_type_versions row")
			}
		case scanErr != nil:
			return model.ErrorStorage(scanErr, "failed to look up entry type by name")
		default:
			entryTypeID, err = uuid.Parse(existingID)
			if err != nil {
				return model.ErrorStorage(err, "entry_types.id is not a valid UUID")
			}
			var maxVersion int
			if err := tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM entry_type_versions WHERE entry_type_id = ?`,
				entryTypeID.String()).Scan(&maxVersion); err != nil {
				return model.ErrorStorage(err, "failed to compute next version")
			}
			if _, err := tx.Exec(`UPDATE entry_type_versions SET active = 0 WHERE entry_type_id = ? AND active = 1`,
				entryTypeID.String()); err != nil {
				return model.ErrorStorage(err, "failed to deactivate prior entry type versions")
			}
			if _, err := tx.Exec(`INSERT INTO entry_type_versions(id, entry_type_id, version, schema_json, created_at, active)
				VALUES (?, ?, ?, ?, ?, 1)`,
				uuid.New().String(), entryTypeID.String(), maxVersion+1, string(canonicalSchemaJSON), now.Format(time.RFC3339Nano)); err != nil {
				return model.ErrorStorage(err, "failed to insert new entry_type_versions row")
			}
		}

		if err := touchLastModified(tx, now); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return model.ErrorStorage(err, "failed to commit entry type mutation")
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return entryTypeID, nil
}

// GetEntryType returns the active version of the named entry type, or a
// NotFound error if the name is unknown.
func (s *Store) GetEntryType(name string) (model.EntryType, error) {
	var out model.EntryType
	err := s.withLock(func() error {
		var idStr, deviceIDStr, createdAtStr string
		err := s.db.QueryRow(`SELECT id, created_at, device_id FROM entry_types WHERE name = ?`, name).
			Scan(&idStr, &createdAtStr, &deviceIDStr)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound("entry type %q not found", name)
		}
		if err != nil {
			return model.ErrorStorage(err, "failed to look up entry type")
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return model.ErrorStorage(err, "entry_types.id is not a valid UUID")
		}
		deviceID, err := uuid.Parse(deviceIDStr)
		if err != nil {
			return model.ErrorStorage(err, "entry_types.device_id is not a valid UUID")
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return model.ErrorStorage(err, "entry_types.created_at is not a valid timestamp")
		}

		versionID, version, schemaJSON, err := activeEntryTypeVersion(s.db, id)
		if err != nil {
			return err
		}

		out, err = scanEntryType(model.EntryType{ID: id, Name: name, CreatedAt: createdAt, DeviceID: deviceID}, versionID, version, schemaJSON)
		return err
	})
	return out, err
}

// ListEntryTypes returns one row per name, each at its active version,
// ordered by name.
func (s *Store) ListEntryTypes() ([]model.EntryType, error) {
	var out []model.EntryType
	err := s.withLock(func() error {
		rows, err := s.db.Query(`SELECT id, name, created_at, device_id FROM entry_types ORDER BY name ASC`)
		if err != nil {
			return model.ErrorStorage(err, "failed to list entry types")
		}
		defer rows.Close()

		type baseRow struct {
			id, name, createdAt, deviceID string
		}
		var bases []baseRow
		for rows.Next() {
			var b baseRow
			if err := rows.Scan(&b.id, &b.name, &b.createdAt, &b.deviceID); err != nil {
				return model.ErrorStorage(err, "failed to scan entry type row")
			}
			bases = append(bases, b)
		}
		if err := rows.Err(); err != nil {
			return model.ErrorStorage(err, "failed to iterate entry type rows")
		}

		for _, b := range bases {
			id, err := uuid.Parse(b.id)
			if err != nil {
				return model.ErrorStorage(err, "entry_types.id is not a valid UUID")
			}
			deviceID, err := uuid.Parse(b.deviceID)
			if err != nil {
				return model.ErrorStorage(err, "entry_types.device_id is not a valid UUID")
			}
			createdAt, err := time.Parse(time.RFC3339Nano, b.createdAt)
			if err != nil {
				return model.ErrorStorage(err, "entry_types.created_at is not a valid timestamp")
			}

			versionID, version, schemaJSON, err := activeEntryTypeVersion(s.db, id)
			if err != nil {
				return err
			}
			et, err := scanEntryType(model.EntryType{ID: id, Name: b.name, CreatedAt: createdAt, DeviceID: deviceID}, versionID, version, schemaJSON)
			if err != nil {
				return err
			}
			out = append(out, et)
		}
		return nil
	})
	return out, err
}
