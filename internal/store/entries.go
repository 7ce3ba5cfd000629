package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/hotsaucejake/ledger-sub000/internal/validate"
)

// InsertEntry validates in.Data against the entry type's active schema
// version, normalizes tags, and inserts the entry plus its FTS row in one
// transaction.
func (s *Store) InsertEntry(in model.NewEntry) (uuid.UUID, error) {
	tags, err := validate.NormalizeTags(in.Tags)
	if err != nil {
		return uuid.Nil, err
	}
	if len(in.Data) > validate.MaxDataBytes {
		return uuid.Nil, model.ErrorValidation("entry data exceeds maximum size of %d bytes", validate.MaxDataBytes)
	}

	var entryID uuid.UUID
	err = s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM entry_types WHERE id = ?`, in.EntryTypeID.String()).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return model.ErrorNotFound("entry type %s not found", in.EntryTypeID)
			}
			return model.ErrorStorage(err, "failed to verify entry type")
		}

		versionID, version, schemaJSON, err := activeEntryTypeVersion(tx, in.EntryTypeID)
		if err != nil {
			return err
		}
		var schema model.Schema
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return model.ErrorSchema(err, "stored schema_json is not valid")
		}
		compiled, err := s.schemaFor(versionID, schema)
		if err != nil {
			return err
		}
		if err := validate.ValidateEntryData(compiled, schema, in.Data); err != nil {
			return err
		}

		now := time.Now().UTC()
		createdAt := now
		if in.CreatedAt != nil {
			createdAt = in.CreatedAt.UTC()
		}
		entryID = uuid.New()

		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return model.ErrorJSON(err, "failed to marshal tags")
		}

		var supersedesStr sql.NullString
		if in.Supersedes != nil {
			supersedesStr = sql.NullString{String: in.Supersedes.String(), Valid: true}
		}

		if _, err := tx.Exec(`
			INSERT INTO entries(id, entry_type_id, schema_version, data_json, tags_json, created_at, device_id, supersedes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entryID.String(), in.EntryTypeID.String(), version, string(in.Data), string(tagsJSON),
			createdAt.Format(time.RFC3339Nano), in.DeviceID.String(), supersedesStr); err != nil {
			return model.ErrorStorage(err, "failed to insert entry")
		}

		content := validate.FTSContentForEntry(in.Data)
		if _, err := tx.Exec(`INSERT INTO entries_fts(entry_id, content) VALUES (?, ?)`, entryID.String(), content); err != nil {
			return model.ErrorStorage(err, "failed to insert FTS row")
		}

		if err := touchLastModified(tx, now); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return model.ErrorStorage(err, "failed to commit entry insert")
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return entryID, nil
}

func scanEntryRow(rows interface {
	Scan(dest ...any) error
}) (model.Entry, error) {
	var e model.Entry
	var idStr, entryTypeIDStr, dataJSON, createdAtStr, deviceIDStr string
	var tagsJSON sql.NullString
	var supersedes sql.NullString

	if err := rows.Scan(&idStr, &entryTypeIDStr, &e.SchemaVersion, &dataJSON, &tagsJSON, &createdAtStr, &deviceIDStr, &supersedes); err != nil {
		if err == sql.ErrNoRows {
			return model.Entry{}, err
		}
		return model.Entry{}, model.ErrorStorage(err, "failed to scan entry row")
	}

	var err error
	if e.ID, err = uuid.Parse(idStr); err != nil {
		return model.Entry{}, model.ErrorStorage(err, "entries.id is not a valid UUID")
	}
	if e.EntryTypeID, err = uuid.Parse(entryTypeIDStr); err != nil {
		return model.Entry{}, model.ErrorStorage(err, "entries.entry_type_id is not a valid UUID")
	}
	if e.DeviceID, err = uuid.Parse(deviceIDStr); err != nil {
		return model.Entry{}, model.ErrorStorage(err, "entries.device_id is not a valid UUID")
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return model.Entry{}, model.ErrorStorage(err, "entries.created_at is not a valid timestamp")
	}
	e.Data = json.RawMessage(dataJSON)

	if tagsJSON.Valid {
		if err := json.Unmarshal([]byte(tagsJSON.String), &e.Tags); err != nil {
			return model.Entry{}, model.ErrorStorage(err, "entries.tags_json is not valid JSON")
		}
	}
	if supersedes.Valid {
		id, err := uuid.Parse(supersedes.String)
		if err != nil {
			return model.Entry{}, model.ErrorStorage(err, "entries.supersedes is not a valid UUID")
		}
		e.Supersedes = &id
	}
	return e, nil
}

const entryColumns = `id, entry_type_id, schema_version, data_json, tags_json, created_at, device_id, supersedes`

// GetEntry performs a strict UUID lookup, returning a NotFound error if the
// id is absent.
func (s *Store) GetEntry(id uuid.UUID) (model.Entry, error) {
	var out model.Entry
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id.String())
		e, err := scanEntryRow(row)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound("entry %s not found", id)
		}
		if err != nil {
			if _, ok := model.KindOf(err); ok {
				return err
			}
			return model.ErrorStorage(err, "failed to load entry")
		}
		out = e
		return nil
	})
	return out, err
}

// ListEntries applies filter and returns matches ordered by created_at
// descending.
func (s *Store) ListEntries(filter model.ListFilter) ([]model.Entry, error) {
	var out []model.Entry
	err := s.withLock(func() error {
		query := `SELECT ` + entryColumns + ` FROM entries e WHERE 1=1`
		var args []any

		if filter.EntryTypeID != nil {
			query += ` AND entry_type_id = ?`
			args = append(args, filter.EntryTypeID.String())
		}
		if filter.Since != nil {
			query += ` AND created_at >= ?`
			args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
		}
		if filter.Until != nil {
			query += ` AND created_at <= ?`
			args = append(args, filter.Until.UTC().Format(time.RFC3339Nano))
		}
		if filter.Tag != nil {
			normalized, err := validate.NormalizeTags([]string{*filter.Tag})
			if err != nil {
				return err
			}
			if len(normalized) == 0 {
				return nil
			}
			query += ` AND tags_json IS NOT NULL AND EXISTS (
				SELECT 1 FROM json_each(tags_json) WHERE json_each.value = ?
			)`
			args = append(args, normalized[0])
		}
		if filter.CompositionID != nil {
			query += ` AND id IN (SELECT entry_id FROM entry_compositions WHERE composition_id = ?)`
			args = append(args, filter.CompositionID.String())
		}

		query += ` ORDER BY created_at DESC, id DESC`
		if filter.Limit > 0 {
			query += ` LIMIT ?`
			args = append(args, filter.Limit)
		}

		rows, err := s.db.Query(query, args...)
		if err != nil {
			return model.ErrorStorage(err, "failed to list entries")
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntryRow(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// SearchEntries passes query to the FTS table and orders hits by FTS
// relevance, then created_at descending.
func (s *Store) SearchEntries(query string) ([]model.Entry, error) {
	var out []model.Entry
	err := s.withLock(func() error {
		rows, err := s.db.Query(`
			SELECT `+prefixColumns("e.", entryColumns)+`
			FROM entries e
			JOIN entries_fts fts ON fts.entry_id = e.id
			WHERE entries_fts MATCH ?
			ORDER BY rank, e.created_at DESC, e.id DESC
		`, query)
		if err != nil {
			return model.ErrorStorage(err, "failed to search entries")
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntryRow(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// SupersededEntryIDs returns the distinct set of entry ids that have been
// replaced by a later entry's supersedes field.
func (s *Store) SupersededEntryIDs() ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := s.withLock(func() error {
		rows, err := s.db.Query(`SELECT DISTINCT supersedes FROM entries WHERE supersedes IS NOT NULL`)
		if err != nil {
			return model.ErrorStorage(err, "failed to query superseded ids")
		}
		defer rows.Close()

		for rows.Next() {
			var idStr string
			if err := rows.Scan(&idStr); err != nil {
				return model.ErrorStorage(err, "failed to scan superseded id")
			}
			id, err := uuid.Parse(idStr)
			if err != nil {
				return model.ErrorStorage(err, "supersedes value is not a valid UUID")
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	return out, err
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}
