package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

const compositionColumns = `id, name, description, created_at, device_id, metadata_json`

func scanComposition(scanner interface{ Scan(dest ...any) error }) (model.Composition, error) {
	var c model.Composition
	var idStr, name, createdAtStr, deviceIDStr string
	var description, metadataJSON sql.NullString

	if err := scanner.Scan(&idStr, &name, &description, &createdAtStr, &deviceIDStr, &metadataJSON); err != nil {
		if err == sql.ErrNoRows {
			return model.Composition{}, err
		}
		return model.Composition{}, model.ErrorStorage(err, "failed to scan composition row")
	}

	var err error
	if c.ID, err = uuid.Parse(idStr); err != nil {
		return model.Composition{}, model.ErrorStorage(err, "compositions.id is not a valid UUID")
	}
	if c.DeviceID, err = uuid.Parse(deviceIDStr); err != nil {
		return model.Composition{}, model.ErrorStorage(err, "compositions.device_id is not a valid UUID")
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return model.Composition{}, model.ErrorStorage(err, "compositions.created_at is not a valid timestamp")
	}
	c.Name = name
	if description.Valid {
		c.Description = &description.String
	}
	if metadataJSON.Valid {
		c.Metadata = json.RawMessage(metadataJSON.String)
	}
	return c, nil
}

// CreateComposition creates a new named grouping, failing Validation if the
// name is already taken.
func (s *Store) CreateComposition(in model.NewComposition) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		var exists int
		scanErr := tx.QueryRow(`SELECT 1 FROM compositions WHERE name = ?`, in.Name).Scan(&exists)
		if scanErr == nil {
			return model.ErrorValidation("composition name %q already taken", in.Name)
		}
		if scanErr != sql.ErrNoRows {
			return model.ErrorStorage(scanErr, "failed to check composition name")
		}

		now := time.Now().UTC()
		id = uuid.New()

		var metadataArg any
		if in.Metadata != nil {
			metadataArg = string(in.Metadata)
		}
		var descriptionArg any
		if in.Description != nil {
			descriptionArg = *in.Description
		}

		if _, err := tx.Exec(`
			INSERT INTO compositions(id, name, description, created_at, device_id, metadata_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), in.Name, descriptionArg, now.Format(time.RFC3339Nano), in.DeviceID.String(), metadataArg); err != nil {
			return model.ErrorStorage(err, "failed to insert composition")
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

// GetComposition looks up a composition by its unique name.
func (s *Store) GetComposition(name string) (model.Composition, error) {
	var out model.Composition
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+compositionColumns+` FROM compositions WHERE name = ?`, name)
		c, err := scanComposition(row)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound("composition %q not found", name)
		}
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// GetCompositionByID looks up a composition by id.
func (s *Store) GetCompositionByID(id uuid.UUID) (model.Composition, error) {
	var out model.Composition
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+compositionColumns+` FROM compositions WHERE id = ?`, id.String())
		c, err := scanComposition(row)
		if err == sql.ErrNoRows {
			return model.ErrorNotFound("composition %s not found", id)
		}
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ListCompositions returns all compositions ordered by name.
func (s *Store) ListCompositions(filter model.CompositionFilter) ([]model.Composition, error) {
	var out []model.Composition
	err := s.withLock(func() error {
		query := `SELECT ` + compositionColumns + ` FROM compositions ORDER BY name ASC`
		var args []any
		if filter.Limit > 0 {
			query += ` LIMIT ?`
			args = append(args, filter.Limit)
		}
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return model.ErrorStorage(err, "failed to list compositions")
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanComposition(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// RenameComposition updates a composition's name.
func (s *Store) RenameComposition(id uuid.UUID, newName string) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM compositions WHERE id = ?`, id.String()).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return model.ErrorNotFound("composition %s not found", id)
			}
			return model.ErrorStorage(err, "failed to verify composition")
		}

		var taken int
		scanErr := tx.QueryRow(`SELECT 1 FROM compositions WHERE name = ? AND id != ?`, newName, id.String()).Scan(&taken)
		if scanErr == nil {
			return model.ErrorValidation("composition name %q already taken", newName)
		}
		if scanErr != sql.ErrNoRows {
			return model.ErrorStorage(scanErr, "failed to check composition name")
		}

		if _, err := tx.Exec(`UPDATE compositions SET name = ? WHERE id = ?`, newName, id.String()); err != nil {
			return model.ErrorStorage(err, "failed to rename composition")
		}
		if err := touchLastModified(tx, time.Now().UTC()); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// DeleteComposition removes link rows then the composition row; entries
// referenced by it are untouched.
func (s *Store) DeleteComposition(id uuid.UUID) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM entry_compositions WHERE composition_id = ?`, id.String()); err != nil {
			return model.ErrorStorage(err, "failed to delete composition links")
		}

		res, err := tx.Exec(`DELETE FROM compositions WHERE id = ?`, id.String())
		if err != nil {
			return model.ErrorStorage(err, "failed to delete composition")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return model.ErrorStorage(err, "failed to read rows affected")
		}
		if n == 0 {
			return model.ErrorNotFound("composition %s not found", id)
		}

		if err := touchLastModified(tx, time.Now().UTC()); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// AttachEntryToComposition links entry to composition. Idempotent: if the
// link already exists, it succeeds silently.
func (s *Store) AttachEntryToComposition(entryID, compositionID uuid.UUID) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		if err := mustExist(tx, "entries", entryID, "entry"); err != nil {
			return err
		}
		if err := mustExist(tx, "compositions", compositionID, "composition"); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(`
			INSERT INTO entry_compositions(entry_id, composition_id, added_at) VALUES (?, ?, ?)
			ON CONFLICT(entry_id, composition_id) DO NOTHING`,
			entryID.String(), compositionID.String(), now.Format(time.RFC3339Nano)); err != nil {
			return model.ErrorStorage(err, "failed to attach entry to composition")
		}
		if err := touchLastModified(tx, now); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// DetachEntryFromComposition removes the link, failing NotFound if absent.
func (s *Store) DetachEntryFromComposition(entryID, compositionID uuid.UUID) error {
	return s.withLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return model.ErrorStorage(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		res, err := tx.Exec(`DELETE FROM entry_compositions WHERE entry_id = ? AND composition_id = ?`,
			entryID.String(), compositionID.String())
		if err != nil {
			return model.ErrorStorage(err, "failed to detach entry from composition")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return model.ErrorStorage(err, "failed to read rows affected")
		}
		if n == 0 {
			return model.ErrorNotFound("no link between entry %s and composition %s", entryID, compositionID)
		}
		if err := touchLastModified(tx, time.Now().UTC()); err != nil {
			return err
		}
		return commitOrStorageErr(tx)
	})
}

// GetEntryCompositions lists the compositions an entry belongs to.
func (s *Store) GetEntryCompositions(entryID uuid.UUID) ([]model.EntryComposition, error) {
	return s.listLinks(`SELECT entry_id, composition_id, added_at FROM entry_compositions WHERE entry_id = ? ORDER BY added_at DESC`, entryID.String())
}

// GetCompositionEntries lists an composition's member links, newest first.
func (s *Store) GetCompositionEntries(compositionID uuid.UUID) ([]model.EntryComposition, error) {
	return s.listLinks(`SELECT entry_id, composition_id, added_at FROM entry_compositions WHERE composition_id = ? ORDER BY added_at DESC`, compositionID.String())
}

func (s *Store) listLinks(query string, arg string) ([]model.EntryComposition, error) {
	var out []model.EntryComposition
	err := s.withLock(func() error {
		rows, err := s.db.Query(query, arg)
		if err != nil {
			return model.ErrorStorage(err, "failed to list composition links")
		}
		defer rows.Close()
		for rows.Next() {
			var entryIDStr, compositionIDStr, addedAtStr string
			if err := rows.Scan(&entryIDStr, &compositionIDStr, &addedAtStr); err != nil {
				return model.ErrorStorage(err, "failed to scan composition link")
			}
			entryID, err := uuid.Parse(entryIDStr)
			if err != nil {
				return model.ErrorStorage(err, "entry_compositions.entry_id is not a valid UUID")
			}
			compositionID, err := uuid.Parse(compositionIDStr)
			if err != nil {
				return model.ErrorStorage(err, "entry_compositions.composition_id is not a valid UUID")
			}
			addedAt, err := time.Parse(time.RFC3339Nano, addedAtStr)
			if err != nil {
				return model.ErrorStorage(err, "entry_compositions.added_at is not a valid timestamp")
			}
			out = append(out, model.EntryComposition{EntryID: entryID, CompositionID: compositionID, AddedAt: addedAt})
		}
		return rows.Err()
	})
	return out, err
}

// mustExist fails with NotFound if no row in table has the given id.
func mustExist(tx *sql.Tx, table string, id uuid.UUID, label string) error {
	var exists int
	err := tx.QueryRow(`SELECT 1 FROM `+table+` WHERE id = ?`, id.String()).Scan(&exists)
	if err == sql.ErrNoRows {
		return model.ErrorNotFound("%s %s not found", label, id)
	}
	if err != nil {
		return model.ErrorStorage(err, "failed to verify %s existence", label)
	}
	return nil
}

func commitOrStorageErr(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return model.ErrorStorage(err, "failed to commit transaction")
	}
	return nil
}
