// Package store is the storage engine facade: it owns the single in-memory
// database image for one open handle, guards it with a mutex, and drives
// the crypto/atomic-file lifecycle around it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hotsaucejake/ledger-sub000/internal/atomicfile"
	"github.com/hotsaucejake/ledger-sub000/internal/crypto"
	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/hotsaucejake/ledger-sub000/internal/sqlitedb"
	"github.com/hotsaucejake/ledger-sub000/internal/validate"
)

// Store is a single open handle on one encrypted file. It is safe for
// concurrent use by multiple goroutines; internally all operations
// serialize on mu.
type Store struct {
	mu         sync.Mutex
	poisoned   bool
	db         *sql.DB
	path       string
	passphrase string
	metadata   model.Metadata
	logger     zerolog.Logger

	schemaCache map[uuid.UUID]*gojsonschema.Schema
}

// Create builds a brand-new store at path. It fails if a file already
// exists there.
func Create(path, passphrase string, logger zerolog.Logger) (*Store, uuid.UUID, error) {
	if err := crypto.ValidatePassphrase(passphrase); err != nil {
		return nil, uuid.Nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, uuid.Nil, model.ErrorInvalidInput("ledger already exists at %s", path)
	} else if !os.IsNotExist(err) {
		return nil, uuid.Nil, model.ErrorIO(err, "failed to stat %s", path)
	}

	db, err := sqlitedb.OpenEmpty()
	if err != nil {
		return nil, uuid.Nil, err
	}

	deviceID := uuid.New()
	now := time.Now().UTC()
	if err := writeMetadataRow(db, model.Metadata{
		FormatVersion: model.FormatVersion,
		DeviceID:      deviceID,
		CreatedAt:     now,
		LastModified:  now,
	}); err != nil {
		db.Close()
		return nil, uuid.Nil, err
	}

	s := &Store{
		db:          db,
		path:        path,
		passphrase:  passphrase,
		logger:      logger.With().Str("component", "store").Str("path", path).Logger(),
		schemaCache: make(map[uuid.UUID]*gojsonschema.Schema),
	}
	s.metadata = model.Metadata{FormatVersion: model.FormatVersion, DeviceID: deviceID, CreatedAt: now, LastModified: now}

	if err := s.persistLocked(); err != nil {
		db.Close()
		return nil, uuid.Nil, err
	}

	s.logger.Info().Str("device_id", deviceID.String()).Msg("created ledger")
	return s, deviceID, nil
}

// Open decrypts and loads an existing store.
func Open(path, passphrase string, logger zerolog.Logger) (*Store, error) {
	if err := crypto.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrorLedgerNotFound()
		}
		return nil, model.ErrorIO(err, "failed to read %s", path)
	}

	plaintext, err := crypto.Decrypt(raw, passphrase)
	if err != nil {
		return nil, err
	}

	db, err := sqlitedb.Deserialize(plaintext)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.ApplySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	meta, err := readMetadataRow(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:          db,
		path:        path,
		passphrase:  passphrase,
		metadata:    meta,
		logger:      logger.With().Str("component", "store").Str("path", path).Logger(),
		schemaCache: make(map[uuid.UUID]*gojsonschema.Schema),
	}
	s.logger.Info().Str("device_id", meta.DeviceID.String()).Msg("opened ledger")
	return s, nil
}

// Close serializes, encrypts with passphrase (which may differ from the
// passphrase the store was opened with, effectively rekeying it), and
// atomically writes the file, then releases the in-memory image.
func (s *Store) Close(passphrase string) error {
	if err := crypto.ValidatePassphrase(passphrase); err != nil {
		return err
	}
	return s.withLock(func() error {
		s.passphrase = passphrase
		if err := s.persistLocked(); err != nil {
			return err
		}
		if err := s.db.Close(); err != nil {
			return model.ErrorStorage(err, "failed to close database handle")
		}
		return nil
	})
}

// Metadata returns a snapshot of the meta row.
func (s *Store) Metadata() (model.Metadata, error) {
	var out model.Metadata
	err := s.withLock(func() error {
		meta, err := readMetadataRow(s.db)
		if err != nil {
			return err
		}
		out = meta
		return nil
	})
	return out, err
}

// withLock serializes access to the store, detects a previously poisoned
// handle, and converts a panic inside fn into a Storage error and a
// permanently poisoned handle rather than letting the panic propagate.
func (s *Store) withLock(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return model.ErrorStorage(nil, "store handle is poisoned by a prior failure")
	}

	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			err = model.ErrorStorage(fmt.Errorf("%v", r), "internal panic during mutation")
		}
	}()

	return fn()
}

// touchLastModified advances meta.last_modified inside tx. Callers run this
// as the final step of a mutation's transaction.
func touchLastModified(tx *sql.Tx, now time.Time) error {
	_, err := tx.Exec(`UPDATE meta SET value = ? WHERE key = 'last_modified'`, now.Format(time.RFC3339Nano))
	if err != nil {
		return model.ErrorStorage(err, "failed to advance last_modified")
	}
	return nil
}

func writeMetadataRow(db *sql.DB, m model.Metadata) error {
	rows := []struct{ key, value string }{
		{"format_version", m.FormatVersion},
		{"device_id", m.DeviceID.String()},
		{"created_at", m.CreatedAt.Format(time.RFC3339Nano)},
		{"last_modified", m.LastModified.Format(time.RFC3339Nano)},
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO meta(key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, r.key, r.value); err != nil {
			return model.ErrorStorage(err, "failed to write meta row %s", r.key)
		}
	}
	return nil
}

func readMetadataRow(db *sql.DB) (model.Metadata, error) {
	keys := []string{"format_version", "device_id", "created_at", "last_modified"}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		var v string
		err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, k).Scan(&v)
		if err == sql.ErrNoRows {
			return model.Metadata{}, model.ErrorStorage(nil, "meta row missing required key %s", k)
		}
		if err != nil {
			return model.Metadata{}, model.ErrorStorage(err, "failed to read meta row %s", k)
		}
		values[k] = v
	}

	deviceID, err := uuid.Parse(values["device_id"])
	if err != nil {
		return model.Metadata{}, model.ErrorStorage(err, "meta device_id is not a valid UUID")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, values["created_at"])
	if err != nil {
		return model.Metadata{}, model.ErrorStorage(err, "meta created_at is not a valid timestamp")
	}
	lastModified, err := time.Parse(time.RFC3339Nano, values["last_modified"])
	if err != nil {
		return model.Metadata{}, model.ErrorStorage(err, "meta last_modified is not a valid timestamp")
	}

	return model.Metadata{
		FormatVersion: values["format_version"],
		DeviceID:      deviceID,
		CreatedAt:     createdAt,
		LastModified:  lastModified,
	}, nil
}

// persistLocked serializes the live image, encrypts it, and writes it
// atomically. Callers must hold mu.
func (s *Store) persistLocked() error {
	data, err := sqlitedb.Serialize(s.db)
	if err != nil {
		return err
	}
	ciphertext, err := crypto.Encrypt(data, s.passphrase)
	if err != nil {
		return err
	}
	if err := atomicfile.Write(s.path, ciphertext, 0o600); err != nil {
		return err
	}
	return nil
}

// schemaFor compiles and caches the validator for an entry type version,
// keyed by the version row's id (not the entry type's base id), since each
// version carries its own schema_json.
func (s *Store) schemaFor(versionID uuid.UUID, schema model.Schema) (*gojsonschema.Schema, error) {
	if compiled, ok := s.schemaCache[versionID]; ok {
		return compiled, nil
	}
	compiled, err := validate.CompileSchema(schema)
	if err != nil {
		return nil, err
	}
	s.schemaCache[versionID] = compiled
	return compiled, nil
}
