// Package sqlitedb is the embedded relational store: an in-memory SQLite
// database holding the store's schema, indexes, and FTS5 index, plus the
// serialize/deserialize primitives used to move the whole image in and out
// of the encrypted envelope.
//
// Building this package requires cgo and two mattn/go-sqlite3 build tags:
// "sqlite_fts5" to link FTS5 support in, and "sqlite_serialize" to expose
// the (*sqlite3.SQLiteConn).Serialize/.Deserialize methods this package's
// own Serialize/Deserialize call
// (`go build -tags "sqlite_fts5 sqlite_serialize"`). Without
// "sqlite_serialize" the driver still builds, but the serialize path used
// by every Close/Open round-trip has no link target.
package sqlitedb

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

// schemaDDL creates every table owned by this package. Statements are
// idempotent (IF NOT EXISTS) because Deserialize loads an already-populated
// image and OpenEmpty is also used to build a brand-new, empty image.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entry_types (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	device_id  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entry_type_versions (
	id            TEXT PRIMARY KEY,
	entry_type_id TEXT NOT NULL REFERENCES entry_types(id),
	version       INTEGER NOT NULL,
	schema_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	active        INTEGER NOT NULL DEFAULT 0,
	UNIQUE(entry_type_id, version)
);
CREATE INDEX IF NOT EXISTS idx_entry_type_versions_active
	ON entry_type_versions(entry_type_id, active);

CREATE TABLE IF NOT EXISTS entries (
	id             TEXT PRIMARY KEY,
	entry_type_id  TEXT NOT NULL REFERENCES entry_types(id),
	schema_version INTEGER NOT NULL,
	data_json      TEXT NOT NULL,
	tags_json      TEXT,
	created_at     TEXT NOT NULL,
	device_id      TEXT NOT NULL,
	supersedes     TEXT
);
CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(entry_type_id);
CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);
CREATE INDEX IF NOT EXISTS idx_entries_supersedes ON entries(supersedes);

CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
	entry_id UNINDEXED,
	content,
	tokenize = 'porter'
);

CREATE TABLE IF NOT EXISTS compositions (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT,
	created_at    TEXT NOT NULL,
	device_id     TEXT NOT NULL,
	metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS entry_compositions (
	entry_id       TEXT NOT NULL REFERENCES entries(id),
	composition_id TEXT NOT NULL REFERENCES compositions(id),
	added_at       TEXT NOT NULL,
	PRIMARY KEY(entry_id, composition_id)
);

CREATE TABLE IF NOT EXISTS templates (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	entry_type_id TEXT NOT NULL REFERENCES entry_types(id),
	description   TEXT,
	created_at    TEXT NOT NULL,
	device_id     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS template_versions (
	id            TEXT PRIMARY KEY,
	template_id   TEXT NOT NULL REFERENCES templates(id),
	version       INTEGER NOT NULL,
	template_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	active        INTEGER NOT NULL DEFAULT 0,
	UNIQUE(template_id, version)
);
CREATE INDEX IF NOT EXISTS idx_template_versions_active
	ON template_versions(template_id, active);

CREATE TABLE IF NOT EXISTS entry_type_templates (
	entry_type_id TEXT NOT NULL REFERENCES entry_types(id),
	template_id   TEXT NOT NULL REFERENCES templates(id),
	active        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(entry_type_id, template_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_default_template_active
	ON entry_type_templates(entry_type_id) WHERE active = 1;
`

// OpenEmpty opens a brand-new in-memory database with the full schema
// applied and foreign keys enforced. Used by Create to build a fresh
// image; Deserialize opens its own database instead.
//
// Each call gets its own uniquely named shared-cache database
// (file:ledger_<uuid>?mode=memory&cache=shared): sqlite3's shared cache is
// keyed by name within the process, so two handles opened with the same
// fixed name would alias one another's in-memory database instead of each
// owning an independent image.
func OpenEmpty() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared&_foreign_keys=on", uuid.New().String())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, model.ErrorStorage(err, "failed to open in-memory database")
	}
	// The pool holds exactly one connection, so every statement on db runs
	// against that same connection and the in-memory image it keeps open.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, model.ErrorStorage(err, "failed to initialize schema")
	}
	return db, nil
}

// ApplySchema re-applies the DDL to db; used after Deserialize loads a page
// image so that any table added by a newer format_version (there is none
// yet, format_version is fixed at "0.1") would still be present.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return model.ErrorStorage(err, "failed to apply schema")
	}
	return nil
}
