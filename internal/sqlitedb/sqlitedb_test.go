package sqlitedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenEmptyCreatesAllTables(t *testing.T) {
	db, err := OpenEmpty()
	require.NoError(t, err)
	defer db.Close()

	tables := []string{
		"meta", "entry_types", "entry_type_versions", "entries", "entries_fts",
		"compositions", "entry_compositions", "templates", "template_versions",
		"entry_type_templates",
	}
	for _, tbl := range tables {
		var name string
		row := db.QueryRow("SELECT name FROM sqlite_master WHERE type IN ('table','view') AND name = ?", tbl)
		require.NoError(t, row.Scan(&name), "missing table %s", tbl)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	db, err := OpenEmpty()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO meta(key, value) VALUES ('format_version', '0.1')`)
	require.NoError(t, err)

	data, err := Serialize(db)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	defer restored.Close()

	var value string
	row := restored.QueryRow("SELECT value FROM meta WHERE key = 'format_version'")
	require.NoError(t, row.Scan(&value))
	require.Equal(t, "0.1", value)
}

func TestDeserializeEnforcesForeignKeys(t *testing.T) {
	db, err := OpenEmpty()
	require.NoError(t, err)
	defer db.Close()

	data, err := Serialize(db)
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	defer restored.Close()

	_, err = restored.Exec(
		`INSERT INTO entry_type_versions(id, entry_type_id, version, schema_json, created_at, active)
		 VALUES ('v1', 'missing-entry-type', 1, '{}', '2024-01-01T00:00:00Z', 1)`,
	)
	require.Error(t, err, "insert referencing a nonexistent entry_type must fail with foreign keys on")
}
