package store

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.ledger")
	s, _, err := Create(path, "correct-horse-battery", testLogger())
	require.NoError(t, err)
	return s, path
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.ledger")

	s, deviceID, err := Create(path, "secret-correct-1", testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close("secret-correct-1"))

	opened, err := Open(path, "secret-correct-1", testLogger())
	require.NoError(t, err)
	meta, err := opened.Metadata()
	require.NoError(t, err)
	assert.Equal(t, deviceID, meta.DeviceID)
	require.NoError(t, opened.Close("secret-correct-1"))

	_, err = Open(path, "wrong-pass-xyz", testLogger())
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindIncorrectPassphrase, kind)
}

func TestCreateFailsIfFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.ledger")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o600))

	_, _, err := Create(path, "a-passphrase-123", testLogger())
	require.Error(t, err)
}

func TestOpenFailsLedgerNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.ledger"), "a-passphrase-123", testLogger())
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindLedgerNotFound, kind)
}

func TestEntryInsertAndSearch(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string","required":true}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)

	entryID, err := s.InsertEntry(model.NewEntry{
		EntryTypeID: entryTypeID,
		Data:        json.RawMessage(`{"body":"searchable content"}`),
		DeviceID:    device,
	})
	require.NoError(t, err)

	hits, err := s.SearchEntries("searchable")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, entryID, hits[0].ID)

	all, err := s.ListEntries(model.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entryID, all[0].ID)
}

func TestTagNormalizationOnInsertAndFilter(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "note",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)

	entryID, err := s.InsertEntry(model.NewEntry{
		EntryTypeID: entryTypeID,
		Data:        json.RawMessage(`{"body":"x"}`),
		Tags:        []string{"Tag-One", "tag-one", "Second"},
		DeviceID:    device,
	})
	require.NoError(t, err)

	got, err := s.GetEntry(entryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag-one", "second"}, got.Tags)

	alpha := "Alpha"
	empty, err := s.ListEntries(model.ListFilter{Tag: &alpha})
	require.NoError(t, err)
	assert.Empty(t, empty)

	tagOne := "Tag-One"
	matches, err := s.ListEntries(model.ListFilter{Tag: &tagOne})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, entryID, matches[0].ID)
}

func TestEntryTypeVersioning(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	s1 := json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`)
	s2 := json.RawMessage(`{"fields":[{"name":"body","type":"string"},{"name":"mood","type":"string"}]}`)

	id1, err := s.CreateEntryType(model.NewEntryType{Name: "journal", SchemaJSON: s1, DeviceID: device})
	require.NoError(t, err)
	id2, err := s.CreateEntryType(model.NewEntryType{Name: "journal", SchemaJSON: s2, DeviceID: device})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "recreating under the same name keeps the base id stable")

	types, err := s.ListEntryTypes()
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, 2, types[0].Version)

	fetched, err := s.GetEntryType("journal")
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.Version)
	assert.Len(t, fetched.Schema.Fields, 2)
}

func TestSupersede(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)

	e1, err := s.InsertEntry(model.NewEntry{EntryTypeID: entryTypeID, Data: json.RawMessage(`{"body":"first"}`), DeviceID: device})
	require.NoError(t, err)
	e2, err := s.InsertEntry(model.NewEntry{EntryTypeID: entryTypeID, Data: json.RawMessage(`{"body":"second"}`), DeviceID: device, Supersedes: &e1})
	require.NoError(t, err)

	superseded, err := s.SupersededEntryIDs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{e1}, superseded)

	all, err := s.ListEntries(model.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, e2, all[0].ID, "most recently created entry sorts first")
}

func TestInsertEntrySupersedesUnknownIDAccepted(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)

	unknown := uuid.New()
	_, err = s.InsertEntry(model.NewEntry{
		EntryTypeID: entryTypeID,
		Data:        json.RawMessage(`{"body":"x"}`),
		DeviceID:    device,
		Supersedes:  &unknown,
	})
	require.NoError(t, err, "supersedes is not referentially checked")
}

func TestInsertEntryRejectsUnknownField(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)

	_, err = s.InsertEntry(model.NewEntry{
		EntryTypeID: entryTypeID,
		Data:        json.RawMessage(`{"body":"x","extra":true}`),
		DeviceID:    device,
	})
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindValidation, kind)
}

func TestCompositionAttachIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)
	entryID, err := s.InsertEntry(model.NewEntry{EntryTypeID: entryTypeID, Data: json.RawMessage(`{"body":"x"}`), DeviceID: device})
	require.NoError(t, err)
	compositionID, err := s.CreateComposition(model.NewComposition{Name: "trip", DeviceID: device})
	require.NoError(t, err)

	require.NoError(t, s.AttachEntryToComposition(entryID, compositionID))
	require.NoError(t, s.AttachEntryToComposition(entryID, compositionID))

	links, err := s.GetCompositionEntries(compositionID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestCompositionDetachMissingFailsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()
	compositionID, err := s.CreateComposition(model.NewComposition{Name: "trip", DeviceID: device})
	require.NoError(t, err)

	err = s.DetachEntryFromComposition(uuid.New(), compositionID)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindNotFound, kind)
}

func TestDefaultTemplateLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)
	templateID, err := s.CreateTemplate(model.NewTemplate{
		Name:         "daily",
		EntryTypeID:  entryTypeID,
		TemplateJSON: json.RawMessage(`{"tags":["daily"]}`),
		DeviceID:     device,
	})
	require.NoError(t, err)

	require.NoError(t, s.SetDefaultTemplate(entryTypeID, templateID))
	def, err := s.GetDefaultTemplate(entryTypeID)
	require.NoError(t, err)
	assert.Equal(t, templateID, def.ID)

	require.NoError(t, s.ClearDefaultTemplate(entryTypeID))
	_, err = s.GetDefaultTemplate(entryTypeID)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindNotFound, kind)
}

func TestCheckIntegritySucceedsOnCleanStore(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)
	_, err = s.InsertEntry(model.NewEntry{EntryTypeID: entryTypeID, Data: json.RawMessage(`{"body":"x"}`), DeviceID: device})
	require.NoError(t, err)

	report, err := s.CheckIntegrity()
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestCheckIntegrityDetectsFTSDrift(t *testing.T) {
	s, _ := newTestStore(t)
	device := uuid.New()

	entryTypeID, err := s.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)
	entryID, err := s.InsertEntry(model.NewEntry{EntryTypeID: entryTypeID, Data: json.RawMessage(`{"body":"x"}`), DeviceID: device})
	require.NoError(t, err)

	_, err = s.db.Exec(`DELETE FROM entries_fts WHERE entry_id = ?`, entryID.String())
	require.NoError(t, err)

	report, err := s.CheckIntegrity()
	require.Error(t, err, "a broken invariant must surface as a Storage error naming it")
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindStorage, kind)
	require.False(t, report.OK())

	found := false
	for _, v := range report.Violations {
		if v.Invariant == "fts_coherence" {
			found = true
		}
	}
	assert.True(t, found)
}

// TestConcurrentHandlesAreIsolated guards against the two Store handles
// aliasing the same sqlite3 shared-cache in-memory database: each handle
// gets its own database name, so mutating one must never appear in the
// other.
func TestConcurrentHandlesAreIsolated(t *testing.T) {
	device := uuid.New()

	dirA := t.TempDir()
	sA, _, err := Create(filepath.Join(dirA, "a.ledger"), "passphrase-for-a", testLogger())
	require.NoError(t, err)

	dirB := t.TempDir()
	sB, _, err := Create(filepath.Join(dirB, "b.ledger"), "passphrase-for-b", testLogger())
	require.NoError(t, err)

	_, err = sA.CreateEntryType(model.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"string"}]}`),
		DeviceID:   device,
	})
	require.NoError(t, err)

	typesA, err := sA.ListEntryTypes()
	require.NoError(t, err)
	assert.Len(t, typesA, 1)

	typesB, err := sB.ListEntryTypes()
	require.NoError(t, err)
	assert.Empty(t, typesB, "handle B must not see handle A's entry type")

	require.NoError(t, sA.Close("passphrase-for-a"))
	require.NoError(t, sB.Close("passphrase-for-b"))
}
