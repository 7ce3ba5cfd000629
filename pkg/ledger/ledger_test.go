package ledger_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotsaucejake/ledger-sub000/pkg/ledger"
)

func newTestLedger(t *testing.T) (*ledger.Ledger, uuid.UUID, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.ledger")
	l, deviceID, err := ledger.Create("correct horse battery staple", ledger.Config{Path: path})
	require.NoError(t, err)
	return l, deviceID, path
}

func TestCreateOpenRoundTrip(t *testing.T) {
	l, deviceID, path := newTestLedger(t)
	require.NoError(t, l.Close("correct horse battery staple"))

	reopened, err := ledger.Open("correct horse battery staple", ledger.Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close("correct horse battery staple")

	meta, err := reopened.Metadata()
	require.NoError(t, err)
	assert.Equal(t, deviceID, meta.DeviceID)
}

func TestOpenWrongPassphraseFails(t *testing.T) {
	l, _, path := newTestLedger(t)
	require.NoError(t, l.Close("correct horse battery staple"))

	_, err := ledger.Open("wrong passphrase here", ledger.Config{Path: path})
	require.Error(t, err)
	kind, ok := ledger.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindIncorrectPassphrase, kind)
}

func TestEntryLifecycleAndSearch(t *testing.T) {
	l, deviceID, _ := newTestLedger(t)
	defer l.Close("correct horse battery staple")

	typeID, err := l.CreateEntryType(ledger.NewEntryType{
		Name:       "journal",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"text","required":true}]}`),
		DeviceID:   deviceID,
	})
	require.NoError(t, err)

	entryID, err := l.AddEntry(ledger.NewEntry{
		EntryTypeID: typeID,
		Data:        json.RawMessage(`{"body":"first steps with the new ledger"}`),
		Tags:        []string{"Setup", "setup"},
		DeviceID:    deviceID,
	})
	require.NoError(t, err)

	got, err := l.GetEntry(entryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"setup"}, got.Tags)

	hits, err := l.SearchEntries("ledger")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, entryID, hits[0].ID)

	listed, err := l.ListEntries(ledger.ListFilter{EntryTypeID: &typeID})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCompositionAttachAndIntegrity(t *testing.T) {
	l, deviceID, _ := newTestLedger(t)
	defer l.Close("correct horse battery staple")

	typeID, err := l.CreateEntryType(ledger.NewEntryType{
		Name:       "note",
		SchemaJSON: json.RawMessage(`{"fields":[{"name":"body","type":"text"}]}`),
		DeviceID:   deviceID,
	})
	require.NoError(t, err)

	entryID, err := l.AddEntry(ledger.NewEntry{
		EntryTypeID: typeID,
		Data:        json.RawMessage(`{"body":"grouped entry"}`),
		DeviceID:    deviceID,
	})
	require.NoError(t, err)

	compID, err := l.CreateComposition(ledger.NewComposition{Name: "trip-2026", DeviceID: deviceID})
	require.NoError(t, err)

	require.NoError(t, l.AttachEntryToComposition(entryID, compID))
	require.NoError(t, l.AttachEntryToComposition(entryID, compID)) // idempotent

	members, err := l.GetCompositionEntries(compID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	report, err := l.CheckIntegrity()
	require.NoError(t, err)
	assert.True(t, report.OK())
}
