package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCreatesNewFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "ledger.bin")

	require.NoError(t, Write(dest, []byte("hello"), 0o600))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "ledger.bin")

	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))
	require.NoError(t, Write(dest, []byte("new content"), 0o600))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))
}

func TestWriteLeavesNoPartialFileOnFailure(t *testing.T) {
	// Writing to a nonexistent parent directory must fail cleanly, leaving
	// no destination file behind.
	dir := t.TempDir()
	dest := filepath.Join(dir, "missing-subdir", "ledger.bin")

	err := Write(dest, []byte("data"), 0o600)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenameWithFallbackOverwritesReadOnlyTarget(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "src.tmp")
	dest := filepath.Join(dir, "dest.bin")

	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o400))
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0o600))

	require.NoError(t, renameWithFallback(tmp, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))
}
