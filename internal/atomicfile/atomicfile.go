// Package atomicfile implements crash-safe replacement of a file's
// contents: after Write returns nil, the target contains exactly the new
// bytes; after a failure, the target is left untouched or absent, never
// partially written.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// Write atomically replaces path's contents with data.
//
// It creates a uniquely named temp file in path's parent directory with
// O_EXCL semantics, writes the full payload, fsyncs it, then renames it
// over path. If the rename fails because the platform refuses to overwrite
// an existing file, the destination is removed and the rename retried once.
// The temp file is best-effort removed on any failure path.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf("%s.%d.tmp", filepath.Base(path), time.Now().UnixNano()))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return model.ErrorStorage(err, "failed to create temp file %s", tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return model.ErrorStorage(err, "failed to write temp file %s", tmpPath)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return model.ErrorStorage(err, "failed to fsync temp file %s", tmpPath)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return model.ErrorStorage(err, "failed to close temp file %s", tmpPath)
	}

	if err := renameWithFallback(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return model.ErrorStorage(err, "failed to finalize %s", path)
	}

	return nil
}

// renameWithFallback renames tmpPath over destination. Rename over an
// existing file is atomic and permitted on Unix, so a failure there is a
// genuine error; only the specific "destination already exists" error some
// platforms (Windows) raise for overwrite-rename is retried, by removing the
// destination first and renaming once more.
func renameWithFallback(tmpPath, destination string) error {
	initialErr := os.Rename(tmpPath, destination)
	if initialErr == nil {
		return nil
	}
	if !errors.Is(initialErr, fs.ErrExist) {
		return initialErr
	}

	_ = os.Remove(destination)
	if retryErr := os.Rename(tmpPath, destination); retryErr != nil {
		return fmt.Errorf("atomic rename failed (initial: %v, retry: %v)", initialErr, retryErr)
	}
	return nil
}
