package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// SyncDir best-effort fsyncs a directory so that recently renamed files become durable.
// On platforms where directory fsync is unsupported, the error is ignored.
func SyncDir(dir string) error {
	if dir == "" {
		return nil
	}
	// Windows does not support directory sync; skip.
	if runtime.GOOS == "windows" {
		return nil
	}
	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		// tmpfs and friends return EINVAL for directory sync.
		if errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return err
	}
	return nil
}

// writeFileAtomic writes b to a temp file in the target directory, fsyncs it and renames it over path.
func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return SyncDir(dir)
}
