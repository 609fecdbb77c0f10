package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest is the sidecar record LocalFS keeps next to each object.
// Keep additions backward-compatible; older manifests must still decode.
type Manifest struct {
	Key          string       `json:"key"`
	Size         int64        `json:"size"`
	ETag         string       `json:"etag"`
	Uploaded     time.Time    `json:"uploaded"`
	HTTPMetadata HTTPMetadata `json:"httpMetadata"`
}

// errManifestNotFound signals a missing sidecar; callers fall back to file stats.
var errManifestNotFound = errors.New("manifest: not found")

func readManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, errManifestNotFound
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %q: %w", path, err)
	}
	return m, nil
}

// writeManifest writes m to path via temp file + rename so readers never see a partial record.
func writeManifest(path string, m Manifest) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}
