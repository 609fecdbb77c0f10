package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalFS implements ObjectStore on a single local directory. Suitable for dev and single-node setups.
//
// Layout:
//   <base>/objects/<key>        object bytes
//   <base>/meta/<key>.json      sidecar Manifest (optional)
//   <base>/tmp/                 staging area for Put
type LocalFS struct {
	base string // absolute base directory
}

// NewLocalFS creates a LocalFS rooted at the first non-empty dir from dirs.
func NewLocalFS(dirs []string) (*LocalFS, error) {
	var base string
	for _, d := range dirs {
		if d != "" {
			base = d
			break
		}
	}
	if base == "" {
		return nil, fmt.Errorf("no data directory configured")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	for _, sub := range []string{"objects", "meta", "tmp"} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o700); err != nil {
			return nil, err
		}
	}
	return &LocalFS{base: abs}, nil
}

// BaseDir returns the absolute base directory.
func (l *LocalFS) BaseDir() string { return l.base }

// Put stores r under key and records meta in the sidecar manifest. It is used to seed
// the store; the HTTP surface never writes.
func (l *LocalFS) Put(ctx context.Context, key string, r io.Reader, meta HTTPMetadata) (string, int64, error) {
	path, err := l.objectPath(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(filepath.Join(l.base, "tmp"), "put-*")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	// compute MD5 while writing
	h := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		tmp.Close()
		return "", n, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", n, err
	}
	if err := tmp.Close(); err != nil {
		return "", n, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", n, err
	}
	_ = SyncDir(filepath.Dir(path))

	etag := hex.EncodeToString(h.Sum(nil))
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(key))
	}
	m := Manifest{
		Key:          key,
		Size:         n,
		ETag:         etag,
		Uploaded:     time.Now().UTC(),
		HTTPMetadata: meta,
	}
	if err := writeManifest(l.manifestPath(path), m); err != nil {
		return "", n, fmt.Errorf("write manifest: %w", err)
	}
	return etag, n, nil
}

// Get opens the object stored under key.
func (l *LocalFS) Get(ctx context.Context, key string) (*Object, error) {
	path, err := l.objectPath(key)
	if err != nil {
		return nil, ErrNotFound
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	m, err := readManifest(l.manifestPath(path))
	switch {
	case errors.Is(err, errManifestNotFound):
		// Dropped in by hand: derive what we can from the file itself.
		etag, herr := md5File(path)
		if herr != nil {
			return nil, herr
		}
		m = Manifest{
			Key:          key,
			ETag:         etag,
			Uploaded:     st.ModTime().UTC(),
			HTTPMetadata: HTTPMetadata{ContentType: mime.TypeByExtension(filepath.Ext(key))},
		}
	case err != nil:
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Object{
		Key:          key,
		Body:         f,
		Size:         st.Size(),
		ETag:         m.ETag,
		HTTPEtag:     QuoteETag(m.ETag),
		Uploaded:     m.Uploaded,
		HTTPMetadata: m.HTTPMetadata,
	}, nil
}

// Delete removes an object and its manifest.
func (l *LocalFS) Delete(ctx context.Context, key string) error {
	path, err := l.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	_ = os.Remove(l.manifestPath(path))
	// best-effort: remove empty parent dirs
	_ = removeEmptyParents(filepath.Dir(path), filepath.Join(l.base, "objects"))
	return nil
}

func removeEmptyParents(dir, stop string) error {
	for {
		if dir == stop || dir == "/" || dir == "." || dir == "" {
			return nil
		}
		e, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		if len(e) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}

func (l *LocalFS) objectPath(key string) (string, error) {
	if !canonicalKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	root := filepath.Join(l.base, "objects")
	p := filepath.Join(root, filepath.FromSlash(key))
	// prevent escape: ensure path stays under objects/
	if !strings.HasPrefix(filepath.Clean(p)+string(os.PathSeparator), filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object path")
	}
	return p, nil
}

// canonicalKey reports whether key names exactly one file: no leading or
// trailing slash, no empty, "." or ".." segments. Anything else would alias
// another key once mapped onto the filesystem.
func canonicalKey(key string) bool {
	if key == "" || strings.ContainsAny(key, "\x00\\") {
		return false
	}
	return path.Clean("/"+key)[1:] == key
}

// manifestPath maps <base>/objects/<key> to <base>/meta/<key>.json.
func (l *LocalFS) manifestPath(objectPath string) string {
	rel, _ := filepath.Rel(filepath.Join(l.base, "objects"), objectPath)
	return filepath.Join(l.base, "meta", rel+".json")
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
