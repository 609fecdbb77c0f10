// Command imgseed copies a directory tree into a localfs store so imgproxy can serve it.
//
//	imgseed -data ./data -src ./images [-prefix avatars/]
package main

import (
	"context"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"imgproxy/pkg/storage"
)

func main() {
	var (
		dataDir      = flag.String("data", "./data", "localfs data directory")
		src          = flag.String("src", "", "directory to import")
		prefix       = flag.String("prefix", "", "key prefix for imported files")
		cacheControl = flag.String("cache-control", "", "stored Cache-Control metadata")
	)
	flag.Parse()
	if *src == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := storage.NewLocalFS([]string{*dataDir})
	if err != nil {
		slog.Error("init storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	n, err := seed(context.Background(), store, os.DirFS(*src), *prefix, storage.HTTPMetadata{CacheControl: *cacheControl})
	if err != nil {
		slog.Error("seed failed", slog.Int("imported", n), slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed complete", slog.Int("imported", n), slog.String("data", store.BaseDir()))
}

// seed puts every regular file of fsys into store under prefix+path.
func seed(ctx context.Context, store *storage.LocalFS, fsys fs.FS, prefix string, meta storage.HTTPMetadata) (int, error) {
	n := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		key := prefix + filepath.ToSlash(p)
		etag, size, err := store.Put(ctx, key, f, meta)
		if err != nil {
			return err
		}
		slog.Debug("imported", slog.String("key", key), slog.String("etag", etag), slog.Int64("size", size))
		n++
		return nil
	})
	return n, err
}
