package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"testing/fstest"

	"imgproxy/pkg/storage"
)

func TestSeed(t *testing.T) {
	store, err := storage.NewLocalFS([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	src := fstest.MapFS{
		"cat.png":         {Data: []byte("meow")},
		"dogs/rex.jpg":    {Data: []byte("woof")},
		"notes/readme.md": {Data: []byte("# hi")},
	}
	n, err := seed(context.Background(), store, src, "pets/", storage.HTTPMetadata{CacheControl: "no-cache"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 imports, got %d", n)
	}

	obj, err := store.Get(context.Background(), "pets/dogs/rex.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer obj.Body.Close()
	b, _ := io.ReadAll(obj.Body)
	if string(b) != "woof" {
		t.Fatalf("body %q", b)
	}
	if obj.HTTPMetadata.ContentType != "image/jpeg" || obj.HTTPMetadata.CacheControl != "no-cache" {
		t.Fatalf("metadata %+v", obj.HTTPMetadata)
	}

	if _, err := store.Get(context.Background(), "cat.png"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unprefixed key should be absent, got %v", err)
	}
}
