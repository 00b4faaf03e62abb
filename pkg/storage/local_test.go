package storage

import (
	"context"
	"testing"
)

func TestLocalDisk_PutGetDelete(t *testing.T) {
	m, err := New(Config{Default: "local", LocalRoot: t.TempDir(), LocalURL: "http://localhost:8080/storage"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	disk := m.Default()
	ctx := context.Background()

	content := []byte("jpeg bytes")
	if err := disk.Put(ctx, "products/a/photo.jpg", content, "image/jpeg"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if !disk.Exists(ctx, "products/a/photo.jpg") {
		t.Error("expected object to exist after Put")
	}

	got, err := disk.Get(ctx, "products/a/photo.jpg")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Get = %q, want %q", got, content)
	}

	size, err := disk.Size(ctx, "products/a/photo.jpg")
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", size, len(content))
	}

	if err := disk.Delete(ctx, "products/a/photo.jpg"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if disk.Exists(ctx, "products/a/photo.jpg") {
		t.Error("expected object to be gone after Delete")
	}

	// Deleting an absent object is not an error.
	if err := disk.Delete(ctx, "products/a/photo.jpg"); err != nil {
		t.Errorf("Delete of absent object returned error: %v", err)
	}
}

func TestLocalDisk_URL(t *testing.T) {
	m, err := New(Config{Default: "local", LocalRoot: t.TempDir(), LocalURL: "http://localhost:8080/storage/"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got := m.Default().URL("/products/p.jpg")
	want := "http://localhost:8080/storage/products/p.jpg"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestManager_UnknownDisk(t *testing.T) {
	m, err := New(Config{Default: "local", LocalRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := m.Use("s3"); err == nil {
		t.Error("expected error for unconfigured disk")
	}
}

func TestManager_BadDefault(t *testing.T) {
	if _, err := New(Config{Default: "s3", LocalRoot: t.TempDir()}); err == nil {
		t.Error("expected error when default disk is not configured")
	}
}
