package kvstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestInsertListGetRemove(t *testing.T) {
	t.Parallel()

	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := store.Insert("0001", []byte("a")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert("0002", []byte("b")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "0001" || keys[1] != "0002" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	data, err := store.Get("0001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "a" {
		t.Fatalf("got %q, want %q", data, "a")
	}

	if err := store.Remove("0001"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := store.Get("0001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Removing an absent key is tolerated.
	if err := store.Remove("0001"); err != nil {
		t.Fatalf("remove absent key: %v", err)
	}
}

func TestInsertRefusesDuplicate(t *testing.T) {
	t.Parallel()

	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := store.Insert("k", []byte("1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert("k", []byte("2")); err == nil {
		t.Fatal("expected error on duplicate insert")
	}
}

func TestMoveTo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a, err := Open(filepath.Join(root, "a"))
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	b, err := Open(filepath.Join(root, "b"))
	if err != nil {
		t.Fatalf("open b: %v", err)
	}

	if err := a.Insert("k", []byte("payload")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := a.MoveTo(b, "k"); err != nil {
		t.Fatalf("move: %v", err)
	}

	if _, err := a.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected source removed, got %v", err)
	}
	data, err := b.Get("k")
	if err != nil {
		t.Fatalf("get from destination: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("got %q", data)
	}
}

func TestListSkipsTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Insert("k", []byte("v")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Simulate a torn write left behind by a crashed writer.
	if err := store.Put("orphan.tmp", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "k" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
