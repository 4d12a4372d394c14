package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBinaryFingerprintUnchanged(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "binary")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}

	fp, err := statFingerprint(path)
	if err != nil {
		t.Fatalf("statFingerprint: %v", err)
	}
	if fp.changed() {
		t.Fatal("expected unchanged fingerprint immediately after capture")
	}
}

func TestBinaryFingerprintDetectsReplace(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "binary")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}

	fp, err := statFingerprint(path)
	if err != nil {
		t.Fatalf("statFingerprint: %v", err)
	}

	// Force a distinct mtime: some filesystems truncate mtime resolution,
	// so set the replacement's mtime one second ahead explicitly rather than
	// relying on the clock having advanced.
	later := time.Now().Add(time.Second)
	if err := os.WriteFile(path, []byte("v2, a longer replacement binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	if !fp.changed() {
		t.Fatal("expected changed fingerprint after replacing the binary")
	}
}

func TestBinaryFingerprintMissingFileIsNotChanged(t *testing.T) {
	t.Parallel()

	fp := binaryFingerprint{path: filepath.Join(t.TempDir(), "gone"), size: 1}
	if fp.changed() {
		t.Fatal("expected changed() to report false when the binary can no longer be stat'd")
	}
}
