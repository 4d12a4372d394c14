package vcs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// writeFakeVCS writes a tiny script standing in for git: it exits 0 when
// succeed is true and 1 otherwise. It lets the test avoid depending on a real
// git binary or repo.
func writeFakeVCS(t *testing.T, succeed bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake VCS script is POSIX shell only")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-vcs")
	script := "#!/bin/sh\nexit 0\n"
	if !succeed {
		script = "#!/bin/sh\nexit 1\n"
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake vcs: %v", err)
	}
	return path
}

func TestEnsureSkipsWhenAlreadyCurrent(t *testing.T) {
	t.Parallel()

	c := NewCheckouts(Checkout{Command: writeFakeVCS(t, false)})
	var log bytes.Buffer

	err := c.Ensure(context.Background(), t.TempDir(), "abc", "abc", &log)
	if err != nil {
		t.Fatalf("expected no-op checkout to succeed, got %v", err)
	}
	if log.Len() != 0 {
		t.Fatalf("expected no command to run, got log: %q", log.String())
	}
}

func TestEnsureRunsCheckoutWhenStale(t *testing.T) {
	t.Parallel()

	c := NewCheckouts(Checkout{Command: writeFakeVCS(t, true)})
	var log bytes.Buffer

	err := c.Ensure(context.Background(), t.TempDir(), "def", "abc", &log)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
}

func TestEnsurePropagatesFailure(t *testing.T) {
	t.Parallel()

	c := NewCheckouts(Checkout{Command: writeFakeVCS(t, false)})
	var log bytes.Buffer

	err := c.Ensure(context.Background(), t.TempDir(), "def", "abc", &log)
	if err == nil {
		t.Fatal("expected checkout failure to propagate")
	}
}

func TestEnsureTripsBreakerAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	c := NewCheckouts(Checkout{Command: writeFakeVCS(t, false)})
	dir := t.TempDir()
	var log bytes.Buffer

	for i := 0; i < 3; i++ {
		if err := c.Ensure(context.Background(), dir, "def", "abc", &log); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	// The breaker should now be open; Ensure still returns an error, but
	// without needing to exec the script again.
	if err := c.Ensure(context.Background(), dir, "def", "abc", &log); err == nil {
		t.Fatal("expected breaker-open error")
	}
}
