package flock

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openLock(t *testing.T, path string) *Lock {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open lock file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return New(f)
}

func TestExclusiveBlocksExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l1 := openLock(t, path)
	l2 := openLock(t, path)

	if err := l1.Acquire(Exclusive); err != nil {
		t.Fatalf("l1 acquire: %v", err)
	}

	done := make(chan struct{})
	go func() {
		l2.Acquire(Exclusive)
		l2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("l2 acquired exclusive lock while l1 held it")
	case <-time.After(100 * time.Millisecond):
	}

	l1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("l2 failed to acquire lock after release")
	}
}

func TestSharedBlocksExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l1 := openLock(t, path)
	l2 := openLock(t, path)

	if err := l1.Acquire(Shared); err != nil {
		t.Fatalf("l1 acquire: %v", err)
	}

	done := make(chan struct{})
	go func() {
		l2.Acquire(Exclusive)
		l2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("l2 acquired exclusive lock while l1 held shared")
	case <-time.After(100 * time.Millisecond):
	}

	l1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("l2 stuck")
	}
}

func TestDetachIsNoop(t *testing.T) {
	l := openLock(t, filepath.Join(t.TempDir(), "LOCK"))
	l.Detach()

	if err := l.Acquire(Exclusive); err != nil {
		t.Fatalf("acquire after detach should be a no-op, got %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("release after detach should be a no-op, got %v", err)
	}
}
