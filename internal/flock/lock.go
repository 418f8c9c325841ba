// Package flock provides an advisory, cross-process file lock guarding a
// database directory against a second process opening it concurrently.
//
// The core engine in this module serializes writers within one process
// via the actor in engine.go; flock exists only for the belt-and-braces
// case of a second process pointed at the same directory, which the
// crash-recovery story in rootslog.go implicitly assumes cannot happen.
//
// Lock wraps the flock(2) / LockFileEx syscall with a mutex that guards
// the file handle's lifetime, so that a concurrent Close cannot race the
// in-flight syscall on the same descriptor.
//
// Crash recovery lives in rootslog.go.
package flock

import (
	"os"
	"sync"
)

// Mode selects shared (read) or exclusive (write) locking.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// Lock coordinates OS-level file locks with safe handle teardown.
type Lock struct {
	mu sync.Mutex
	f  *os.File
}

// New wraps f for locking. f is typically a sentinel "LOCK" file opened
// for the lifetime of the database handle.
func New(f *os.File) *Lock {
	return &Lock{f: f}
}

// Acquire takes a shared or exclusive lock, blocking until available.
// Returns nil immediately if the handle has been cleared via Detach.
func (l *Lock) Acquire(mode Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock(mode)
}

// Release drops the lock. Returns nil immediately if the handle has been
// detached.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// Detach clears the underlying file handle, draining any in-flight
// Acquire/Release first. Subsequent calls become no-ops. Used before the
// caller closes the wrapped file.
func (l *Lock) Detach() {
	l.mu.Lock()
	l.f = nil
	l.mu.Unlock()
}
