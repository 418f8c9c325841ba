package factdiary

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestRootsLogOpenEmptyDefaultsToZero verifies opening a fresh (empty)
// roots log reports (ZERO, ZERO) as the current version.
func TestRootsLogOpenEmptyDefaultsToZero(t *testing.T) {
	dir := t.TempDir()
	log, a, b, err := openRootsLog(filepath.Join(dir, "roots.dat"), 0, discardLogger{})
	if err != nil {
		t.Fatalf("openRootsLog: %v", err)
	}
	defer log.close()

	if !a.isZero() || !b.isZero() {
		t.Errorf("fresh roots log current = (%+v, %+v), want (ZERO, ZERO)", a, b)
	}
}

// TestRootsLogAppendThenReopen verifies the tail pair written by append
// is exactly what a fresh open recovers, across a close/reopen cycle.
func TestRootsLogAppendThenReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roots.dat")

	log, _, _, err := openRootsLog(path, 1000, discardLogger{})
	if err != nil {
		t.Fatalf("openRootsLog: %v", err)
	}

	want1 := Root{pos: 10, mask: 0x1}
	want2 := Root{pos: 20, mask: 0x3}
	if err := log.append(want1, want2); err != nil {
		t.Fatalf("append: %v", err)
	}
	log.close()

	log2, a, b, err := openRootsLog(path, 1000, discardLogger{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer log2.close()
	if a != want1 || b != want2 {
		t.Errorf("recovered (%+v, %+v), want (%+v, %+v)", a, b, want1, want2)
	}
}

// logSpy records every Printf call for a test to inspect.
type logSpy struct {
	lines *[]string
}

func newLogSpy() logSpy {
	return logSpy{lines: new([]string)}
}

func (s logSpy) Printf(format string, args ...any) {
	*s.lines = append(*s.lines, fmt.Sprintf(format, args...))
}

// TestRootsLogLogsOnlyWhenRecoveryDiscardsBytes verifies Config.Logger is
// actually called when openRootsLog truncates a torn tail, and is not
// called on an ordinary clean open.
func TestRootsLogLogsOnlyWhenRecoveryDiscardsBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roots.dat")

	cleanSpy := newLogSpy()
	log, _, _, err := openRootsLog(path, 1000, cleanSpy)
	if err != nil {
		t.Fatalf("openRootsLog: %v", err)
	}
	if err := log.append(Root{pos: 5, mask: 0x1}, ZERO); err != nil {
		t.Fatalf("append: %v", err)
	}
	log.close()
	if len(*cleanSpy.lines) != 0 {
		t.Errorf("clean open logged %v, want no log lines", *cleanSpy.lines)
	}

	// Simulate a torn write: a trailing partial pair.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write torn tail: %v", err)
	}
	f.Close()

	tornSpy := newLogSpy()
	log2, _, _, err := openRootsLog(path, 1000, tornSpy)
	if err != nil {
		t.Fatalf("reopen after torn tail: %v", err)
	}
	defer log2.close()
	if len(*tornSpy.lines) != 1 {
		t.Fatalf("recovery logged %d lines, want 1: %v", len(*tornSpy.lines), *tornSpy.lines)
	}
}

// TestRootsLogRecoversFromTornTail verifies the corruption-recovery
// contract: a trailing partial pair (length not a multiple of 16) is
// discarded, and the last well-formed pair before it is recovered
// instead.
func TestRootsLogRecoversFromTornTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roots.dat")

	log, _, _, err := openRootsLog(path, 1000, discardLogger{})
	if err != nil {
		t.Fatalf("openRootsLog: %v", err)
	}
	want := Root{pos: 5, mask: 0x7}
	if err := log.append(want, Root{pos: 6, mask: 0x9}); err != nil {
		t.Fatalf("append: %v", err)
	}
	log.close()

	// Simulate a torn write: append a partial pair (fewer than 16 bytes)
	// directly to the file.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("write torn tail: %v", err)
	}
	f.Close()

	log2, a, b, err := openRootsLog(path, 1000, discardLogger{})
	if err != nil {
		t.Fatalf("reopen after torn tail: %v", err)
	}
	defer log2.close()

	if a != want {
		t.Errorf("recovered A = %+v, want %+v", a, want)
	}
	_ = b

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size()%rootsPairLen != 0 {
		t.Errorf("roots log length %d not a multiple of %d after recovery", info.Size(), rootsPairLen)
	}
}

// TestRootsLogRecoversFromRootBeyondDiary verifies a tail pair whose
// positions lie at or beyond the diary's committed length is treated as
// corrupt and skipped, even though its bytes are individually
// well-formed — it can only have been written by a batch whose diary
// commit never completed.
func TestRootsLogRecoversFromRootBeyondDiary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roots.dat")

	log, _, _, err := openRootsLog(path, 1000, discardLogger{})
	if err != nil {
		t.Fatalf("openRootsLog: %v", err)
	}
	good := Root{pos: 5, mask: 0x1}
	if err := log.append(good, ZERO); err != nil {
		t.Fatalf("append good: %v", err)
	}
	beyond := Root{pos: 5000, mask: 0x1} // beyond the diary length used below
	if err := log.append(beyond, ZERO); err != nil {
		t.Fatalf("append beyond: %v", err)
	}
	log.close()

	log2, a, _, err := openRootsLog(path, 1000, discardLogger{})
	if err != nil {
		t.Fatalf("reopen with diarySize=1000: %v", err)
	}
	defer log2.close()

	if a != good {
		t.Errorf("recovered A = %+v, want %+v (the pair beyond the diary should be skipped)", a, good)
	}
}
