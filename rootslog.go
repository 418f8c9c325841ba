// Roots log: an append-only sequence of (Root_A, Root_B) pairs. The tail
// pair is the current version.
package factdiary

import (
	"io"
	"os"
)

const rootsPairLen = 2 * rootLen // 16 bytes

// rootsLog is the append-only roots.dat file.
type rootsLog struct {
	f *os.File
}

// openRootsLog opens (creating if needed) the roots log at path, repairs
// a torn tail write by rounding the file length down to the largest
// multiple of rootsPairLen whose last pair references positions within
// diarySize, and returns the log plus the current (A, B) roots. logger
// receives a notice whenever a repair actually discards trailing bytes;
// pass a discardLogger{} if recovery notices aren't wanted.
func openRootsLog(path string, diarySize position, logger Logger) (*rootsLog, Root, Root, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, Root{}, Root{}, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Root{}, Root{}, err
	}

	goodLen, err := recoverableLength(f, info.Size(), diarySize)
	if err != nil {
		f.Close()
		return nil, Root{}, Root{}, err
	}
	if goodLen != info.Size() {
		logger.Printf("factdiary: roots log %s: discarding %d trailing byte(s) past the last well-formed pair (torn write or a pair referencing positions beyond the diary)", path, info.Size()-goodLen)
		if err := f.Truncate(goodLen); err != nil {
			f.Close()
			return nil, Root{}, Root{}, err
		}
	}

	log := &rootsLog{f: f}

	if goodLen == 0 {
		return log, ZERO, ZERO, nil
	}

	a, b, err := log.readPairAt(goodLen - rootsPairLen)
	if err != nil {
		f.Close()
		return nil, Root{}, Root{}, err
	}
	return log, a, b, nil
}

// recoverableLength scans backward from size in rootsPairLen steps,
// rounding down past any torn tail write and any pair referencing a
// position beyond diarySize.
func recoverableLength(f *os.File, size int64, diarySize position) (int64, error) {
	length := (size / rootsPairLen) * rootsPairLen

	for length > 0 {
		buf := make([]byte, rootsPairLen)
		if _, err := f.ReadAt(buf, length-rootsPairLen); err != nil {
			return 0, err
		}
		a, err1 := decodeRoot(buf[0:rootLen])
		b, err2 := decodeRoot(buf[rootLen:])
		if err1 == nil && err2 == nil && rootWithin(a, diarySize) && rootWithin(b, diarySize) {
			return length, nil
		}
		length -= rootsPairLen
	}
	return 0, nil
}

// rootWithin reports whether root's top-frame position lies below
// diarySize; deeper positions are not checked. Only the top frame's position is directly checkable
// without a full traversal; that is exactly the invariant the engine
// guarantees by always advancing the diary watermark before appending a
// roots-log pair, so a shallow check here is sufficient to detect torn
// writes without re-walking the trie.
func rootWithin(r Root, diarySize position) bool {
	if r.isZero() {
		return true
	}
	return uint64(r.pos) < uint64(diarySize)
}

// append writes (a, b) as a new tail pair. On any write error the file is
// truncated back to its pre-append length, so the roots log is always a
// whole number of well-formed pairs on disk.
func (log *rootsLog) append(a, b Root) error {
	info, err := log.f.Stat()
	if err != nil {
		return err
	}
	preLen := info.Size()

	buf := make([]byte, rootsPairLen)
	a.encode(buf[0:rootLen])
	b.encode(buf[rootLen:])

	if _, err := log.f.WriteAt(buf, preLen); err != nil {
		log.f.Truncate(preLen)
		return err
	}
	return nil
}

func (log *rootsLog) sync() error {
	return log.f.Sync()
}

func (log *rootsLog) close() error {
	return log.f.Close()
}

func (log *rootsLog) readPairAt(off int64) (Root, Root, error) {
	buf := make([]byte, rootsPairLen)
	if _, err := log.f.ReadAt(buf, off); err != nil {
		if err == io.EOF {
			return Root{}, Root{}, ErrCorruptRootsLog
		}
		return Root{}, Root{}, err
	}
	a, err := decodeRoot(buf[0:rootLen])
	if err != nil {
		return Root{}, Root{}, ErrCorruptRootsLog
	}
	b, err := decodeRoot(buf[rootLen:])
	if err != nil {
		return Root{}, Root{}, ErrCorruptRootsLog
	}
	return a, b, nil
}
