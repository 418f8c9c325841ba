// Append-only byte log: the diary.
//
// The diary stores serialized values and trie frames at byte offsets.
// Its logical length (the watermark) is the committed size. A writer
// that appends past the watermark without committing leaves orphaned
// bytes nothing will ever reference again; re-acquiring a writer on the
// same live diary truncates them away. Opening a diary fresh trusts the
// file's physical length as the watermark without reconciling against
// the roots log — any such orphaned tail from an in-flight batch at the
// moment of a crash is simply never pointed at by a root, so leaving it
// in place is harmless.
package factdiary

import (
	"io"
	"os"
	"sync/atomic"
)

// diary is the append-only byte log backing a database directory.
type diary struct {
	path      string
	watermark atomic.Uint64
}

func openDiary(path string) (*diary, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	f.Close()

	d := &diary{path: path}
	d.watermark.Store(uint64(info.Size()))
	return d, nil
}

// commit atomically advances the watermark to size. Called by the engine
// only after every position reachable from the new roots lies below size.
func (d *diary) commit(size position) {
	d.watermark.Store(uint64(size))
}

// size returns the current committed watermark.
func (d *diary) size() position {
	return position(d.watermark.Load())
}

// writer returns a fresh diaryWriter positioned at the watermark. Opening
// a writer truncates the physical file to the watermark, discarding any
// tail an earlier writer on this same diary appended without committing.
// A freshly opened diary's watermark is already the physical length, so
// on that first writer nothing is cut.
func (d *diary) writer() (*diaryWriter, error) {
	f, err := os.OpenFile(d.path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	wm := int64(d.watermark.Load())
	if err := f.Truncate(wm); err != nil {
		f.Close()
		return nil, err
	}
	return &diaryWriter{f: f, pos: position(wm)}, nil
}

// reader returns a diaryReader bounded to the watermark at the moment of
// the call. Reads past that bound are impossible by construction: every
// read method checks against the stored limit.
func (d *diary) reader() (*diaryReader, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	return &diaryReader{f: f, limit: d.size()}, nil
}

// diaryWriter appends bytes to the diary. Not safe for concurrent use —
// the engine holds exactly one at a time, owned by its single writer actor.
type diaryWriter struct {
	f   *os.File
	pos position
}

// append writes p at the current tail and returns the offset it was
// written at. The writer's position advances by len(p).
func (w *diaryWriter) append(p []byte) (position, error) {
	off := w.pos
	n, err := w.f.WriteAt(p, int64(off))
	if err != nil {
		return 0, err
	}
	w.pos += position(n)
	return off, nil
}

// size returns the writer's current tail — the value the engine commits
// to the diary once a whole batch has been durably appended.
func (w *diaryWriter) size() position {
	return w.pos
}

func (w *diaryWriter) sync() error {
	return w.f.Sync()
}

func (w *diaryWriter) close() error {
	return w.f.Close()
}

// byteSource is anything frame/HAMT/value code can read diary bytes
// through: either a diaryReader bounded to a fixed watermark snapshot, or
// a writerReader bounded to a writer's live append position (so a batch's
// later facts can see frames an earlier fact in the same batch wrote,
// before the batch commits).
type byteSource interface {
	readAt(p []byte, off position) error
}

// diaryReader reads bytes below a fixed watermark snapshot. Every
// Snapshot owns one; it is never mutated after construction so readers
// never observe bytes appended after their snapshot was taken.
type diaryReader struct {
	f     *os.File
	limit position
}

// readAt reads exactly len(p) bytes at off, refusing to read at or past
// the reader's committed limit.
func (r *diaryReader) readAt(p []byte, off position) error {
	if off+position(len(p)) > r.limit {
		return io.ErrUnexpectedEOF
	}
	_, err := r.f.ReadAt(p, int64(off))
	return err
}

func (r *diaryReader) close() error {
	return r.f.Close()
}

// writerReader reads back through a diaryWriter's own file handle, bounded
// by the writer's current append position rather than the committed
// watermark. The engine uses this within a batch, where a later fact's
// nested HAMT update must be able to read frames an earlier fact in the
// same batch already appended but that the diary has not yet committed.
type writerReader struct {
	w *diaryWriter
}

func (r writerReader) readAt(p []byte, off position) error {
	if off+position(len(p)) > r.w.pos {
		return io.ErrUnexpectedEOF
	}
	_, err := r.w.f.ReadAt(p, int64(off))
	return err
}
