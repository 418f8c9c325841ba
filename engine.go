// Engine: the single-writer actor owning the diary, the roots log, and
// the two top-level HAMT roots. All mutation happens on one dedicated
// goroutine; callers submit requests over a bounded channel and block on
// a one-shot reply. The actor goroutine is supervised with
// golang.org/x/sync/errgroup rather than a bare `go func()`, so a fatal
// error surfaces from Close instead of vanishing silently.
package factdiary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rjw-oss/factdiary/internal/flock"
)

const (
	diaryFileName = "diary.dat"
	rootsFileName = "roots.dat"
	lockFileName  = "LOCK"
)

type writeBatchRequest struct {
	facts []Fact
	reply chan writeBatchResult
}

type writeBatchResult struct {
	snap *Snapshot
	err  error
}

type snapshotRequest struct {
	reply chan snapshotResult
}

type snapshotResult struct {
	snap *Snapshot
	err  error
}

// Engine is a handle to one open database directory. Safe for concurrent
// use by multiple goroutines: every request is serialized onto the
// actor's own goroutine.
type Engine struct {
	cfg Config

	dia      *diary
	writer   *diaryWriter
	roots    *rootsLog
	lockFile *os.File
	lock     *flock.Lock

	objectRings Root
	ringObjects Root

	reqCh  chan any
	stopCh chan struct{}
	closed atomic.Bool
	eg     *errgroup.Group
}

// Open opens (creating if missing) the database directory at dir.
func Open(dir string, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("factdiary: open %s: %w", dir, err)
	}

	lockFile, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("factdiary: open lock file: %w", err)
	}
	lock := flock.New(lockFile)
	if err := lock.Acquire(flock.Exclusive); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("factdiary: acquire lock: %w", err)
	}

	dia, err := openDiary(filepath.Join(dir, diaryFileName))
	if err != nil {
		lock.Release()
		lockFile.Close()
		return nil, err
	}

	roots, rootA, rootB, err := openRootsLog(filepath.Join(dir, rootsFileName), dia.size(), cfg.Logger)
	if err != nil {
		lock.Release()
		lockFile.Close()
		return nil, err
	}

	writer, err := dia.writer()
	if err != nil {
		roots.close()
		lock.Release()
		lockFile.Close()
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		dia:         dia,
		writer:      writer,
		roots:       roots,
		lockFile:    lockFile,
		lock:        lock,
		objectRings: rootA,
		ringObjects: rootB,
		reqCh:       make(chan any, cfg.QueueCapacity),
		stopCh:      make(chan struct{}),
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.Go(e.run)
	e.eg = eg

	return e, nil
}

// run is the actor loop: the only goroutine that ever touches e.writer,
// e.objectRings, or e.ringObjects. After a batch fails with ErrInvariant
// every later write batch is refused with that same error (snapshots are
// still served), and the error is returned when the loop stops.
func (e *Engine) run() error {
	var fatal error
	for {
		select {
		case req := <-e.reqCh:
			switch r := req.(type) {
			case *writeBatchRequest:
				if fatal != nil {
					r.reply <- writeBatchResult{nil, fatal}
					continue
				}
				snap, err := e.applyBatch(r.facts)
				if errors.Is(err, ErrInvariant) {
					fatal = err
				}
				r.reply <- writeBatchResult{snap, err}
			case *snapshotRequest:
				snap, err := e.currentSnapshot()
				r.reply <- snapshotResult{snap, err}
			}
		case <-e.stopCh:
			return fatal
		}
	}
}

// WriteBatch submits facts as a single atomic batch and returns a
// snapshot rooted at the resulting version.
func (e *Engine) WriteBatch(ctx context.Context, facts []Fact) (*Snapshot, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	req := &writeBatchRequest{facts: facts, reply: make(chan writeBatchResult, 1)}
	select {
	case e.reqCh <- req:
	case <-e.stopCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.snap, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot captures the engine's current version: its two roots and a
// diary reader bounded to the watermark at the moment the request is
// served by the actor.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	req := &snapshotRequest{reply: make(chan snapshotResult, 1)}
	select {
	case e.reqCh <- req:
	case <-e.stopCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.snap, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the actor and releases all file handles. Safe to call more
// than once; requests submitted after Close fail with ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)
	runErr := e.eg.Wait()

	var errs []error
	if err := e.writer.close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.roots.close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.lock.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := e.lockFile.Close(); err != nil {
		errs = append(errs, err)
	}
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("factdiary: close: %v", errs)
	}
	return nil
}

// applyBatch runs on the actor goroutine only. On any error up to and
// including the roots-log append it restores the pre-batch in-memory
// roots and diary watermark and returns with no pair added to the roots
// log, matching the failure semantics of a partially submitted batch.
// With SyncWrites, a failure to sync the roots log is returned after the
// pair has already been written; the new roots stay in place in that case.
func (e *Engine) applyBatch(facts []Fact) (*Snapshot, error) {
	savedObjectRings, savedRingObjects := e.objectRings, e.ringObjects
	wr := writerReader{e.writer}

	for _, fact := range facts {
		if err := e.applyFact(wr, fact); err != nil {
			e.objectRings, e.ringObjects = savedObjectRings, savedRingObjects
			if errors.Is(err, ErrInvariant) {
				e.cfg.Logger.Printf("factdiary: invariant violation applying fact (object=%q ring=%q): %v", fact.Object, fact.Ring, err)
			}
			return nil, err
		}
	}

	newWatermark := e.writer.size()
	if e.cfg.SyncWrites {
		if err := e.writer.sync(); err != nil {
			e.objectRings, e.ringObjects = savedObjectRings, savedRingObjects
			return nil, err
		}
	}

	// The watermark only advances once the whole batch's frames and
	// values are durably appended; only then is the roots-log pair
	// written, so a reader can never observe a root referencing bytes
	// beyond the committed watermark.
	prevWatermark := e.dia.size()
	e.dia.commit(newWatermark)

	if err := e.roots.append(e.objectRings, e.ringObjects); err != nil {
		e.dia.commit(prevWatermark)
		e.objectRings, e.ringObjects = savedObjectRings, savedRingObjects
		return nil, err
	}
	if e.cfg.SyncWrites {
		if err := e.roots.sync(); err != nil {
			return nil, err
		}
	}

	return e.currentSnapshot()
}

// applyFact performs the two nested HAMT updates one fact requires: the
// by-object side (object_rings: o_hash -> inner root over ring_hash ->
// value) and the by-ring side (ring_objects: r_hash -> inner root over
// object_hash -> (object, value) pair).
func (e *Engine) applyFact(wr byteSource, fact Fact) error {
	if fact.Value.Kind == KindUnset {
		return ErrNoValue
	}

	oHash := hash32(fact.Object, e.cfg.HashAlgorithm)
	rHash := hash32(fact.Ring, e.cfg.HashAlgorithm)

	if err := e.updateObjectRings(wr, oHash, rHash, fact.Value); err != nil {
		return err
	}
	if err := e.updateRingObjects(wr, rHash, oHash, fact); err != nil {
		return err
	}
	return nil
}

func (e *Engine) updateObjectRings(wr byteSource, oHash, rHash uint32, v Value) error {
	innerRoot, err := e.innerRootOf(wr, e.objectRings, oHash)
	if err != nil {
		return err
	}

	valueRef, err := writePayload(e.writer, v.encode(e.cfg.CompressThreshold), e.cfg.MaxValueSize)
	if err != nil {
		return err
	}

	newInnerRoot, err := hamtPut(wr, e.writer, innerRoot, rHash, valueRef)
	if err != nil {
		return err
	}
	newInnerRootRef, err := writeRoot(e.writer, newInnerRoot)
	if err != nil {
		return err
	}

	newOuter, err := hamtPut(wr, e.writer, e.objectRings, oHash, newInnerRootRef)
	if err != nil {
		return err
	}
	e.objectRings = newOuter
	return nil
}

func (e *Engine) updateRingObjects(wr byteSource, rHash, oHash uint32, fact Fact) error {
	innerRoot, err := e.innerRootOf(wr, e.ringObjects, rHash)
	if err != nil {
		return err
	}

	pairRef, err := writePayload(e.writer, encodePair(fact.Object, fact.Value, e.cfg.CompressThreshold), e.cfg.MaxValueSize)
	if err != nil {
		return err
	}

	newInnerRoot, err := hamtPut(wr, e.writer, innerRoot, oHash, pairRef)
	if err != nil {
		return err
	}
	newInnerRootRef, err := writeRoot(e.writer, newInnerRoot)
	if err != nil {
		return err
	}

	newOuter, err := hamtPut(wr, e.writer, e.ringObjects, rHash, newInnerRootRef)
	if err != nil {
		return err
	}
	e.ringObjects = newOuter
	return nil
}

// innerRootOf looks up outer.get(hash); absent keys map to the empty
// HAMT (ZERO), never an error.
func (e *Engine) innerRootOf(wr byteSource, outer Root, hash uint32) (Root, error) {
	ref, ok, err := hamtGet(wr, outer, hash)
	if err != nil {
		return Root{}, err
	}
	if !ok {
		return ZERO, nil
	}
	return readRootRef(wr, ref)
}

// currentSnapshot captures a fresh diary reader and the engine's current
// roots. Called only from the actor goroutine, so the roots it reads are
// always a consistent, already-committed pair.
func (e *Engine) currentSnapshot() (*Snapshot, error) {
	r, err := e.dia.reader()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		reader:      r,
		objectRings: e.objectRings,
		ringObjects: e.ringObjects,
		alg:         e.cfg.HashAlgorithm,
	}, nil
}
