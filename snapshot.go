// Snapshot: an immutable view of the database, comprising the two roots
// current at the moment it was taken and a diary reader bounded to that
// moment's watermark. A Snapshot never observes writes committed after
// it was captured.
//
// ArrowAt, ObjectsWithRing, and ArrowsAtObject are convenience read paths
// over the two HAMTs, covering lookup-by-object-and-ring, enumerate-
// objects-under-a-ring, and batch-lookup-one-object-many-rings.
package factdiary

// Snapshot is safe for concurrent reads from multiple goroutines: it
// owns one diaryReader file handle and never mutates its roots.
type Snapshot struct {
	reader      *diaryReader
	objectRings Root
	ringObjects Root
	alg         HashAlgorithm
}

// Close releases the snapshot's diary reader file handle.
func (s *Snapshot) Close() error {
	return s.reader.close()
}

// ArrowAt returns the value recorded for (object, ring) in this
// snapshot, or ok=false if no such fact was ever written (or was
// overwritten away — only the most recent value per (object,ring) is
// visible).
func (s *Snapshot) ArrowAt(object, ring []byte) (Value, bool, error) {
	oHash := hash32(object, s.alg)
	rHash := hash32(ring, s.alg)

	innerRef, ok, err := hamtGet(s.reader, s.objectRings, oHash)
	if err != nil || !ok {
		return Value{}, false, err
	}
	innerRoot, err := readRootRef(s.reader, innerRef)
	if err != nil {
		return Value{}, false, err
	}

	valueRef, ok, err := hamtGet(s.reader, innerRoot, rHash)
	if err != nil || !ok {
		return Value{}, false, err
	}
	v, err := readValueAt(s.reader, valueRef)
	if err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// ObjectsWithRing returns every object that has a fact recorded under
// ring in this snapshot.
func (s *Snapshot) ObjectsWithRing(ring []byte) ([][]byte, error) {
	rHash := hash32(ring, s.alg)

	innerRef, ok, err := hamtGet(s.reader, s.ringObjects, rHash)
	if err != nil || !ok {
		return nil, err
	}
	innerRoot, err := readRootRef(s.reader, innerRef)
	if err != nil {
		return nil, err
	}

	leaves, err := hamtAll(s.reader, innerRoot, nil)
	if err != nil {
		return nil, err
	}

	objects := make([][]byte, 0, len(leaves))
	for _, leaf := range leaves {
		object, _, err := readPairAt(s.reader, leaf.b)
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// ArrowsAtObject returns the values recorded for object under each of
// rings, keyed by the ring's index into the rings slice (absent rings
// are simply missing from the map).
func (s *Snapshot) ArrowsAtObject(object []byte, rings [][]byte) (map[int]Value, error) {
	out := make(map[int]Value, len(rings))
	for i, ring := range rings {
		v, ok, err := s.ArrowAt(object, ring)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = v
		}
	}
	return out, nil
}
