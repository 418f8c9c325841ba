// HAMT: a persistent trie mapping 31-bit hash keys to uint32 values,
// built on the diary. Reads traverse by positional read through Frames;
// writes are copy-on-write, rewriting every visited frame bottom-up and
// sharing everything unchanged.
package factdiary

// chunkBits is the width of one trie-level index: 5 bits address one of
// the 32 slots in a frame.
const chunkBits = 5

// maxDepth is the deepest a 31-bit hash can be chunked: depths 0..6
// (inclusive) consume all 31 bits (6*5=30, plus the 1 remaining bit at
// depth 6). Past depth 6 the trie cannot descend any further.
const maxDepth = 6

// chunk extracts the 5-bit slot index for hash at the given depth,
// least-significant-first: depth 0 uses bits 0..4, depth 1
// bits 5..9, and so on.
func chunk(hash uint32, depth int) int {
	shift := uint(depth * chunkBits)
	if shift >= 32 {
		return 0
	}
	return int((hash >> shift) & 0x1F)
}

// Root is a slot-shaped descriptor of a HAMT's top frame, or the zero
// value (ZERO) meaning the empty HAMT. Root's wire format is identical to
// a Ref slot.
type Root struct {
	pos  uint32
	mask uint32
}

// ZERO is the sentinel root of an empty HAMT.
var ZERO = Root{}

func (r Root) isZero() bool { return r.pos == 0 && r.mask == 0 }

const rootLen = slotSize

func (r Root) encode(buf []byte) {
	refSlot(r.pos, r.mask).encode(buf)
}

func decodeRoot(buf []byte) (Root, error) {
	s, err := decodeSlot(buf)
	if err != nil {
		return Root{}, err
	}
	if s.kind != slotRef {
		return Root{}, ErrInvariant
	}
	return Root{pos: s.a, mask: s.b}, nil
}

// writeRoot appends root's 8-byte wire form to w and returns the position
// a slot's value field can hold. A HAMT value is a single u32, but a
// nested HAMT's root is two u32s (pos, mask); writing the root itself to
// the diary and storing the resulting position, exactly as the value
// codec does for domain payloads, closes that gap.
func writeRoot(w *diaryWriter, root Root) (uint32, error) {
	buf := make([]byte, rootLen)
	root.encode(buf)
	pos, err := w.append(buf)
	if err != nil {
		return 0, err
	}
	return pos.u32(), nil
}

// readRootRef reads back a Root previously written by writeRoot.
func readRootRef(r byteSource, ref uint32) (Root, error) {
	buf := make([]byte, rootLen)
	if err := r.readAt(buf, posFromU32(ref)); err != nil {
		return Root{}, err
	}
	return decodeRoot(buf)
}

// hamtAll walks every reachable Value leaf under root, appending
// (key_hash, value_ref) to out. Used by read paths that must enumerate a
// whole nested HAMT rather than look up one key — e.g. recovering every
// object stored under one ring.
func hamtAll(r byteSource, root Root, out []slot) ([]slot, error) {
	if root.isZero() {
		return out, nil
	}
	return hamtAllAt(r, root.pos, root.mask, out)
}

func hamtAllAt(r byteSource, pos, mask uint32, out []slot) ([]slot, error) {
	f, err := readFrame(r, posFromU32(pos), mask)
	if err != nil {
		return nil, err
	}
	for i := 0; i < frameWidth; i++ {
		s, ok := f.lookup(i)
		if !ok {
			continue
		}
		switch s.kind {
		case slotValue:
			out = append(out, s)
		case slotRef:
			out, err = hamtAllAt(r, s.a, s.b, out)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// hamtGet looks up hash under root, reading frames through r.
func hamtGet(r byteSource, root Root, hash uint32) (uint32, bool, error) {
	if root.isZero() {
		return 0, false, nil
	}

	pos, mask := root.pos, root.mask
	for depth := 0; depth <= maxDepth; depth++ {
		f, err := readFrame(r, posFromU32(pos), mask)
		if err != nil {
			return 0, false, err
		}

		i := chunk(hash, depth)
		s, ok := f.lookup(i)
		if !ok {
			return 0, false, nil
		}

		switch s.kind {
		case slotValue:
			if s.a == hash {
				return s.b, true, nil
			}
			return 0, false, nil
		case slotRef:
			pos, mask = s.a, s.b
		}
	}
	return 0, false, nil
}

// hamtPut inserts hash->value under root, appending new frames to w for
// every frame on the path and returning the new root. Existing frames are
// never mutated; unchanged siblings are shared by reference.
func hamtPut(r byteSource, w *diaryWriter, root Root, hash, value uint32) (Root, error) {
	if root.isZero() {
		f := emptyFrame().withSlot(chunk(hash, 0), valueSlot(hash, value))
		pos, mask, err := f.write(w)
		if err != nil {
			return Root{}, err
		}
		return Root{pos: pos.u32(), mask: mask}, nil
	}

	pos, mask, err := putAt(r, w, root.pos, root.mask, 0, hash, value)
	if err != nil {
		return Root{}, err
	}
	return Root{pos: pos.u32(), mask: mask}, nil
}

// putAt reads the frame at (pos, mask), updates the slot for hash's chunk
// at depth, and rewrites the frame, returning its new (pos, mask).
func putAt(r byteSource, w *diaryWriter, pos uint32, mask uint32, depth int, hash, value uint32) (position, uint32, error) {
	f, err := readFrame(r, posFromU32(pos), mask)
	if err != nil {
		return 0, 0, err
	}

	i := chunk(hash, depth)
	existing, ok := f.lookup(i)

	var newSlot slot
	switch {
	case !ok:
		newSlot = valueSlot(hash, value)

	case existing.kind == slotValue && existing.a == hash:
		// Same key hash: overwrite the value ref. Also the exact
		// 31-bit-collision case: two distinct logical keys that hash
		// identically overwrite here too, since nothing downstream can
		// tell them apart.
		newSlot = valueSlot(hash, value)

	case existing.kind == slotValue:
		// Different key hash occupying the same chunk: split into a
		// child frame, recursing until the chunks diverge (at most
		// maxDepth).
		childPos, childMask, err := splitLeaves(w, existing.a, existing.b, hash, value, depth+1)
		if err != nil {
			return 0, 0, err
		}
		newSlot = refSlot(childPos.u32(), childMask)

	default: // existing.kind == slotRef
		childPos, childMask, err := putAt(r, w, existing.a, existing.b, depth+1, hash, value)
		if err != nil {
			return 0, 0, err
		}
		newSlot = refSlot(childPos.u32(), childMask)
	}

	next := f.withSlot(i, newSlot)
	newPos, newMask, err := next.write(w)
	if err != nil {
		return 0, 0, err
	}
	return newPos, newMask, nil
}

// splitLeaves builds the child-frame chain separating two colliding
// leaves (hashA != hashB, guaranteed by the caller) starting at depth.
// Since depths 0..maxDepth together cover all 31 hash bits, two distinct
// hashes are guaranteed to diverge at or before maxDepth.
func splitLeaves(w *diaryWriter, hashA, valA, hashB, valB uint32, depth int) (position, uint32, error) {
	if depth > maxDepth {
		// Unreachable: the caller only invokes this when hashA != hashB,
		// and depths 0..maxDepth exhaust all 31 bits of a hash, so two
		// distinct hashes cannot still share every chunk at this depth.
		panic("factdiary: splitLeaves exceeded maxDepth for distinct hashes")
	}

	iA := chunk(hashA, depth)
	iB := chunk(hashB, depth)

	f := emptyFrame()
	if iA != iB {
		f = f.withSlot(iA, valueSlot(hashA, valA))
		f = f.withSlot(iB, valueSlot(hashB, valB))
	} else {
		childPos, childMask, err := splitLeaves(w, hashA, valA, hashB, valB, depth+1)
		if err != nil {
			return 0, 0, err
		}
		f = f.withSlot(iA, refSlot(childPos.u32(), childMask))
	}

	pos, mask, err := f.write(w)
	if err != nil {
		return 0, 0, err
	}
	return pos, mask, nil
}
