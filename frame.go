// Frame: an in-memory HAMT trie node of up to 32 slots, sparsely
// populated. On disk a frame is the concatenation of only its non-empty
// slots in ascending index order; the populated-index bitmap lives in the
// parent Ref.mask, not in the frame itself.
package factdiary

import "math/bits"

const frameWidth = 32

// frame is a length-32 sparse array of slots, empty entries represented
// as a zero value with a presence bit unset.
type frame struct {
	present uint32 // bit i set iff slots[i] is populated
	slots   [frameWidth]slot
}

func emptyFrame() *frame {
	return &frame{}
}

// lookup returns the slot at index i and whether it is populated.
func (f *frame) lookup(i int) (slot, bool) {
	if f.present&(1<<uint(i)) == 0 {
		return slot{}, false
	}
	return f.slots[i], true
}

// withSlot returns a new frame with index i set to s. Pure copy-on-write:
// the receiver is never mutated, so frames already referenced by an
// observable root remain valid.
func (f *frame) withSlot(i int, s slot) *frame {
	next := *f
	next.present |= 1 << uint(i)
	next.slots[i] = s
	return &next
}

// mask returns the bitmap of populated slot indices, the value stored in
// the parent Ref.mask.
func (f *frame) mask() uint32 {
	return f.present
}

// encodedLen is the on-disk size of the frame: 8 bytes per populated slot.
func (f *frame) encodedLen() int {
	return bits.OnesCount32(f.present) * slotSize
}

// encode serializes the frame's non-empty slots in ascending index order.
func (f *frame) encode() []byte {
	buf := make([]byte, f.encodedLen())
	off := 0
	for i := 0; i < frameWidth; i++ {
		if f.present&(1<<uint(i)) == 0 {
			continue
		}
		f.slots[i].encode(buf[off : off+slotSize])
		off += slotSize
	}
	return buf
}

// write appends the frame's encoding to w and returns the start offset
// and the populated-slot bitmap — the (pos, mask) pair a parent stores in
// its Ref slot.
func (f *frame) write(w *diaryWriter) (position, uint32, error) {
	buf := f.encode()
	if len(buf) == 0 {
		// A frame with no populated slots never needs to be written or
		// referenced; callers should not construct a Ref to one.
		return 0, 0, nil
	}
	pos, err := w.append(buf)
	if err != nil {
		return 0, 0, err
	}
	return pos, f.present, nil
}

// readFrame reads popcount(mask) slots from r at pos, distributing them
// into a length-32 sparse array by iterating the set bits of mask in
// ascending order.
func readFrame(r byteSource, pos position, mask uint32) (*frame, error) {
	n := bits.OnesCount32(mask)
	if n == 0 {
		return emptyFrame(), nil
	}

	buf := make([]byte, n*slotSize)
	if err := r.readAt(buf, pos); err != nil {
		return nil, err
	}

	f := emptyFrame()
	f.present = mask
	off := 0
	for i := 0; i < frameWidth; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		s, err := decodeSlot(buf[off : off+slotSize])
		if err != nil {
			return nil, err
		}
		f.slots[i] = s
		off += slotSize
	}
	return f, nil
}
