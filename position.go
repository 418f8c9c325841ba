package factdiary

// position is a byte offset in the diary. Diary offsets are tracked as
// uint64 internally (the diary can in principle exceed 4GiB) but every
// on-disk slot/root field narrows to uint32, which the writer enforces
// when it packs a position into a Ref. A bare offset is easy to confuse
// with a length or an index, so it is kept as a distinct type rather
// than passed around as int64.
type position uint64

// u32 narrows a position for on-disk packing by plain truncation.
// Callers must have already checked the position fits: the diary itself
// has no size ceiling; writePayload rejects value offsets at or above
// 2^31, and slot.encode panics on a Ref position with bit 31 set.
func (p position) u32() uint32 {
	return uint32(p)
}

func posFromU32(v uint32) position {
	return position(v)
}
