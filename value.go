// Value codec: serializing domain payloads (numbers, text) to and from
// the diary, and deriving the fixed-width handles a HAMT slot can hold.
//
// A payload is serialized at the current append offset; the offset
// becomes the value_ref handle, and a 31-bit hash of a key's canonical
// bytes becomes the key_hash used to address a slot. The payload format
// is length-prefixed and tag-byte discriminated: a tagged variant, not
// subtype polymorphism.
package factdiary

import (
	"encoding/binary"
	"fmt"
)

// ValueKind discriminates the two payload variants the diary stores.
// Future variants would extend this enum and the tag byte below, not
// introduce a new dispatch mechanism.
type ValueKind int

const (
	// KindUnset is the zero value: a Fact carrying it has no value set,
	// which is a caller error (see ErrNoValue).
	KindUnset ValueKind = iota
	// KindNumber holds a 64-bit unsigned integer.
	KindNumber
	// KindText holds an arbitrary byte string, optionally compressed.
	KindText
)

// Value is a fixed-width-identifiable payload: the thing a Fact's value
// field points at once serialized into the diary.
type Value struct {
	Kind ValueKind
	Num  uint64
	Text []byte
}

func NumberValue(n uint64) Value { return Value{Kind: KindNumber, Num: n} }
func TextValue(s []byte) Value   { return Value{Kind: KindText, Text: s} }

const (
	tagNumber         = 0
	tagText           = 1
	tagTextCompressed = 2
)

// encode produces the canonical on-disk bytes for v. Two equal logical
// values always produce byte-equal output.
func (v Value) encode(compressThreshold int) []byte {
	switch v.Kind {
	case KindNumber:
		buf := make([]byte, 1+8)
		buf[0] = tagNumber
		binary.BigEndian.PutUint64(buf[1:], v.Num)
		return buf
	default: // KindText
		tag := byte(tagText)
		payload := v.Text
		if compressThreshold > 0 && len(v.Text) >= compressThreshold {
			compressed := compressBytes(v.Text)
			if len(compressed) < len(v.Text) {
				tag = tagTextCompressed
				payload = compressed
			}
		}
		buf := make([]byte, 1+4+len(payload))
		buf[0] = tag
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
		copy(buf[5:], payload)
		return buf
	}
}

// decodeValue reconstructs a Value from its canonical encoding.
func decodeValue(buf []byte) (Value, error) {
	if len(buf) < 1 {
		return Value{}, fmt.Errorf("factdiary: decode value: empty payload")
	}
	switch buf[0] {
	case tagNumber:
		if len(buf) != 1+8 {
			return Value{}, fmt.Errorf("factdiary: decode value: bad number length %d", len(buf))
		}
		return NumberValue(binary.BigEndian.Uint64(buf[1:])), nil
	case tagText, tagTextCompressed:
		if len(buf) < 1+4 {
			return Value{}, fmt.Errorf("factdiary: decode value: truncated text header")
		}
		n := binary.BigEndian.Uint32(buf[1:5])
		if uint32(len(buf)-5) != n {
			return Value{}, fmt.Errorf("factdiary: decode value: text length mismatch")
		}
		payload := buf[5:]
		if buf[0] == tagTextCompressed {
			out, err := decompressBytes(payload)
			if err != nil {
				return Value{}, err
			}
			return TextValue(out), nil
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return TextValue(cp), nil
	default:
		return Value{}, fmt.Errorf("factdiary: decode value: unknown tag %d", buf[0])
	}
}

// maxBlobPos bounds a single value's diary offset to 31 bits (a
// 2 GiB-per-blob ceiling), keeping every position comfortably clear of
// the slot codec's discriminator bit regardless of which field it ends
// up packed into.
const maxBlobPos = 1 << 31

// writePayload appends encoded bytes to w and returns the position-based
// ref a slot can hold.
func writePayload(w *diaryWriter, encoded []byte, maxValueSize int) (uint32, error) {
	if maxValueSize > 0 && len(encoded) > maxValueSize {
		return 0, ErrValueTooLarge
	}
	pos, err := w.append(encoded)
	if err != nil {
		return 0, err
	}
	if uint64(pos) >= maxBlobPos {
		return 0, fmt.Errorf("factdiary: diary exceeds 2GiB-per-blob addressing ceiling at offset %d", pos)
	}
	return pos.u32(), nil
}

// readValueAt reads back a Value previously written at ref. Since the
// encoding is self-describing length-prefixed, the header is read first
// to learn the full length, then the body.
func readValueAt(r byteSource, ref uint32) (Value, error) {
	v, _, err := readValueFrom(r, posFromU32(ref))
	return v, err
}

// readValueFrom decodes one self-describing Value starting at pos and
// returns the position immediately following it, so callers composing a
// value into a larger record (see encodePair/readPairAt) can continue
// reading from there without separately tracking its length.
func readValueFrom(r byteSource, pos position) (Value, position, error) {
	tagByte := make([]byte, 1)
	if err := r.readAt(tagByte, pos); err != nil {
		return Value{}, 0, err
	}

	switch tagByte[0] {
	case tagNumber:
		buf := make([]byte, 1+8)
		if err := r.readAt(buf, pos); err != nil {
			return Value{}, 0, err
		}
		v, err := decodeValue(buf)
		return v, pos + position(len(buf)), err
	case tagText, tagTextCompressed:
		header := make([]byte, 1+4)
		if err := r.readAt(header, pos); err != nil {
			return Value{}, 0, err
		}
		n := binary.BigEndian.Uint32(header[1:5])
		buf := make([]byte, 1+4+n)
		if err := r.readAt(buf, pos); err != nil {
			return Value{}, 0, err
		}
		v, err := decodeValue(buf)
		return v, pos + position(len(buf)), err
	default:
		return Value{}, 0, fmt.Errorf("factdiary: decode value: unknown tag %d", tagByte[0])
	}
}

// encodePair canonicalizes an (object-bytes, value) pair for the by-ring
// side of the engine. Self-describing throughout (object length prefix,
// then a self-describing Value), so readPairAt never needs a separately
// recorded total length.
func encodePair(object []byte, v Value, compressThreshold int) []byte {
	valueBuf := v.encode(compressThreshold)
	buf := make([]byte, 4+len(object)+len(valueBuf))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(object)))
	copy(buf[4:], object)
	copy(buf[4+len(object):], valueBuf)
	return buf
}

// readPairAt reads back an (object, value) pair previously written by
// encodePair, at ref.
func readPairAt(r byteSource, ref uint32) ([]byte, Value, error) {
	header := make([]byte, 4)
	pos := posFromU32(ref)
	if err := r.readAt(header, pos); err != nil {
		return nil, Value{}, err
	}
	n := binary.BigEndian.Uint32(header)

	object := make([]byte, n)
	if n > 0 {
		if err := r.readAt(object, pos+4); err != nil {
			return nil, Value{}, err
		}
	}

	v, _, err := readValueFrom(r, pos+4+position(n))
	if err != nil {
		return nil, Value{}, err
	}
	return object, v, nil
}
