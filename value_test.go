package factdiary

import (
	"bytes"
	"testing"
)

// TestValueNumberRoundTrip verifies a number value survives encode then
// decode unchanged.
func TestValueNumberRoundTrip(t *testing.T) {
	v := NumberValue(424242)
	got, err := decodeValue(v.encode(256))
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if got.Kind != KindNumber || got.Num != 424242 {
		t.Errorf("round trip = %+v, want Number(424242)", got)
	}
}

// TestValueTextRoundTripBelowThreshold verifies a short text value is
// stored uncompressed and still decodes byte-for-byte.
func TestValueTextRoundTripBelowThreshold(t *testing.T) {
	v := TextValue([]byte("hello"))
	encoded := v.encode(256)
	if encoded[0] != tagText {
		t.Fatalf("short text encoded with tag %d, want tagText", encoded[0])
	}
	got, err := decodeValue(encoded)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if !bytes.Equal(got.Text, []byte("hello")) {
		t.Errorf("round trip text = %q, want %q", got.Text, "hello")
	}
}

// TestValueTextCompressesAboveThreshold verifies a highly-compressible
// text value at or above CompressThreshold is tagged compressed and
// still decodes to the original bytes.
func TestValueTextCompressesAboveThreshold(t *testing.T) {
	big := bytes.Repeat([]byte("abcdefgh"), 100) // 800 bytes, very compressible
	v := TextValue(big)
	encoded := v.encode(256)
	if encoded[0] != tagTextCompressed {
		t.Fatalf("large repetitive text encoded with tag %d, want tagTextCompressed", encoded[0])
	}
	got, err := decodeValue(encoded)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if !bytes.Equal(got.Text, big) {
		t.Errorf("decompressed text does not match original")
	}
}

// TestValueEqualValuesEncodeIdentically verifies determinism: two Value
// structs with equal logical content must produce byte-identical
// encodings.
func TestValueEqualValuesEncodeIdentically(t *testing.T) {
	a := TextValue([]byte("same"))
	b := TextValue([]byte("same"))
	if !bytes.Equal(a.encode(256), b.encode(256)) {
		t.Errorf("equal values encoded differently")
	}
}

// TestReadValueFromReturnsTrailingPosition verifies readValueFrom
// reports the position immediately following the decoded value, which
// readPairAt depends on to read the trailing value without a separately
// recorded length.
func TestReadValueFromReturnsTrailingPosition(t *testing.T) {
	w := openTestWriter(t)
	rd := writerReader{w}

	encoded := NumberValue(7).encode(256)
	off, err := w.append(encoded)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// Append a sentinel byte right after; its offset is exactly the
	// trailing position readValueFrom must report.
	sentinelOff, err := w.append([]byte{0xFF})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	_, next, err := readValueFrom(rd, off)
	if err != nil {
		t.Fatalf("readValueFrom: %v", err)
	}
	if next != sentinelOff {
		t.Errorf("trailing position = %d, want %d", next, sentinelOff)
	}
}

// TestPairRoundTrip verifies encodePair/readPairAt recover both the
// object bytes and the value from a single self-describing record.
func TestPairRoundTrip(t *testing.T) {
	w := openTestWriter(t)
	rd := writerReader{w}

	object := []byte("dracula")
	value := NumberValue(3)

	ref, err := writePayload(w, encodePair(object, value, 256), 0)
	if err != nil {
		t.Fatalf("writePayload: %v", err)
	}

	gotObject, gotValue, err := readPairAt(rd, ref)
	if err != nil {
		t.Fatalf("readPairAt: %v", err)
	}
	if !bytes.Equal(gotObject, object) {
		t.Errorf("object = %q, want %q", gotObject, object)
	}
	if gotValue.Kind != KindNumber || gotValue.Num != 3 {
		t.Errorf("value = %+v, want Number(3)", gotValue)
	}
}

// TestWritePayloadRejectsOversizeValue verifies MaxValueSize is
// enforced before anything is appended to the diary.
func TestWritePayloadRejectsOversizeValue(t *testing.T) {
	w := openTestWriter(t)
	before := w.size()

	_, err := writePayload(w, make([]byte, 100), 10)
	if err != ErrValueTooLarge {
		t.Fatalf("writePayload error = %v, want ErrValueTooLarge", err)
	}
	if w.size() != before {
		t.Errorf("writer tail advanced despite rejected oversize value")
	}
}
