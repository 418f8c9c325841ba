package factdiary

import "testing"

// TestSlotRoundTrip verifies decode(encode(s)) == s for both variants
// (property 5: the wire format must be exactly invertible, since every
// higher layer trusts it to recover a frame byte-for-byte).
func TestSlotRoundTrip(t *testing.T) {
	cases := []slot{
		valueSlot(0, 0),
		valueSlot(0x7fffffff, 0xffffffff),
		refSlot(0, 0),
		refSlot(0x12345678, 0xf0f0f0f0),
	}

	for _, want := range cases {
		buf := make([]byte, slotSize)
		want.encode(buf)
		got, err := decodeSlot(buf)
		if err != nil {
			t.Fatalf("decodeSlot(%+v): %v", want, err)
		}
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

// TestSlotDiscriminatorBit verifies a Value slot's encoding always has
// the top bit of byte 0 set and a Ref slot's always clear. If this bit
// were wrong, decodeSlot would misinterpret every slot downstream of it.
func TestSlotDiscriminatorBit(t *testing.T) {
	buf := make([]byte, slotSize)

	valueSlot(1, 2).encode(buf)
	if buf[0]&0x80 == 0 {
		t.Errorf("value slot: top bit clear, want set")
	}

	refSlot(1, 2).encode(buf)
	if buf[0]&0x80 != 0 {
		t.Errorf("ref slot: top bit set, want clear")
	}
}

// TestSlotEncodePanicsOnReservedBit verifies the writer refuses to
// silently truncate a key hash chunk or child position that doesn't fit
// in 31 bits — doing so would corrupt the discriminator on decode.
func TestSlotEncodePanicsOnReservedBit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("encode did not panic on a reserved top bit")
		}
	}()
	buf := make([]byte, slotSize)
	valueSlot(0x80000000, 0).encode(buf)
}

// TestDecodeSlotRejectsShortBuffer verifies decodeSlot refuses anything
// other than exactly 8 bytes.
func TestDecodeSlotRejectsShortBuffer(t *testing.T) {
	if _, err := decodeSlot(make([]byte, 7)); err == nil {
		t.Errorf("decodeSlot(7 bytes): want error")
	}
}
