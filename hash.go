// Key-hash derivation: reducing arbitrary canonical bytes to the 31-bit
// hash that addresses a HAMT slot.
//
// xxh3 is the default: fast, good distribution for the hot path. blake2b
// is offered as the alternate, cryptographic-strength option for callers
// wary of xxh3's non-cryptographic distribution.
package factdiary

import (
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// hashMask clears the top bit of every key hash hash32 returns. A HAMT
// Value slot stores the key hash verbatim in its first word, and that
// word's top bit is reserved by the slot codec as the Value/Ref
// discriminator (see slot.go) — so the key hash space is 31 bits, not
// 32, and every caller that compares against or chunks a hash32 result
// (hamtGet, hamtPut, chunk) relies on that bit always being clear.
const hashMask = uint32(1)<<31 - 1

// hash32 reduces data to a 31-bit hash using alg. This derives the key
// hash addressing a HAMT slot for a domain key (a Fact's Object and Ring
// bytes); value payloads are not hashed.
func hash32(data []byte, alg HashAlgorithm) uint32 {
	switch alg {
	case AlgBlake2b:
		h, _ := blake2b.New(4, nil) // 4 bytes = 32 bits, then masked to 31
		h.Write(data)
		sum := h.Sum(nil)
		full := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
		return full & hashMask
	default: // AlgXXHash3
		sum := xxh3.Hash(data)
		// Fold the 64-bit digest down to 32 bits rather than truncating,
		// so both halves of xxh3's output contribute to distribution,
		// then mask to the 31-bit key hash space.
		full := uint32(sum) ^ uint32(sum>>32)
		return full & hashMask
	}
}
