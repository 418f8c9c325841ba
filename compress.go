// Compression for large text payloads.
//
// Text values at or above Config.CompressThreshold are zstd-compressed
// before being appended to the diary, when the compressed form is shorter
// than the original. The encoder and decoder are shared
// package-level instances, allocated once, since constructing either is
// expensive relative to compressing a single small value. The diary is a
// binary format, so the compressed bytes are stored directly with no
// text-safe armoring.
package factdiary

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

func compressBytes(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

func decompressBytes(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("factdiary: zstd decompress: %w", err)
	}
	return out, nil
}
