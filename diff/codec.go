package diff

import (
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Compress returns data compressed for storage in a ByteDiff tagged
// CompressionLZ4 (see the comment on that constant for the naming
// note).
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)))
}

// Decompress reverses Compress, or returns data unchanged for
// CompressionNone.
func Decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		out, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(err, "diff: decompress")
		}
		return out, nil
	default:
		return nil, errors.Newf("diff: unknown compression kind %d", c)
	}
}

// dataLength is the decompressed length of d's payload, or 0 for a
// Removed edit (nothing is inserted).
func dataLength(d ByteDiff) (int, error) {
	if d.Kind == KindRemoved {
		return 0, nil
	}
	data, err := Decompress(d.Compression, d.Data)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
