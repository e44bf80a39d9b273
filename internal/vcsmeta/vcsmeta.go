// Package vcsmeta implements the key/value encoding the VCS client
// and server share for the metadata SortedFile GetMetadata serves:
// one entry per path, keyed by a zero-padded depth prefix so that a
// lexicographic SortedFile scan visits shallower directories before
// deeper ones, followed by the path itself.
package vcsmeta

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/internal/model"
)

// Key builds the metadata SortedFile key for path: a 3-digit,
// zero-padded segment count, a slash, then the path itself.
func Key(path string) string {
	depth := strings.Count(path, "/") + 1
	return fmt.Sprintf("%03d/%s", depth, path)
}

// DecodeKey splits a metadata key back into its depth and path.
func DecodeKey(key string) (depth int, path string, ok bool) {
	idx := strings.IndexByte(key, '/')
	if idx < 0 {
		return 0, "", false
	}
	d, err := strconv.Atoi(key[:idx])
	if err != nil {
		return 0, "", false
	}
	return d, key[idx+1:], true
}

// EncodeFile serializes a model.File for storage as a metadata
// SortedFile value: 1 byte is_dir, 8 bytes mtime (LE), 32 bytes sha,
// 8 bytes length (LE).
func EncodeFile(f model.File) []byte {
	buf := make([]byte, 1+8+32+8)
	if f.IsDir {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint64(buf[1:9], f.Mtime)
	copy(buf[9:41], f.Sha[:])
	binary.LittleEndian.PutUint64(buf[41:49], f.Length)
	return buf
}

// DecodeFile is the inverse of EncodeFile.
func DecodeFile(b []byte) (model.File, error) {
	if len(b) != 1+8+32+8 {
		return model.File{}, errors.Newf("vcsmeta: malformed file record (%d bytes)", len(b))
	}
	var f model.File
	f.IsDir = b[0] != 0
	f.Mtime = binary.LittleEndian.Uint64(b[1:9])
	copy(f.Sha[:], b[9:41])
	f.Length = binary.LittleEndian.Uint64(b[41:49])
	return f, nil
}
