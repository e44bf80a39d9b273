// Package sortedfile implements the immutable on-disk sorted key-value
// file: an append-built body of length-prefixed key/value pairs, a
// block index, and a fixed 14-byte footer. It is the storage primitive
// both the LSM engine (spilled MemTables, compacted levels) and the
// VCS metadata cache build on.
//
// Layout, bit-exact:
//
//	body:   repeated [key_len u16 LE][key][value_len u32 LE][value], keys non-decreasing
//	index:  repeated [key_len u16 LE][key][offset u64 LE]
//	footer: [version u16 LE][index_offset u64 LE][index_size u32 LE]  (14 bytes)
package sortedfile

import "github.com/cockroachdb/errors"

// BlockSize is the index granularity: a new index entry is emitted
// whenever a body-offset boundary of this many bytes is crossed, in
// addition to the mandatory entry at the first write.
const BlockSize = 65536

// FooterSize is the fixed, bit-exact trailer size.
const FooterSize = 14

// CurrentVersion is the SortedFile format version written by Finish.
const CurrentVersion uint16 = 0

var (
	// ErrOutOfOrder is returned by Push when a key is strictly less
	// than the previously pushed key.
	ErrOutOfOrder = errors.New("sortedfile: keys must be written in order")
	// ErrInvalidFooter is returned by Open when the trailing 14 bytes
	// don't parse into a plausible footer.
	ErrInvalidFooter = errors.New("sortedfile: invalid footer")
	// ErrTruncatedBlock is returned when a record's declared length
	// runs past the end of the body.
	ErrTruncatedBlock = errors.New("sortedfile: truncated block")
	// ErrDecode is returned when a key or value length overruns the
	// remaining buffer.
	ErrDecode = errors.New("sortedfile: decode error")
)

// Entry is a single (key, value) pair, as produced during iteration.
type Entry struct {
	Key   string
	Value []byte
}
