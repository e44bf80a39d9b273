package sortedfile

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// indexEntry records the body offset of the first key written after
// crossing a BlockSize boundary (or the very first key of the file).
type indexEntry struct {
	key    string
	offset uint64
}

// Builder writes a SortedFile to an underlying io.Writer. Keys must be
// pushed in non-decreasing order; Finish must be called exactly once
// to emit the index and footer.
type Builder struct {
	w            io.Writer
	bytesWritten uint64
	lastKey      string
	haveLastKey  bool
	index        []indexEntry
	finished     bool
}

// NewBuilder wraps w. w is written to sequentially and never seeked.
func NewBuilder(w io.Writer) *Builder {
	return &Builder{w: w}
}

// Push appends (key, value) to the body. Returns ErrOutOfOrder if key
// is strictly less than the previously pushed key.
func (b *Builder) Push(key string, value []byte) error {
	if b.finished {
		return errors.New("sortedfile: Push after Finish")
	}
	if b.haveLastKey && key < b.lastKey {
		return errors.Wrapf(ErrOutOfOrder, "key %q < previous key %q", key, b.lastKey)
	}

	length := uint64(2+len(key)+4+len(value))

	// An index entry is due at the very first write, when this record
	// alone exceeds a block, or when writing it crosses a
	// BlockSize-aligned offset.
	needsIndexEntry := b.bytesWritten == 0 ||
		length >= BlockSize ||
		(b.bytesWritten+length)%BlockSize < b.bytesWritten%BlockSize

	if needsIndexEntry {
		b.index = append(b.index, indexEntry{key: key, offset: b.bytesWritten})
	}

	if err := b.writeRecord(key, value); err != nil {
		return err
	}

	b.bytesWritten += length
	b.lastKey = key
	b.haveLastKey = true
	return nil
}

func (b *Builder) writeRecord(key string, value []byte) error {
	var hdr [6]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(len(key)))
	if _, err := b.w.Write(hdr[0:2]); err != nil {
		return errors.Wrap(err, "sortedfile: write key length")
	}
	if _, err := io.WriteString(b.w, key); err != nil {
		return errors.Wrap(err, "sortedfile: write key")
	}
	binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(value)))
	if _, err := b.w.Write(hdr[2:6]); err != nil {
		return errors.Wrap(err, "sortedfile: write value length")
	}
	if _, err := b.w.Write(value); err != nil {
		return errors.Wrap(err, "sortedfile: write value")
	}
	return nil
}

// Finish writes the index block and the fixed footer. It is legal to
// call Finish on an empty builder (zero entries); the resulting file
// still carries a valid footer with an empty index.
func (b *Builder) Finish() error {
	if b.finished {
		return errors.New("sortedfile: Finish called twice")
	}
	b.finished = true

	indexOffset := b.bytesWritten
	var indexSize uint64
	for _, e := range b.index {
		var hdr [2]byte
		binary.LittleEndian.PutUint16(hdr[:], uint16(len(e.key)))
		if _, err := b.w.Write(hdr[:]); err != nil {
			return errors.Wrap(err, "sortedfile: write index key length")
		}
		if _, err := io.WriteString(b.w, e.key); err != nil {
			return errors.Wrap(err, "sortedfile: write index key")
		}
		var off [8]byte
		binary.LittleEndian.PutUint64(off[:], e.offset)
		if _, err := b.w.Write(off[:]); err != nil {
			return errors.Wrap(err, "sortedfile: write index offset")
		}
		indexSize += uint64(2 + len(e.key) + 8)
	}

	var footer [FooterSize]byte
	binary.LittleEndian.PutUint16(footer[0:2], CurrentVersion)
	binary.LittleEndian.PutUint64(footer[2:10], indexOffset)
	binary.LittleEndian.PutUint32(footer[10:14], uint32(indexSize))
	if _, err := b.w.Write(footer[:]); err != nil {
		return errors.Wrap(err, "sortedfile: write footer")
	}
	return nil
}
