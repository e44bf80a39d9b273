package sortedfile

import (
	"encoding/binary"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Reader is an opened, immutable SortedFile.
type Reader struct {
	r        io.ReaderAt
	bodySize uint64
	index    []indexEntry
}

// Open parses the footer and index of a SortedFile of the given total
// size. r must support random access for the lifetime of the Reader.
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	if size < FooterSize {
		return nil, errors.Wrapf(ErrInvalidFooter, "file too small (%d bytes)", size)
	}

	var footer [FooterSize]byte
	if _, err := r.ReadAt(footer[:], size-FooterSize); err != nil {
		return nil, errors.Wrap(err, "sortedfile: read footer")
	}

	version := binary.LittleEndian.Uint16(footer[0:2])
	indexOffset := binary.LittleEndian.Uint64(footer[2:10])
	indexSize := binary.LittleEndian.Uint32(footer[10:14])
	if version != CurrentVersion {
		return nil, errors.Wrapf(ErrInvalidFooter, "unsupported version %d", version)
	}
	if int64(indexOffset)+int64(indexSize)+FooterSize != size {
		return nil, errors.Wrapf(ErrInvalidFooter, "footer offsets inconsistent with file size %d", size)
	}

	rdr := &Reader{r: r, bodySize: indexOffset}

	buf := make([]byte, indexSize)
	if indexSize > 0 {
		if _, err := r.ReadAt(buf, int64(indexOffset)); err != nil {
			return nil, errors.Wrap(err, "sortedfile: read index")
		}
	}
	pos := 0
	for pos < len(buf) {
		if pos+2 > len(buf) {
			return nil, errors.Wrap(ErrDecode, "sortedfile: truncated index key length")
		}
		klen := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+klen+8 > len(buf) {
			return nil, errors.Wrap(ErrDecode, "sortedfile: truncated index entry")
		}
		key := string(buf[pos : pos+klen])
		pos += klen
		offset := binary.LittleEndian.Uint64(buf[pos : pos+8])
		pos += 8
		rdr.index = append(rdr.index, indexEntry{key: key, offset: offset})
	}

	return rdr, nil
}

// decodeAt decodes the record at offset, returning the key, value and
// the offset of the following record.
func (r *Reader) decodeAt(offset uint64) (key string, value []byte, next uint64, err error) {
	if offset+2 > r.bodySize {
		return "", nil, 0, errors.Wrap(ErrTruncatedBlock, "sortedfile: key length overruns body")
	}
	var hdr [2]byte
	if _, err = r.r.ReadAt(hdr[:], int64(offset)); err != nil {
		return "", nil, 0, errors.Wrap(err, "sortedfile: read key length")
	}
	klen := uint64(binary.LittleEndian.Uint16(hdr[:]))
	keyBuf := make([]byte, klen)
	if offset+2+klen > r.bodySize {
		return "", nil, 0, errors.Wrap(ErrTruncatedBlock, "sortedfile: key overruns body")
	}
	if klen > 0 {
		if _, err = r.r.ReadAt(keyBuf, int64(offset+2)); err != nil {
			return "", nil, 0, errors.Wrap(err, "sortedfile: read key")
		}
	}
	var vhdr [4]byte
	vOff := offset + 2 + klen
	if vOff+4 > r.bodySize {
		return "", nil, 0, errors.Wrap(ErrTruncatedBlock, "sortedfile: value length overruns body")
	}
	if _, err = r.r.ReadAt(vhdr[:], int64(vOff)); err != nil {
		return "", nil, 0, errors.Wrap(err, "sortedfile: read value length")
	}
	vlen := uint64(binary.LittleEndian.Uint32(vhdr[:]))
	valBuf := make([]byte, vlen)
	dataOff := vOff + 4
	if dataOff+vlen > r.bodySize {
		return "", nil, 0, errors.Wrap(ErrTruncatedBlock, "sortedfile: value overruns body")
	}
	if vlen > 0 {
		if _, err = r.r.ReadAt(valBuf, int64(dataOff)); err != nil {
			return "", nil, 0, errors.Wrap(err, "sortedfile: read value")
		}
	}
	return string(keyBuf), valBuf, dataOff + vlen, nil
}

// blockStartFor returns the body offset to begin scanning from in
// order to find key: the offset of the last index entry whose key is
// <= the target, or 0 if the index is empty or the target precedes
// the first indexed key.
func (r *Reader) blockStartFor(key string) (uint64, bool) {
	if len(r.index) == 0 {
		return 0, false
	}
	i := sort.Search(len(r.index), func(i int) bool { return r.index[i].key > key })
	if i == 0 {
		// key precedes the first index entry: still scan from the
		// start, since the first entry's key is the file's minimum.
		if key < r.index[0].key {
			return 0, false
		}
		return r.index[0].offset, true
	}
	return r.index[i-1].offset, true
}

// Get looks up key with the binary-search-then-linear-scan contract:
// locate the block whose first key <= key, then scan until key is
// found, exceeded (not present), or the body ends.
func (r *Reader) Get(key string) ([]byte, bool, error) {
	start, ok := r.blockStartFor(key)
	if !ok {
		return nil, false, nil
	}
	offset := start
	for offset < r.bodySize {
		k, v, next, err := r.decodeAt(offset)
		if err != nil {
			return nil, false, err
		}
		if k == key {
			return v, true, nil
		}
		if k > key {
			return nil, false, nil
		}
		offset = next
	}
	return nil, false, nil
}

// Range scans [min, max) (max empty means unbounded) restricted to
// keys with the given prefix spec (empty spec matches all).
func (r *Reader) Range(spec, min, max string) ([]Entry, error) {
	var start uint64
	if min != "" {
		s, ok := r.blockStartFor(min)
		if ok {
			start = s
		}
	} else if len(r.index) > 0 {
		start = r.index[0].offset
	}

	var out []Entry
	offset := start
	for offset < r.bodySize {
		k, v, next, err := r.decodeAt(offset)
		if err != nil {
			return nil, err
		}
		if min != "" && k < min {
			offset = next
			continue
		}
		if max != "" && k >= max {
			break
		}
		if spec != "" && !strings.HasPrefix(k, spec) {
			if k >= spec {
				break
			}
			offset = next
			continue
		}
		out = append(out, Entry{Key: k, Value: v})
		offset = next
	}
	return out, nil
}

// All iterates every (key, value) pair in the file in order.
func (r *Reader) All() ([]Entry, error) {
	return r.Range("", "", "")
}

// ShardHints returns the index keys falling inside [min, max) with the
// given prefix spec, used by the engine's ShardHints to plan parallel
// reads.
func (r *Reader) ShardHints(spec, min, max string) []string {
	var out []string
	for _, e := range r.index {
		if min != "" && e.key < min {
			continue
		}
		if max != "" && e.key >= max {
			continue
		}
		if spec != "" && !strings.HasPrefix(e.key, spec) {
			continue
		}
		out = append(out, e.key)
	}
	return out
}

// ShardBoundaries emits at most targetShardCount-1 evenly spaced keys
// drawn from the full body, suitable for splitting the file into
// targetShardCount roughly equal shards.
func (r *Reader) ShardBoundaries(targetShardCount int) ([]string, error) {
	if targetShardCount <= 1 {
		return nil, nil
	}
	entries, err := r.All()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	step := len(entries) / targetShardCount
	if step == 0 {
		step = 1
	}
	var out []string
	for i := 1; i < targetShardCount; i++ {
		idx := i * step
		if idx >= len(entries) {
			break
		}
		out = append(out, entries[idx].Key)
	}
	return out, nil
}
