// Package journal implements the record journal: an append-only,
// varint-framed log of fully qualified Records, used to recover a
// MemTable after a crash.
package journal

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/internal/model"
)

// Record is a fully qualified journal entry: row and col are always
// populated here, unlike the space-optimized MemTable representation,
// which strips them since they're recoverable from the journal frame.
type Record = model.Record

// Writer appends Records to an underlying io.Writer, one
// varint-length-prefixed frame per record.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Append serializes and writes one record frame.
func (w *Writer) Append(rec Record) error {
	body := encodeRecord(rec)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(body)))
	if _, err := w.w.Write(lenBuf[:n]); err != nil {
		return errors.Wrap(err, "journal: write frame length")
	}
	if _, err := w.w.Write(body); err != nil {
		return errors.Wrap(err, "journal: write frame body")
	}
	return nil
}

func encodeRecord(rec Record) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(rec.Row)))
	buf = append(buf, rec.Row...)
	buf = appendUvarint(buf, uint64(len(rec.Col)))
	buf = append(buf, rec.Col...)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], rec.Timestamp)
	buf = append(buf, ts[:]...)
	if rec.Deleted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUvarint(buf, uint64(len(rec.Data)))
	buf = append(buf, rec.Data...)
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Reader is a restartable, forward-only iterator over journal frames.
// It stops cleanly (Next returns ok=false, err=nil) the moment it
// cannot read a complete frame — an incomplete tail frame from a crash
// mid-write is discarded, not treated as an error.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

// Next returns the next record, or ok=false when the journal is
// exhausted or its tail is truncated.
func (r *Reader) Next() (Record, bool, error) {
	length, err := binary.ReadUvarint(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		// A partial varint at EOF surfaces as io.ErrUnexpectedEOF from
		// bufio; treat it the same as a truncated tail.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrap(err, "journal: read frame length")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrap(err, "journal: read frame body")
	}

	rec, err := decodeRecord(body)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func decodeRecord(body []byte) (Record, error) {
	buf := body
	row, buf, err := readLenPrefixed(buf)
	if err != nil {
		return Record{}, err
	}
	col, buf, err := readLenPrefixed(buf)
	if err != nil {
		return Record{}, err
	}
	if len(buf) < 9 {
		return Record{}, errors.New("journal: truncated timestamp/deleted fields")
	}
	ts := binary.LittleEndian.Uint64(buf[:8])
	deleted := buf[8] != 0
	buf = buf[9:]
	data, _, err := readLenPrefixed(buf)
	if err != nil {
		return Record{}, err
	}
	if len(data) == 0 {
		data = nil
	}
	return Record{Row: string(row), Col: string(col), Timestamp: ts, Data: data, Deleted: deleted}, nil
}

func readLenPrefixed(buf []byte) (value, rest []byte, err error) {
	n, consumed := binary.Uvarint(buf)
	if consumed <= 0 {
		return nil, nil, errors.New("journal: invalid length prefix")
	}
	buf = buf[consumed:]
	if uint64(len(buf)) < n {
		return nil, nil, errors.New("journal: length prefix overruns frame")
	}
	return buf[:n], buf[n:], nil
}
