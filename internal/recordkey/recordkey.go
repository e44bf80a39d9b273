// Package recordkey implements the composite-key serialization shared
// by the MemTable spill path and the VCS submitted-data rows:
// within a row, columns sort lexicographically; within a
// column, timestamps sort descending (newest first), achieved by
// bitwise-complementing a big-endian timestamp.
//
// Encoded form: <row>\0<col>\0<~timestamp_bigendian>
package recordkey

import "encoding/binary"

// Encode produces the sortable composite key for (row, col, timestamp).
func Encode(row, col string, timestamp uint64) string {
	buf := make([]byte, 0, len(row)+1+len(col)+1+8)
	buf = append(buf, row...)
	buf = append(buf, 0)
	buf = append(buf, col...)
	buf = append(buf, 0)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	for i := range ts {
		ts[i] = ^ts[i]
	}
	buf = append(buf, ts[:]...)
	return string(buf)
}

// RowColPrefix is the key prefix matching every version of (row, col).
func RowColPrefix(row, col string) string {
	buf := make([]byte, 0, len(row)+1+len(col)+1)
	buf = append(buf, row...)
	buf = append(buf, 0)
	buf = append(buf, col...)
	buf = append(buf, 0)
	return string(buf)
}

// RowPrefix is the key prefix matching every column of row.
func RowPrefix(row string) string {
	buf := make([]byte, 0, len(row)+1)
	buf = append(buf, row...)
	buf = append(buf, 0)
	return string(buf)
}

// Decode splits an encoded key back into row, col and timestamp.
func Decode(key string) (row, col string, timestamp uint64, ok bool) {
	buf := []byte(key)
	i := indexByte(buf, 0)
	if i < 0 {
		return "", "", 0, false
	}
	row = string(buf[:i])
	rest := buf[i+1:]
	j := indexByte(rest, 0)
	if j < 0 {
		return "", "", 0, false
	}
	col = string(rest[:j])
	tsBytes := rest[j+1:]
	if len(tsBytes) != 8 {
		return "", "", 0, false
	}
	var ts [8]byte
	copy(ts[:], tsBytes)
	for i := range ts {
		ts[i] = ^ts[i]
	}
	timestamp = binary.BigEndian.Uint64(ts[:])
	return row, col, timestamp, true
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
