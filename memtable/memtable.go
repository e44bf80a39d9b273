// Package memtable implements the ordered in-memory table of
// (row, col, timestamp) -> Record backing the LSM engine's write
// buffer: insertion into a per-row sorted column list, with
// latest-at-or-below-timestamp reads.
package memtable

import (
	"sort"
	"strings"

	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/recordkey"
)

type versionedRecord struct {
	timestamp uint64
	record    model.Record
}

type rowData struct {
	cols     []string // sorted, unique
	versions map[string][]versionedRecord
}

// MemTable is NOT internally synchronized; the LSM engine guards
// access with its own locking discipline.
type MemTable struct {
	rows        map[string]*rowData
	approxBytes int64
}

func New() *MemTable {
	return &MemTable{rows: make(map[string]*rowData)}
}

// Write inserts rec at (row, col), maintaining timestamp order within
// the column's version list. A write at an already-present timestamp
// replaces that version in place: the last writer at a given logical
// timestamp wins, so a rewrite must not leave the stale version to
// resurface after a spill.
func (m *MemTable) Write(row, col string, rec model.Record) {
	rd, ok := m.rows[row]
	if !ok {
		rd = &rowData{versions: make(map[string][]versionedRecord)}
		m.rows[row] = rd
	}

	if _, exists := rd.versions[col]; !exists {
		i := sort.SearchStrings(rd.cols, col)
		rd.cols = append(rd.cols, "")
		copy(rd.cols[i+1:], rd.cols[i:])
		rd.cols[i] = col
	}

	versions := rd.versions[col]
	i := sort.Search(len(versions), func(i int) bool { return versions[i].timestamp >= rec.Timestamp })
	if i < len(versions) && versions[i].timestamp == rec.Timestamp {
		m.approxBytes += int64(len(rec.Data)) - int64(len(versions[i].record.Data))
		versions[i] = versionedRecord{timestamp: rec.Timestamp, record: rec}
		rd.versions[col] = versions
		return
	}
	versions = append(versions, versionedRecord{})
	copy(versions[i+1:], versions[i:])
	versions[i] = versionedRecord{timestamp: rec.Timestamp, record: rec}
	rd.versions[col] = versions

	m.approxBytes += int64(len(row) + len(col) + len(rec.Data) + 24)
}

// Read returns the record at (row, col) with the largest timestamp
// <= ts, or ok=false if none exists.
func (m *MemTable) Read(row, col string, ts uint64) (model.Record, bool) {
	rd, ok := m.rows[row]
	if !ok {
		return model.Record{}, false
	}
	versions, ok := rd.versions[col]
	if !ok {
		return model.Record{}, false
	}
	i := sort.Search(len(versions), func(i int) bool { return versions[i].timestamp > ts })
	if i == 0 {
		return model.Record{}, false
	}
	rec := versions[i-1].record
	rec.Row, rec.Col = row, col
	return rec, true
}

// ReadRange iterates columns of row lexicographically, restricted to
// [minCol, maxCol) and the colSpec prefix, yielding at most limit
// records (0 = unlimited): the latest version at or below ts per
// column, skipping tombstones.
func (m *MemTable) ReadRange(row, colSpec, minCol, maxCol string, limit int, ts uint64) []model.Record {
	rd, ok := m.rows[row]
	if !ok {
		return nil
	}

	start := 0
	if minCol != "" {
		start = sort.SearchStrings(rd.cols, minCol)
	}

	var out []model.Record
	for i := start; i < len(rd.cols); i++ {
		col := rd.cols[i]
		if maxCol != "" && col >= maxCol {
			break
		}
		if colSpec != "" && !strings.HasPrefix(col, colSpec) {
			if col >= colSpec {
				break
			}
			continue
		}
		rec, ok := m.Read(row, col, ts)
		if !ok || rec.Deleted {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ColumnsInRange lists every known column name of row within
// [minCol, maxCol) matching colSpec, irrespective of timestamp or
// tombstone state — used by the engine to enumerate read_range
// candidates before resolving each one's visible version.
func (m *MemTable) ColumnsInRange(row, colSpec, minCol, maxCol string) []string {
	rd, ok := m.rows[row]
	if !ok {
		return nil
	}
	start := 0
	if minCol != "" {
		start = sort.SearchStrings(rd.cols, minCol)
	}
	var out []string
	for i := start; i < len(rd.cols); i++ {
		col := rd.cols[i]
		if maxCol != "" && col >= maxCol {
			break
		}
		if colSpec != "" && !strings.HasPrefix(col, colSpec) {
			if col >= colSpec {
				break
			}
			continue
		}
		out = append(out, col)
	}
	return out
}

// MemoryUsage is an O(1) approximation of bytes held, used by the
// engine to decide when to spill.
func (m *MemTable) MemoryUsage() int64 {
	return m.approxBytes
}

// spillEntry is one (composite key, Record) pair for Spill.
type spillEntry struct {
	key    string
	record model.Record
}

// Spill returns every (row, col, timestamp) -> Record triple in this
// table, encoded with recordkey.Encode and sorted ascending — ready to
// feed directly into a sortedfile.Builder.
func (m *MemTable) Spill() []SpillEntry {
	var entries []spillEntry
	for row, rd := range m.rows {
		for col, versions := range rd.versions {
			for _, v := range versions {
				entries = append(entries, spillEntry{
					key:    recordkey.Encode(row, col, v.timestamp),
					record: v.record,
				})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	out := make([]SpillEntry, len(entries))
	for i, e := range entries {
		out[i] = SpillEntry{Key: e.key, Record: e.record}
	}
	return out
}

// SpillEntry is one exported (composite key, Record) pair.
type SpillEntry struct {
	Key    string
	Record model.Record
}
