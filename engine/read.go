package engine

import (
	"sort"

	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/recordkey"
	"github.com/colin353/corestore/sortedfile"
)

// sstLookup finds the version of (row, col) in reader with the
// largest timestamp <= ts, or ok=false if none exists. The composite
// key encodes timestamps in complemented form so versions of the same
// (row, col) appear newest-first; the first entry satisfying the
// bound is the answer.
func sstLookup(reader *sortedfile.Reader, row, col string, ts uint64) (model.Record, bool, error) {
	prefix := recordkey.RowColPrefix(row, col)
	entries, err := reader.Range(prefix, prefix, "")
	if err != nil {
		return model.Record{}, false, err
	}
	for _, e := range entries {
		_, _, entryTS, ok := recordkey.Decode(e.Key)
		if !ok || entryTS > ts {
			continue
		}
		deleted, data, err := decodeValue(e.Value)
		if err != nil {
			return model.Record{}, false, err
		}
		return model.Record{Row: row, Col: col, Timestamp: entryTS, Data: data, Deleted: deleted}, true, nil
	}
	return model.Record{}, false, nil
}

// sstLatest returns the newest version of (row, col) regardless of
// timestamp, used by ReserveID to find the current max timestamp.
func sstLatest(reader *sortedfile.Reader, row, col string) (model.Record, bool, error) {
	return sstLookup(reader, row, col, ^uint64(0))
}

// Read implements the engine read path: query every MemTable and every
// SortedFile, return the hit with the largest timestamp (which may be
// a tombstone — callers decide what that means).
func (e *Engine) Read(row, col string, ts uint64) (model.Record, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.metrics.reads.Inc()
	return e.readLocked(row, col, ts)
}

func (e *Engine) readLocked(row, col string, ts uint64) (model.Record, bool, error) {
	var best model.Record
	found := false
	for _, mt := range e.memtables {
		if rec, ok := mt.Read(row, col, ts); ok && (!found || rec.Timestamp > best.Timestamp) {
			best, found = rec, true
		}
	}
	for _, h := range e.sortedFiles {
		rec, ok, err := sstLookup(h.reader, row, col, ts)
		if err != nil {
			return model.Record{}, false, err
		}
		if ok && (!found || rec.Timestamp > best.Timestamp) {
			best, found = rec, true
		}
	}
	return best, found, nil
}

// ReadRange implements read_range: for every column of row within
// [minCol, maxCol) matching colSpec, resolve its visible version at ts
// across every MemTable/SortedFile, dropping tombstones, honoring
// limit (0 = unlimited).
func (e *Engine) ReadRange(row, colSpec, minCol, maxCol string, limit int, ts uint64) ([]model.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.metrics.reads.Inc()

	colSet := make(map[string]bool)
	for _, mt := range e.memtables {
		for _, c := range mt.ColumnsInRange(row, colSpec, minCol, maxCol) {
			colSet[c] = true
		}
	}

	rowPrefix := recordkey.RowPrefix(row)
	spec := rowPrefix + colSpec
	min := rowPrefix
	if minCol != "" {
		min = rowPrefix + minCol
	}
	max := ""
	if maxCol != "" {
		max = rowPrefix + maxCol
	}
	for _, h := range e.sortedFiles {
		entries, err := h.reader.Range(spec, min, max)
		if err != nil {
			return nil, err
		}
		for _, en := range entries {
			_, col, _, ok := recordkey.Decode(en.Key)
			if ok {
				colSet[col] = true
			}
		}
	}

	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var out []model.Record
	for _, col := range cols {
		rec, ok, err := e.readLocked(row, col, ts)
		if err != nil {
			return nil, err
		}
		if !ok || rec.Deleted {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
