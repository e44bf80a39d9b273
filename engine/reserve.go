package engine

import "github.com/colin353/corestore/internal/model"

// ReserveID implements reserve_id: under the engine's exclusive lock,
// find the current max timestamp across every MemTable and
// SortedFile at (row, col), then write a new record at max+1. Used by
// the VCS layer to allocate monotonically increasing change/submit
// IDs.
func (e *Engine) ReserveID(row, col string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var maxTS uint64
	for _, mt := range e.memtables {
		if rec, ok := mt.Read(row, col, ^uint64(0)); ok && rec.Timestamp > maxTS {
			maxTS = rec.Timestamp
		}
	}
	for _, h := range e.sortedFiles {
		rec, ok, err := sstLatest(h.reader, row, col)
		if err != nil {
			return 0, err
		}
		if ok && rec.Timestamp > maxTS {
			maxTS = rec.Timestamp
		}
	}

	next := maxTS + 1
	if err := e.writeLocked(row, col, model.Record{Timestamp: next}); err != nil {
		return 0, err
	}
	return next, nil
}
