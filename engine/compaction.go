package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/colin353/corestore/internal/recordkey"
	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/merge"
	"github.com/colin353/corestore/sortedfile"
)

// CompactionPolicy narrows what a compaction keeps: a retention
// horizon drops anything older, and a keep-newest-N bound caps how
// many versions of each (row, col) survive.
type CompactionPolicy struct {
	// RetentionHorizon, if non-zero, drops any record with a
	// timestamp strictly less than this value.
	RetentionHorizon uint64
	// KeepNewestN, if non-zero, keeps only the N newest versions of
	// each (row, col).
	KeepNewestN int
}

// Compact k-way merges every current SortedFile into one new file,
// applying policies, then atomically swaps the SortedFile list and
// unlinks the inputs. The new file is fsynced before the swap so a
// crash before unlink cannot lose data (the pre-compaction files are
// still present and consistent). With one SortedFile or none, Compact
// returns nil without rewriting anything, so policies are not applied.
//
// Concurrent callers (a periodic background compactor racing a
// manually triggered one) collapse onto a single pass via
// singleflight: whichever call arrives first runs compactLocked with
// its own policies, and any call arriving while that is in flight
// just waits for it and shares the result instead of compacting
// twice back to back.
func (e *Engine) Compact(policies []CompactionPolicy) error {
	_, err, _ := e.compactGroup.Do("compact", func() (interface{}, error) {
		return nil, e.compactLocked(policies)
	})
	return err
}

func (e *Engine) compactLocked(policies []CompactionPolicy) error {
	e.mu.RLock()
	handles := append([]*sstHandle(nil), e.sortedFiles...)
	e.mu.RUnlock()

	if len(handles) <= 1 {
		return nil
	}

	readers := make([]*sortedfile.Reader, len(handles))
	oldPaths := make([]string, len(handles))
	for i, h := range handles {
		readers[i] = h.reader
		oldPaths[i] = h.path
	}

	r, err := merge.NewFromFiles(readers, "", "")
	if err != nil {
		return err
	}
	merged := r.All()
	filtered := applyCompactionPolicies(merged, policies)
	e.metrics.RecordCompactedBytesEstimate(estimateCompactedBytes(filtered))

	path, f, err := e.newFileHandle(sortedFileExt)
	if err != nil {
		return err
	}
	b := sortedfile.NewBuilder(f)
	for _, en := range filtered {
		if err := b.Push(en.Key, en.Value); err != nil {
			f.Close()
			return errors.Wrapf(err, "engine: write compacted file %s", path)
		}
	}
	if err := b.Finish(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "engine: fsync compacted file %s", path)
	}
	if err := vfs.Syncdir(e.dataDir); err != nil {
		return errors.Wrapf(err, "engine: fsync data directory after compaction")
	}

	e.mu.Lock()
	e.clearSortedFilesLocked()
	if err := e.addSortedFileLocked(path); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	for _, p := range oldPaths {
		if err := e.fs.Remove(p); err != nil {
			return errors.Wrapf(err, "engine: unlink compacted input %s", p)
		}
	}
	e.metrics.compactions.Inc()
	return nil
}

// clearSortedFilesLocked drops tracked handles without acquiring the
// lock; callers must already hold e.mu for writing.
func (e *Engine) clearSortedFilesLocked() {
	for _, h := range e.sortedFiles {
		h.file.Close()
	}
	e.sortedFiles = nil
}

// estimateCompactedBytes snappy-compresses every surviving value to
// get a cheap lower bound on the compacted file's size without
// actually building the SortedFile twice — used only to feed the
// retention policy accounting metric, never to decide what survives.
func estimateCompactedBytes(entries []merge.Entry) int64 {
	var total int64
	for _, en := range entries {
		total += int64(len(en.Key)) + int64(len(snappy.Encode(nil, en.Value)))
	}
	return total
}

func applyCompactionPolicies(entries []merge.Entry, policies []CompactionPolicy) []merge.Entry {
	if len(policies) == 0 {
		return entries
	}
	var retentionHorizon uint64
	keepNewestN := 0
	for _, p := range policies {
		if p.RetentionHorizon > retentionHorizon {
			retentionHorizon = p.RetentionHorizon
		}
		if p.KeepNewestN > 0 && (keepNewestN == 0 || p.KeepNewestN < keepNewestN) {
			keepNewestN = p.KeepNewestN
		}
	}

	var out []merge.Entry
	lastRow, lastCol := "", ""
	kept := 0
	for _, en := range entries {
		row, col, ts, ok := recordkey.Decode(en.Key)
		if !ok {
			out = append(out, en)
			continue
		}
		if retentionHorizon > 0 && ts < retentionHorizon {
			continue
		}
		if row != lastRow || col != lastCol {
			lastRow, lastCol, kept = row, col, 0
		}
		if keepNewestN > 0 && kept >= keepNewestN {
			continue
		}
		kept++
		out = append(out, en)
	}
	return out
}
