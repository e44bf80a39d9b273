package engine

import (
	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/journal"
	"github.com/colin353/corestore/memtable"
	"github.com/colin353/corestore/sortedfile"
)

// CheckMemory is the memtable spill trigger: if the active MemTable's
// memory usage exceeds the configured limit, atomically rotate in a
// new journal and MemTable, spill the old MemTable to a new
// SortedFile, and unlink the old journal.
//
// The crash-safety rule is: fsync the spill file (and its directory
// entry) before unlinking the old journal, so a crash in between is
// recovered by replaying the still-present old journal, producing
// identical (idempotent, by timestamp) records.
func (e *Engine) CheckMemory() error {
	e.mu.Lock()
	if len(e.memtables) == 0 || e.memtables[0].MemoryUsage() <= e.memoryLimit {
		e.mu.Unlock()
		return nil
	}

	oldJournalPath := e.journalPath
	oldJournalFile := e.journalFile

	newJournalPath, newJournalFile, err := e.newFileHandle(journalExt)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.journalWriter = journal.NewWriter(newJournalFile)
	e.journalFile = newJournalFile
	e.journalPath = newJournalPath

	e.addMemtableLocked() // new M[0]; the full MemTable is now at M[1]
	toSpill := e.memtables[1]
	e.mu.Unlock()

	spillPath, spillFile, err := e.newFileHandle(sortedFileExt)
	if err != nil {
		return err
	}
	if err := spillMemtable(toSpill, spillFile); err != nil {
		spillFile.Close()
		return errors.Wrapf(err, "engine: spill memtable to %s", spillPath)
	}
	if err := spillFile.Sync(); err != nil {
		return errors.Wrapf(err, "engine: fsync spilled file %s", spillPath)
	}
	if err := vfs.Syncdir(e.dataDir); err != nil {
		return errors.Wrapf(err, "engine: fsync data directory after spill")
	}

	e.mu.Lock()
	if err := e.addSortedFileLocked(spillPath); err != nil {
		e.mu.Unlock()
		return err
	}
	e.memtables = e.memtables[:1]
	e.mu.Unlock()

	if oldJournalFile != nil {
		oldJournalFile.Close()
		if err := e.fs.Remove(oldJournalPath); err != nil {
			return errors.Wrapf(err, "engine: unlink old journal %s", oldJournalPath)
		}
	}

	e.metrics.spills.Inc()
	return nil
}

func spillMemtable(mt *memtable.MemTable, w vfs.File) error {
	b := sortedfile.NewBuilder(w)
	for _, entry := range mt.Spill() {
		if err := b.Push(entry.Key, encodeValue(entry.Record.Deleted, entry.Record.Data)); err != nil {
			return err
		}
	}
	return b.Finish()
}
