// Package engine implements the LSM storage engine: it composes the
// sortedfile, journal and memtable packages into a single
// read/write/range/compaction surface with memory-triggered spills
// and engine-managed file numbering.
package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/journal"
	"github.com/colin353/corestore/memtable"
	"github.com/colin353/corestore/sortedfile"
)

const (
	sortedFileExt = "sstable"
	journalExt    = "recordio"
)

// sstHandle is one loaded, immutable SortedFile and the open handle
// backing its Reader.
type sstHandle struct {
	path   string
	file   vfs.File
	reader *sortedfile.Reader
}

// Engine is the LSM storage engine. All mutation goes through a single
// coarse RWMutex: readers take it for read, writers (including
// ReserveID, which must observe every level at once) take it for
// write.
type Engine struct {
	mu sync.RWMutex

	fs      vfs.FS
	dataDir string

	memoryLimit int64

	memtables   []*memtable.MemTable // front (index 0) is the active, writable table
	sortedFiles []*sstHandle         // newest first

	journalWriter *journal.Writer
	journalFile   vfs.File
	journalPath   string

	nextFileNumber uint64

	// compactGroup collapses concurrent Compact calls arriving while a
	// compaction is already running into a single pass, so a periodic
	// background compactor and a manual trigger can't run back to
	// back.
	compactGroup singleflight.Group

	metrics *Metrics
}

// New constructs an empty Engine rooted at dataDir. Callers typically
// follow with AddSortedFile/LoadFromJournal to resume from disk, then
// AddMemtable/AddJournal if none were loaded — Open does exactly that
// for the common case of reopening a directory an engine previously
// wrote to.
func New(fs vfs.FS, dataDir string, memoryLimit int64, reg prometheus.Registerer) (*Engine, error) {
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "engine: create data directory %s", dataDir)
	}
	return &Engine{
		fs:          fs,
		dataDir:     dataDir,
		memoryLimit: memoryLimit,
		metrics:     newMetrics(reg),
	}, nil
}

// Open constructs an Engine rooted at dataDir and recovers it: every
// existing SortedFile is attached, every existing journal is replayed
// into a MemTable and immediately spilled back out to its own new
// SortedFile (so recovery never leaves more than the one, empty
// active MemTable CheckMemory's spill path assumes), the recovered
// journal is unlinked once its spill is durable, and a fresh
// memtable/journal pair is added on top ready to accept writes. Safe
// to call against an empty directory — it behaves like New followed
// by AddMemtable/AddJournal.
func Open(fs vfs.FS, dataDir string, memoryLimit int64, reg prometheus.Registerer) (*Engine, error) {
	e, err := New(fs, dataDir, memoryLimit, reg)
	if err != nil {
		return nil, err
	}

	names, err := fs.List(dataDir)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: list data directory %s", dataDir)
	}
	sort.Strings(names)

	var journalPaths []string
	for _, name := range names {
		path := fs.PathJoin(dataDir, name)
		switch {
		case strings.HasSuffix(name, "."+sortedFileExt):
			if err := e.AddSortedFile(path); err != nil {
				return nil, err
			}
		case strings.HasSuffix(name, "."+journalExt):
			journalPaths = append(journalPaths, path)
		}
	}

	for _, path := range journalPaths {
		if err := e.recoverJournal(path); err != nil {
			return nil, err
		}
	}

	e.AddMemtable()
	if _, err := e.AddJournal(); err != nil {
		return nil, err
	}
	return e, nil
}

// recoverJournal replays path into a throwaway MemTable, spills it to
// a brand new SortedFile, and unlinks path once the spill is durable.
// It never leaves the recovered data resident only in memory, so
// Open can recover an arbitrary number of old journals without
// violating the "at most one active MemTable" invariant the rest of
// the package assumes.
func (e *Engine) recoverJournal(path string) error {
	e.AddMemtable()
	if err := e.LoadFromJournal(path); err != nil {
		return err
	}

	e.mu.Lock()
	mt := e.memtables[0]
	e.mu.Unlock()

	spillPath, spillFile, err := e.newFileHandle(sortedFileExt)
	if err != nil {
		return err
	}
	if err := spillMemtable(mt, spillFile); err != nil {
		spillFile.Close()
		return errors.Wrapf(err, "engine: spill recovered journal %s", path)
	}
	if err := spillFile.Sync(); err != nil {
		return errors.Wrapf(err, "engine: fsync recovered spill %s", spillPath)
	}
	if err := vfs.Syncdir(e.dataDir); err != nil {
		return errors.Wrapf(err, "engine: fsync data directory after recovery spill")
	}

	e.mu.Lock()
	if err := e.addSortedFileLocked(spillPath); err != nil {
		e.mu.Unlock()
		return err
	}
	e.memtables = nil
	e.mu.Unlock()

	if err := e.fs.Remove(path); err != nil {
		return errors.Wrapf(err, "engine: unlink recovered journal %s", path)
	}
	return nil
}

// AddMemtable prepends a fresh, empty MemTable as the new write
// target, pushing the previous active table back one slot.
func (e *Engine) AddMemtable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addMemtableLocked()
}

func (e *Engine) addMemtableLocked() {
	e.memtables = append([]*memtable.MemTable{memtable.New()}, e.memtables...)
}

// AddJournal opens a fresh journal file, wires it in as the active
// journal, and returns its path.
func (e *Engine) AddJournal() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, f, err := e.newFileHandle(journalExt)
	if err != nil {
		return "", err
	}
	e.journalWriter = journal.NewWriter(f)
	e.journalFile = f
	e.journalPath = path
	return path, nil
}

// LoadFromJournal replays path's frames into the active MemTable
// (creating one via AddMemtable first if none exists). Used on
// startup to recover a MemTable after a crash.
func (e *Engine) LoadFromJournal(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.memtables) == 0 {
		e.addMemtableLocked()
	}
	f, err := e.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "engine: open journal %s for replay", path)
	}
	defer f.Close()

	r := journal.NewReader(f)
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return errors.Wrapf(err, "engine: replay journal %s", path)
		}
		if !ok {
			break
		}
		e.memtables[0].Write(rec.Row, rec.Col, model.Record{
			Timestamp: rec.Timestamp,
			Data:      rec.Data,
			Deleted:   rec.Deleted,
		})
	}
	return nil
}

// AddSortedFile opens path and prepends it to the SortedFile list
// (newest first).
func (e *Engine) AddSortedFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addSortedFileLocked(path)
}

func (e *Engine) addSortedFileLocked(path string) error {
	f, err := e.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "engine: open sorted file %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "engine: stat sorted file %s", path)
	}
	reader, err := sortedfile.Open(f, fi.Size())
	if err != nil {
		f.Close()
		return errors.Wrapf(kerr.InvalidData, "engine: %s: %v", path, err)
	}
	e.sortedFiles = append([]*sstHandle{{path: path, file: f, reader: reader}}, e.sortedFiles...)
	return nil
}

// DropMemtables discards every MemTable except the active one at
// index 0 — called right after its predecessor has been durably
// spilled to disk.
func (e *Engine) DropMemtables() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.memtables) > 1 {
		e.memtables = e.memtables[:1]
	}
}

// ClearSortedFiles drops every tracked SortedFile handle without
// removing the underlying files — used right before compaction swaps
// in the freshly compacted replacement.
func (e *Engine) ClearSortedFiles() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearSortedFilesLocked()
}

// MemoryUsage reports the active MemTable's approximate byte usage.
func (e *Engine) MemoryUsage() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.memtables) == 0 {
		return 0
	}
	return e.memtables[0].MemoryUsage()
}

// Metrics exposes the engine's counters and histograms, used by the
// cmd/ stats subcommand.
func (e *Engine) Metrics() *Metrics { return e.metrics }
