package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vfs"
)

func newTestEngine(t *testing.T, memoryLimit int64) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := New(vfs.Default, dir, memoryLimit, nil)
	require.NoError(t, err)
	e.AddMemtable()
	_, err = e.AddJournal()
	require.NoError(t, err)
	return e
}

// TestWriteReadAcrossSpill: two writes, a read that must see the
// newest, a spill, a read that must still see the newest (now from
// disk), one more write, and a final read that must see it.
func TestWriteReadAcrossSpill(t *testing.T) {
	e := newTestEngine(t, 1<<30) // large limit: we trigger the spill by hand

	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 1, Data: []byte{9}}))
	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 2, Data: []byte{42}}))

	rec, ok, err := e.Read("r", "c", 500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{42}, rec.Data)

	require.NoError(t, e.forceSpill())

	rec, ok, err = e.Read("r", "c", 500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{42}, rec.Data)

	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 400, Data: []byte{99}}))

	rec, ok, err = e.Read("r", "c", 500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{99}, rec.Data)
}

// forceSpill bypasses the memory-limit check for tests that want to
// force a spill deterministically rather than writing until the
// configured limit trips.
func (e *Engine) forceSpill() error {
	e.mu.Lock()
	e.memoryLimit = 0
	e.mu.Unlock()
	err := e.CheckMemory()
	e.mu.Lock()
	e.memoryLimit = 1 << 30
	e.mu.Unlock()
	return err
}

func TestCheckMemoryTriggersOnLimit(t *testing.T) {
	e := newTestEngine(t, 1) // trips immediately after one write

	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 1, Data: []byte("hello world")}))
	require.NoError(t, e.CheckMemory())

	e.mu.RLock()
	numSST := len(e.sortedFiles)
	numMT := len(e.memtables)
	e.mu.RUnlock()
	require.Equal(t, 1, numSST)
	require.Equal(t, 1, numMT)

	rec, ok, err := e.Read("r", "c", 500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello world"), rec.Data)
}

func TestReserveIDIsMonotonic(t *testing.T) {
	e := newTestEngine(t, 1<<30)

	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 5, Data: []byte{1}}))

	id1, err := e.ReserveID("r", "c")
	require.NoError(t, err)
	require.Equal(t, uint64(6), id1)

	id2, err := e.ReserveID("r", "c")
	require.NoError(t, err)
	require.Greater(t, id2, id1)
}

func TestReadRangeResolvesAcrossMemtableAndSortedFile(t *testing.T) {
	e := newTestEngine(t, 1<<30)

	require.NoError(t, e.Write("r", "col-a", model.Record{Timestamp: 1, Data: []byte("a")}))
	require.NoError(t, e.Write("r", "col-b", model.Record{Timestamp: 1, Data: []byte("b")}))
	require.NoError(t, e.forceSpill())
	require.NoError(t, e.Write("r", "col-c", model.Record{Timestamp: 2, Data: []byte("c")}))

	recs, err := e.ReadRange("r", "", "", "", 0, ^uint64(0))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "col-a", recs[0].Col)
	require.Equal(t, "col-b", recs[1].Col)
	require.Equal(t, "col-c", recs[2].Col)
}

// TestOpenRecoversFromJournal simulates a crash before any spill: the
// first engine's journal is the only durable copy of its writes, and a
// fresh Open of the same directory must replay it in full.
func TestOpenRecoversFromJournal(t *testing.T) {
	dir := t.TempDir()
	e, err := New(vfs.Default, dir, 1<<30, nil)
	require.NoError(t, err)
	e.AddMemtable()
	_, err = e.AddJournal()
	require.NoError(t, err)

	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 7, Data: []byte("persisted")}))
	require.NoError(t, e.Write("r", "c2", model.Record{Timestamp: 8, Deleted: true}))

	recovered, err := Open(vfs.Default, dir, 1<<30, nil)
	require.NoError(t, err)

	rec, ok, err := recovered.Read("r", "c", 500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("persisted"), rec.Data)

	rec, ok, err = recovered.Read("r", "c2", 500)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rec.Deleted, "tombstones survive replay")
}

func TestCompactMergesSortedFilesAndAppliesRetention(t *testing.T) {
	e := newTestEngine(t, 1)

	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 1, Data: []byte("old")}))
	require.NoError(t, e.CheckMemory())
	require.NoError(t, e.Write("r", "c", model.Record{Timestamp: 2, Data: []byte("new")}))
	require.NoError(t, e.CheckMemory())

	e.mu.RLock()
	numFiles := len(e.sortedFiles)
	e.mu.RUnlock()
	require.Equal(t, 2, numFiles)

	require.NoError(t, e.Compact([]CompactionPolicy{{RetentionHorizon: 2}}))

	e.mu.RLock()
	numFiles = len(e.sortedFiles)
	e.mu.RUnlock()
	require.Equal(t, 1, numFiles)

	_, ok, err := e.Read("r", "c", 1)
	require.NoError(t, err)
	require.False(t, ok, "version below the retention horizon should be dropped")

	rec, ok, err := e.Read("r", "c", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("new"), rec.Data)
}
