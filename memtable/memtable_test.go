package memtable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/memtable"
)

func TestReadPicksLargestTimestampAtOrBelowQuery(t *testing.T) {
	m := memtable.New()
	m.Write("r", "c", model.Record{Timestamp: 1, Data: []byte{9}})
	m.Write("r", "c", model.Record{Timestamp: 2, Data: []byte{42}})

	rec, ok := m.Read("r", "c", 500)
	require.True(t, ok)
	require.Equal(t, []byte{42}, rec.Data)

	rec, ok = m.Read("r", "c", 1)
	require.True(t, ok)
	require.Equal(t, []byte{9}, rec.Data)

	_, ok = m.Read("r", "c", 0)
	require.False(t, ok)
}

// ReadRange on a row with 10 columns and column spec "c" returns the
// four columns carrying that prefix, in order.
func TestReadRangeColumnSpec(t *testing.T) {
	m := memtable.New()
	cols := []string{"apple", "cantaloupe", "cherry", "corn", "couscous", "dandelion", "durian", "fig", "fruit", "avocado"}
	for _, c := range cols {
		m.Write("a", c, model.Record{Timestamp: 1234, Data: []byte(c)})
	}

	got := m.ReadRange("a", "c", "", "", 100, 1234)
	var names []string
	for _, r := range got {
		names = append(names, string(r.Data))
	}
	require.Equal(t, []string{"cantaloupe", "cherry", "corn", "couscous"}, names)
}

func TestWriteAtExistingTimestampReplaces(t *testing.T) {
	m := memtable.New()
	m.Write("r", "c", model.Record{Timestamp: 5, Data: []byte("first")})
	m.Write("r", "c", model.Record{Timestamp: 5, Data: []byte("second")})

	rec, ok := m.Read("r", "c", 5)
	require.True(t, ok)
	require.Equal(t, []byte("second"), rec.Data)

	entries := m.Spill()
	require.Len(t, entries, 1)
	require.Equal(t, []byte("second"), entries[0].Record.Data)
}

func TestReadRangeSkipsTombstones(t *testing.T) {
	m := memtable.New()
	m.Write("r", "a", model.Record{Timestamp: 1, Data: []byte("x")})
	m.Write("r", "b", model.Record{Timestamp: 1, Deleted: true})

	got := m.ReadRange("r", "", "", "", 0, 10)
	require.Len(t, got, 1)
	require.Equal(t, []byte("x"), got[0].Data)
}

func TestSpillSortsCompositeKeysAscending(t *testing.T) {
	m := memtable.New()
	m.Write("r2", "c", model.Record{Timestamp: 1})
	m.Write("r1", "c", model.Record{Timestamp: 1})
	m.Write("r1", "c", model.Record{Timestamp: 2})

	entries := m.Spill()
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.LessOrEqual(t, entries[i-1].Key, entries[i].Key)
	}
}
