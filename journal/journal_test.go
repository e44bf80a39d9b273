package journal_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/journal"
)

func TestAppendAndReplay(t *testing.T) {
	var buf bytes.Buffer
	w := journal.NewWriter(&buf)
	records := []journal.Record{
		{Row: "r1", Col: "c1", Timestamp: 1, Data: []byte("hello")},
		{Row: "r1", Col: "c2", Timestamp: 2, Data: nil, Deleted: true},
	}
	for _, rec := range records {
		require.NoError(t, w.Append(rec))
	}

	r := journal.NewReader(&buf)
	for _, want := range records {
		got, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok, err := r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTruncatedTailIsDiscardedNotAnError(t *testing.T) {
	var buf bytes.Buffer
	w := journal.NewWriter(&buf)
	require.NoError(t, w.Append(journal.Record{Row: "r", Col: "c", Timestamp: 1, Data: []byte("ok")}))

	full := buf.Bytes()
	truncated := full[:len(full)-1]

	r := journal.NewReader(bytes.NewReader(truncated))
	_, ok, err := r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
