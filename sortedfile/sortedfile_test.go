package sortedfile_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/sortedfile"
)

func buildFile(t *testing.T, entries []sortedfile.Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	b := sortedfile.NewBuilder(&buf)
	for _, e := range entries {
		require.NoError(t, b.Push(e.Key, e.Value))
	}
	require.NoError(t, b.Finish())
	return buf.Bytes()
}

// Build a SortedFile from [(a,1),(b,2),(c,3)]; get(b)==2 and
// get(d) misses, and iteration yields all three in order.
func TestBuildAndGet(t *testing.T) {
	data := buildFile(t, []sortedfile.Entry{
		{Key: "a", Value: []byte{1}},
		{Key: "b", Value: []byte{2}},
		{Key: "c", Value: []byte{3}},
	})

	r, err := sortedfile.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	v, ok, err := r.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{2}, v)

	_, ok, err = r.Get("d")
	require.NoError(t, err)
	require.False(t, ok)

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Key)
	require.Equal(t, "b", all[1].Key)
	require.Equal(t, "c", all[2].Key)
}

func TestPushOutOfOrderRejected(t *testing.T) {
	var buf bytes.Buffer
	b := sortedfile.NewBuilder(&buf)
	require.NoError(t, b.Push("b", []byte("x")))
	err := b.Push("a", []byte("y"))
	require.ErrorIs(t, err, sortedfile.ErrOutOfOrder)
}

func TestEmptyFileStillHasFooter(t *testing.T) {
	var buf bytes.Buffer
	b := sortedfile.NewBuilder(&buf)
	require.NoError(t, b.Finish())
	require.Len(t, buf.Bytes(), sortedfile.FooterSize)

	r, err := sortedfile.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	all, err := r.All()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestRangeWithSpecPrefix(t *testing.T) {
	cols := []string{"apple", "avocado", "cantaloupe", "cherry", "corn", "couscous", "dandelion", "durian", "fig", "fruit"}
	entries := make([]sortedfile.Entry, 0, len(cols))
	sorted := append([]string(nil), cols...)
	// Build in sorted order, as the builder requires.
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, c := range sorted {
		entries = append(entries, sortedfile.Entry{Key: c, Value: []byte(c)})
	}
	data := buildFile(t, entries)

	r, err := sortedfile.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	got, err := r.Range("c", "", "")
	require.NoError(t, err)
	var keys []string
	for _, e := range got {
		keys = append(keys, e.Key)
	}
	require.Equal(t, []string{"cantaloupe", "cherry", "corn", "couscous"}, keys)
}

func TestShardBoundariesBounded(t *testing.T) {
	entries := []sortedfile.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "c", Value: []byte("3")},
		{Key: "d", Value: []byte("4")},
		{Key: "e", Value: []byte("5")},
		{Key: "f", Value: []byte("6")},
		{Key: "g", Value: []byte("7")},
	}
	data := buildFile(t, entries)
	r, err := sortedfile.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	bounds, err := r.ShardBoundaries(3)
	require.NoError(t, err)
	require.LessOrEqual(t, len(bounds), 2)
}
