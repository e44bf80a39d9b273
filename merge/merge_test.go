package merge_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/merge"
	"github.com/colin353/corestore/sortedfile"
)

func TestKWayMergeOrdersByKeyThenSource(t *testing.T) {
	r := merge.NewReader([][]merge.Entry{
		{{Key: "a", Value: []byte("new-a")}, {Key: "c", Value: []byte("new-c")}},
		{{Key: "a", Value: []byte("old-a")}, {Key: "b", Value: []byte("old-b")}},
	})
	all := r.All()
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Key)
	require.Equal(t, []byte("new-a"), all[0].Value, "newer source (index 0) must win ties")
	require.Equal(t, "b", all[1].Key)
	require.Equal(t, "c", all[2].Key)
}

func buildSortedFile(t *testing.T, entries []sortedfile.Entry) *sortedfile.Reader {
	t.Helper()
	var buf bytes.Buffer
	b := sortedfile.NewBuilder(&buf)
	for _, e := range entries {
		require.NoError(t, b.Push(e.Key, e.Value))
	}
	require.NoError(t, b.Finish())
	data := buf.Bytes()
	r, err := sortedfile.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

func TestNewFromFilesRespectsWindow(t *testing.T) {
	newer := buildSortedFile(t, []sortedfile.Entry{
		{Key: "b", Value: []byte("new-b")},
		{Key: "d", Value: []byte("new-d")},
	})
	older := buildSortedFile(t, []sortedfile.Entry{
		{Key: "a", Value: []byte("old-a")},
		{Key: "b", Value: []byte("old-b")},
		{Key: "e", Value: []byte("old-e")},
	})

	r, err := merge.NewFromFiles([]*sortedfile.Reader{newer, older}, "b", "e")
	require.NoError(t, err)
	all := r.All()
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].Key)
	require.Equal(t, []byte("new-b"), all[0].Value, "the earlier-listed (newer) file wins ties")
	require.Equal(t, "d", all[1].Key)
}

func TestPlanReshardMoreDestinationsExpandsToSplit(t *testing.T) {
	tasks := merge.PlanReshard([]string{"s0"}, []string{"d0", "d1", "d2"})
	require.Len(t, tasks, 1)
	require.Equal(t, merge.Split, tasks[0].Kind)
	require.ElementsMatch(t, []string{"d0", "d1", "d2"}, tasks[0].Destinations)
}

func TestPlanReshardMoreSourcesExpandsToMerge(t *testing.T) {
	tasks := merge.PlanReshard([]string{"s0", "s1", "s2"}, []string{"d0"})
	require.Len(t, tasks, 1)
	require.Equal(t, merge.Merge, tasks[0].Kind)
	require.ElementsMatch(t, []string{"s0", "s1", "s2"}, tasks[0].Sources)
}

func TestPlanReshardEqualCountsAreAllCopies(t *testing.T) {
	tasks := merge.PlanReshard([]string{"s0", "s1"}, []string{"d0", "d1"})
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		require.Equal(t, merge.Copy, task.Kind)
		require.Len(t, task.Sources, 1)
		require.Len(t, task.Destinations, 1)
	}
}
