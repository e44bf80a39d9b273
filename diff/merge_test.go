package diff_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/diff"
)

func TestDiffApplyRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"a\nb\nc\nd\n", "a\nb\nbb\nc\ndd\n"},
		{"asdf\nfdsa\nqwerty\n", "new\nasdf\naaaa\nqwerty\n"},
		{"", "hello"},
		{"hello", ""},
		{"binary\x00data", "binary\x00other"},
	}
	for _, c := range cases {
		d := diff.Diff([]byte(c[0]), []byte(c[1]))
		got, err := diff.Apply(d, []byte(c[0]))
		require.NoError(t, err)
		require.Equal(t, c[1], string(got))
	}
}

func TestMergeCleanApply(t *testing.T) {
	original := []byte("a\nb\nc\nd\n")
	left := []byte("a\nb\nbb\nc\nd\n")
	right := []byte("a\nb\nc\ndd\n")

	leftDiff := diff.FileDiff{Path: "f", Kind: diff.KindModified, Differences: diff.Diff(original, left)}
	rightDiff := diff.FileDiff{Path: "f", Kind: diff.KindModified, Differences: diff.Diff(original, right)}

	result, err := diff.Merge(original, leftDiff, rightDiff)
	require.NoError(t, err)
	require.Equal(t, diff.Merged, result.Outcome)

	merged, err := diff.Apply(result.Result.Differences, original)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nbb\nc\ndd\n", string(merged))
}

func TestMergeConflict(t *testing.T) {
	original := []byte("asdf\nfdsa\nqwerty\n")
	left := []byte("new\nasdf\naaaa\nqwerty\n")
	right := []byte("new\nasdf\nbbbb\nqwerty\n")

	leftDiff := diff.FileDiff{Path: "f", Kind: diff.KindModified, Differences: diff.Diff(original, left)}
	rightDiff := diff.FileDiff{Path: "f", Kind: diff.KindModified, Differences: diff.Diff(original, right)}

	result, err := diff.Merge(original, leftDiff, rightDiff)
	require.NoError(t, err)
	require.Equal(t, diff.Conflict, result.Outcome)
	require.Equal(t, "new\nasdf\nfdsa\nqwerty\n", string(result.Partial))
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, uint32(9), result.Conflicts[0].Right.Start)
	require.Equal(t, uint32(14), result.Conflicts[0].Right.End)
	require.Equal(t, result.Conflicts[0].Left.Start, result.Conflicts[0].Right.Start)
	require.Equal(t, result.Conflicts[0].Left.End, result.Conflicts[0].Right.End)

	rendered, err := diff.RenderConflict(result.Partial, result.Conflicts, "left", "right")
	require.NoError(t, err)
	require.Contains(t, string(rendered), "<<<<<<< left\naaaa\n=======\nbbbb\n>>>>>>> right\n")
}

func TestMergeIrreconcilable(t *testing.T) {
	original := []byte("hello")
	left := diff.FileDiff{Path: "f", Kind: diff.KindRemoved}
	right := diff.FileDiff{Path: "f", Kind: diff.KindModified, Differences: diff.Diff(original, []byte("hello world"))}

	result, err := diff.Merge(original, left, right)
	require.NoError(t, err)
	require.Equal(t, diff.IrreconcilableStateChange, result.Outcome)
	require.Equal(t, diff.KindRemoved, result.LeftKind)
	require.Equal(t, diff.KindModified, result.RightKind)
}

func TestMergeIdenticalEditsNoConflict(t *testing.T) {
	original := []byte("one\ntwo\nthree\n")
	edited := []byte("one\nTWO\nthree\n")

	d := diff.FileDiff{Path: "f", Kind: diff.KindModified, Differences: diff.Diff(original, edited)}
	result, err := diff.Merge(original, d, d)
	require.NoError(t, err)
	require.Equal(t, diff.Merged, result.Outcome)
}
