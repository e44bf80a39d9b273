package diff_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/diff"
)

func TestDiffLineGranularity(t *testing.T) {
	a := []byte("one\ntwo\nthree\n")
	b := []byte("one\ntwo\nTHREE\n")
	d := diff.Diff(a, b)
	require.Len(t, d, 1)
	require.Equal(t, diff.KindModified, d[0].Kind)
	require.Equal(t, "THREE\n", string(d[0].Data))
}

func TestDiffByteGranularityForNonText(t *testing.T) {
	a := []byte{0x00, 0x01, 0x02, 0x03}
	b := []byte{0x00, 0xff, 0x02, 0x03}
	d := diff.Diff(a, b)
	require.Len(t, d, 1)
	require.Equal(t, uint32(1), d[0].Start)
	require.Equal(t, uint32(2), d[0].End)
}

func TestApplyRejectsOverlappingEdits(t *testing.T) {
	overlapping := []diff.ByteDiff{
		{Start: 0, End: 3, Kind: diff.KindModified, Data: []byte("xyz")},
		{Start: 2, End: 4, Kind: diff.KindRemoved},
	}
	_, err := diff.Apply(overlapping, []byte("hello"))
	require.Error(t, err)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog, repeatedly, many times over")
	compressed := diff.Compress(original)
	out, err := diff.Decompress(diff.CompressionLZ4, compressed)
	require.NoError(t, err)
	require.Equal(t, original, out)
}
