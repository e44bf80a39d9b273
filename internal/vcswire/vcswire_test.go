package vcswire_test

import (
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vcswire"
)

// requireDeepEqual fails with a field-by-field structural diff (via
// kr/pretty's Diff) rather than testify's default %#v dump, which is
// unreadable once a Snapshot carries nested FileDiff/ByteDiff slices.
func requireDeepEqual(t *testing.T, want, got interface{}) {
	t.Helper()
	if diffs := pretty.Diff(want, got); len(diffs) > 0 {
		t.Fatalf("round-trip mismatch:\n%s", strings.Join(diffs, "\n"))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := model.Snapshot{
		Timestamp: 1234,
		Basis:     model.Basis{Host: "src.example.com", Owner: "alice", Name: "repo", Index: 7},
		Message:   "initial commit",
		Files: []diff.FileDiff{
			{
				Path: "a.txt",
				Kind: diff.KindAdded,
				Differences: []diff.ByteDiff{
					{Kind: diff.KindAdded, Data: []byte("hello world\n")},
				},
			},
			{
				Path:        "dir",
				Kind:        diff.KindAdded,
				IsDir:       true,
				Differences: []diff.ByteDiff{},
			},
			{
				Path: "dir/b.txt",
				Kind: diff.KindModified,
				Differences: []diff.ByteDiff{
					{Start: 4, End: 9, Kind: diff.KindModified, Data: []byte("WORLD")},
				},
			},
		},
	}

	decoded, err := vcswire.DecodeSnapshot(vcswire.EncodeSnapshot(snap))
	require.NoError(t, err)
	requireDeepEqual(t, snap, decoded)
}

func TestChangeRoundTrip(t *testing.T) {
	change := model.Change{
		ID:          7,
		RepoOwner:   "alice",
		RepoName:    "example",
		Owner:       "alice",
		Description: "fix the thing",
		Status:      model.ChangeStatusSubmitted,
		OriginalID:  3,
		SubmittedID: 7,
	}

	decoded, err := vcswire.DecodeChange(vcswire.EncodeChange(change))
	require.NoError(t, err)
	requireDeepEqual(t, change, decoded)
}
