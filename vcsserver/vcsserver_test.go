package vcsserver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/engine"
	"github.com/colin353/corestore/internal/clock"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/vcsserver"
)

func newTestServer(t *testing.T) *vcsserver.Server {
	t.Helper()
	e, err := engine.New(vfs.Default, t.TempDir(), 1<<30, nil)
	require.NoError(t, err)
	e.AddMemtable()
	_, err = e.AddJournal()
	require.NoError(t, err)
	return vcsserver.New(e, "test-host", clock.NewMonotonic())
}

func addedFile(content []byte) diff.FileDiff {
	return diff.FileDiff{
		Kind: diff.KindAdded,
		Differences: []diff.ByteDiff{{
			Kind:        diff.KindAdded,
			Data:        diff.Compress(content),
			Compression: diff.CompressionLZ4,
		}},
	}
}

func TestCreateGetRepository(t *testing.T) {
	s := newTestServer(t)

	res := s.Create("alice", "example")
	require.False(t, res.Failed, res.ErrorMessage)

	basis, res := s.GetRepository("alice", "example")
	require.False(t, res.Failed, res.ErrorMessage)
	require.Equal(t, "test-host", basis.Host)
	require.EqualValues(t, 0, basis.Index)

	_, res = s.GetRepository("alice", "doesnotexist")
	require.True(t, res.Failed)
}

// TestSubmitAndBasisDiff mirrors the scenario walked through in the
// VCS Repository surface: a fresh repo gets one change submitted that
// adds a file and a nested directory, and the resulting basis diff
// against the empty starting point reproduces exactly those additions.
func TestSubmitAndBasisDiff(t *testing.T) {
	s := newTestServer(t)
	require.False(t, s.Create("alice", "example").Failed)

	basis, res := s.GetRepository("alice", "example")
	require.False(t, res.Failed)
	require.EqualValues(t, 0, basis.Index)

	aTxt := addedFile([]byte("hello world\n"))
	aTxt.Path = "a.txt"
	dir := diff.FileDiff{Path: "dir", Kind: diff.KindAdded, IsDir: true}
	bTxt := addedFile([]byte("change da world\n"))
	bTxt.Path = "dir/b.txt"

	snapshot := model.Snapshot{
		Timestamp: 1000,
		Basis:     basis,
		Files:     []diff.FileDiff{aTxt, dir, bTxt},
		Message:   "initial commit",
	}
	change := model.Change{RepoOwner: "alice", RepoName: "example", Description: "initial commit"}

	changeID, res := s.UpdateChange("alice", change, snapshot)
	require.False(t, res.Failed, res.ErrorMessage)
	require.NotZero(t, changeID)

	got, gotSnap, res := s.GetChange("alice", "example", changeID)
	require.False(t, res.Failed, res.ErrorMessage)
	require.Equal(t, model.ChangeStatusPending, got.Status)
	require.Equal(t, snapshot.Timestamp, gotSnap.Timestamp)

	newIndex, res := s.Submit("alice", "example", changeID, snapshot.Timestamp)
	require.False(t, res.Failed, res.ErrorMessage)
	require.NotZero(t, newIndex)

	// Submitting a second time must fail: the change is no longer Pending.
	_, res = s.Submit("alice", "example", changeID, snapshot.Timestamp)
	require.True(t, res.Failed)

	submitted, _, res := s.GetChange("alice", "example", newIndex)
	require.False(t, res.Failed, res.ErrorMessage)
	require.Equal(t, model.ChangeStatusSubmitted, submitted.Status)
	require.Equal(t, changeID, submitted.OriginalID)

	basisAfter, res := s.GetRepository("alice", "example")
	require.False(t, res.Failed)
	require.Equal(t, newIndex, basisAfter.Index)

	diffs, res := s.GetBasisDiff("alice", "example", 0, newIndex)
	require.False(t, res.Failed, res.ErrorMessage)

	byPath := make(map[string]diff.FileDiff)
	for _, fd := range diffs {
		byPath[fd.Path] = fd
	}
	require.Contains(t, byPath, "a.txt")
	require.Contains(t, byPath, "dir/b.txt")
	require.Contains(t, byPath, "dir")
	require.True(t, byPath["dir"].IsDir)

	for _, path := range []string{"a.txt", "dir/b.txt"} {
		fd := byPath[path]
		require.Equal(t, diff.KindAdded, fd.Kind)
		require.Len(t, fd.Differences, 1)
		decompressed, err := diff.Decompress(fd.Differences[0].Compression, fd.Differences[0].Data)
		require.NoError(t, err)
		require.NotEmpty(t, decompressed)
	}

	meta, res := s.GetMetadata(basisAfter)
	require.False(t, res.Failed, res.ErrorMessage)
	require.NotEmpty(t, meta)

	blobs, res := s.GetBlobsByPath(basisAfter, []string{"a.txt", "dir/b.txt"})
	require.False(t, res.Failed, res.ErrorMessage)
	require.Equal(t, []byte("hello world\n"), blobs["a.txt"])
	require.Equal(t, []byte("change da world\n"), blobs["dir/b.txt"])
}

func TestListChangesByOwnerAndByRepo(t *testing.T) {
	s := newTestServer(t)
	require.False(t, s.Create("alice", "example").Failed)
	basis, res := s.GetRepository("alice", "example")
	require.False(t, res.Failed)

	for i := 0; i < 3; i++ {
		snapshot := model.Snapshot{
			Timestamp: uint64(1000 + i),
			Basis:     basis,
			Files:     []diff.FileDiff{},
		}
		change := model.Change{RepoOwner: "alice", RepoName: "example"}
		_, res := s.UpdateChange("alice", change, snapshot)
		require.False(t, res.Failed, res.ErrorMessage)
	}

	byOwner, res := s.ListChanges(vcsserver.ListChangesQuery{Owner: "alice"})
	require.False(t, res.Failed, res.ErrorMessage)
	require.Len(t, byOwner, 3)

	byRepo, res := s.ListChanges(vcsserver.ListChangesQuery{RepoOwner: "alice", RepoName: "example"})
	require.False(t, res.Failed, res.ErrorMessage)
	require.Len(t, byRepo, 3)

	_, res = s.ListChanges(vcsserver.ListChangesQuery{})
	require.True(t, res.Failed)
}

func TestLocalRemoteAdapter(t *testing.T) {
	s := newTestServer(t)
	require.False(t, s.Create("bob", "proj").Failed)
	remote := vcsserver.LocalRemote{Server: s, Requestor: "bob"}

	basis, err := remote.GetRepository("bob", "proj")
	require.NoError(t, err)

	f := addedFile([]byte("x"))
	f.Path = "f.txt"
	snapshot := model.Snapshot{Timestamp: 5, Basis: basis, Files: []diff.FileDiff{f}}
	change := model.Change{RepoOwner: "bob", RepoName: "proj"}

	changeID, err := remote.UpdateChange(change, snapshot)
	require.NoError(t, err)
	require.NotZero(t, changeID)

	newBasis, err := remote.Submit("bob", "proj", changeID, snapshot.Timestamp)
	require.NoError(t, err)
	require.NotZero(t, newBasis.Index)

	_, err = remote.GetMetadata(newBasis)
	require.NoError(t, err)
}
