package vcsserver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/vcsserver"
)

// TestRPCTokenPassThrough exercises the token-taking wire surface
// (RPC) over the same underlying Server: the token doubles as the
// caller's identity (simple pass-through, no credential validation),
// so the repository lands under the token's owner and every follow-up
// call presenting the same token can act on it.
func TestRPCTokenPassThrough(t *testing.T) {
	s := newTestServer(t)
	rpc := vcsserver.NewRPC(s)

	res := rpc.Create("alice", "example")
	require.False(t, res.Failed, res.ErrorMessage)

	basis, res := rpc.GetRepository("alice", "alice", "example")
	require.False(t, res.Failed, res.ErrorMessage)
	require.EqualValues(t, 0, basis.Index)

	f := addedFile([]byte("hi"))
	f.Path = "hi.txt"
	snapshot := model.Snapshot{Timestamp: 10, Basis: basis, Files: []diff.FileDiff{f}}
	change := model.Change{RepoOwner: "alice", RepoName: "example"}

	changeID, res := rpc.UpdateChange("alice", change, snapshot)
	require.False(t, res.Failed, res.ErrorMessage)
	require.NotZero(t, changeID)

	newBasis, res := rpc.Submit("alice", "alice", "example", changeID, snapshot.Timestamp)
	require.False(t, res.Failed, res.ErrorMessage)
	require.NotZero(t, newBasis.Index)

	changes, res := rpc.ListChanges("alice", vcsserver.ListChangesQuery{Owner: "alice"})
	require.False(t, res.Failed, res.ErrorMessage)
	require.Len(t, changes, 1)
}
