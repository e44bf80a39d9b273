// Package vcs implements the VCS repository client: the library a
// working-copy front end drives to pull a basis, diff a directory
// against it, and cut a snapshot.
package vcs

import (
	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/model"
)

// Remote is everything a Client needs from the VCS server across an
// RPC boundary. The concrete transport is left to the deployment;
// production code implements this over whatever RPC client it uses,
// and tests implement it directly in-process against a
// vcsserver.Server.
type Remote interface {
	GetRepository(owner, name string) (model.Basis, error)
	GetMetadata(basis model.Basis) ([]byte, error)
	GetBlobs(shas [][32]byte) (map[[32]byte][]byte, error)
	GetBlobsByPath(basis model.Basis, paths []string) (map[string][]byte, error)
	UpdateChange(change model.Change, snapshot model.Snapshot) (uint64, error)
	Submit(repoOwner, repoName string, changeID, snapshotTimestamp uint64) (model.Basis, error)
	GetBasisDiff(repoOwner, repoName string, oldIndex, newIndex uint64) ([]diff.FileDiff, error)
}
