package vcsserver

import (
	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/model"
)

// LocalRemote adapts a Server to the vcs.Remote interface for in-process
// use (an embedded working copy sharing an engine with its server, or a
// test), converting the uniform Result shape back to a plain error and
// folding Submit's new index into the model.Basis shape vcs.Client
// expects back.
type LocalRemote struct {
	Server    *Server
	Requestor string
}

func asError(res Result) error {
	if !res.Failed {
		return nil
	}
	return errors.New(res.ErrorMessage)
}

func (r LocalRemote) GetRepository(owner, name string) (model.Basis, error) {
	basis, res := r.Server.GetRepository(owner, name)
	return basis, asError(res)
}

func (r LocalRemote) GetMetadata(basis model.Basis) ([]byte, error) {
	data, res := r.Server.GetMetadata(basis)
	return data, asError(res)
}

func (r LocalRemote) GetBlobs(shas [][32]byte) (map[[32]byte][]byte, error) {
	blobs, res := r.Server.GetBlobs(shas)
	return blobs, asError(res)
}

func (r LocalRemote) GetBlobsByPath(basis model.Basis, paths []string) (map[string][]byte, error) {
	blobs, res := r.Server.GetBlobsByPath(basis, paths)
	return blobs, asError(res)
}

func (r LocalRemote) UpdateChange(change model.Change, snapshot model.Snapshot) (uint64, error) {
	id, res := r.Server.UpdateChange(r.Requestor, change, snapshot)
	return id, asError(res)
}

// Submit reports the new basis at the freshly submitted index; the
// server itself only needs to hand back the index, since the caller
// already knows owner/name/host.
func (r LocalRemote) Submit(repoOwner, repoName string, changeID, snapshotTimestamp uint64) (model.Basis, error) {
	index, res := r.Server.Submit(repoOwner, repoName, changeID, snapshotTimestamp)
	if res.Failed {
		return model.Basis{}, asError(res)
	}
	return model.Basis{Host: r.Server.hostname, Owner: repoOwner, Name: repoName, Index: index}, nil
}

func (r LocalRemote) GetBasisDiff(repoOwner, repoName string, oldIndex, newIndex uint64) ([]diff.FileDiff, error) {
	diffs, res := r.Server.GetBasisDiff(repoOwner, repoName, oldIndex, newIndex)
	return diffs, asError(res)
}
