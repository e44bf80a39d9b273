package vcsserver

import (
	"github.com/cockroachdb/redact"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/log"
	"github.com/colin353/corestore/internal/model"
)

// RPC wraps a Server with the token-taking wire surface: every
// method's first argument is the caller's token — create(token,
// name), get_repository(token, owner, name), and so on. Server itself
// omits the token from its Go method signatures (it already takes a
// requestor/owner string wherever the underlying operation needs an
// identity), so RPC is where token pass-through happens: the token is
// logged redacted and used verbatim as the caller's identity. This
// module does no credential validation.
type RPC struct {
	*Server
}

// NewRPC adapts s to the token-taking wire surface.
func NewRPC(s *Server) *RPC { return &RPC{Server: s} }

// logRequest records that method was invoked, without ever writing
// token in the clear: redact.Safe marks the method name as safe for
// an unredacted log, leaving token to be replaced by the redaction
// marker in the output any log-scrubbing pass produces.
func logRequest(method, token string) {
	msg := redact.Sprint(redact.Safe(method), " token=", token)
	log.Infof("vcsserver rpc: %s", string(msg.Redact()))
}

func (r *RPC) Create(token, name string) Result {
	logRequest("create", token)
	return r.Server.Create(token, name)
}

func (r *RPC) GetRepository(token, owner, name string) (model.Basis, Result) {
	logRequest("get_repository", token)
	return r.Server.GetRepository(owner, name)
}

func (r *RPC) UpdateChange(token string, change model.Change, snapshot model.Snapshot) (uint64, Result) {
	logRequest("update_change", token)
	return r.Server.UpdateChange(token, change, snapshot)
}

// Submit matches submit(token, repo_owner, repo_name, change_id,
// snapshot_timestamp) → {failed, error_message, index}, wrapping the
// new submit id back into a Basis the way vcs.Remote expects.
func (r *RPC) Submit(token, repoOwner, repoName string, changeID, snapshotTimestamp uint64) (model.Basis, Result) {
	logRequest("submit", token)
	index, res := r.Server.Submit(repoOwner, repoName, changeID, snapshotTimestamp)
	if res.Failed {
		return model.Basis{}, res
	}
	return model.Basis{Host: r.Server.hostname, Owner: repoOwner, Name: repoName, Index: index}, res
}

func (r *RPC) ListChanges(token string, q ListChangesQuery) ([]model.Change, Result) {
	logRequest("list_changes", token)
	return r.Server.ListChanges(q)
}

func (r *RPC) GetChange(token, repoOwner, repoName string, id uint64) (model.Change, model.Snapshot, Result) {
	logRequest("get_change", token)
	return r.Server.GetChange(repoOwner, repoName, id)
}

func (r *RPC) GetMetadata(token string, basis model.Basis) ([]byte, Result) {
	logRequest("get_metadata", token)
	return r.Server.GetMetadata(basis)
}

func (r *RPC) GetBlobs(token string, shas [][32]byte) (map[[32]byte][]byte, Result) {
	logRequest("get_blobs", token)
	return r.Server.GetBlobs(shas)
}

func (r *RPC) GetBlobsByPath(token string, basis model.Basis, paths []string) (map[string][]byte, Result) {
	logRequest("get_blobs_by_path", token)
	return r.Server.GetBlobsByPath(basis, paths)
}

func (r *RPC) GetBasisDiff(token, repoOwner, repoName string, oldIndex, newIndex uint64) ([]diff.FileDiff, Result) {
	logRequest("get_basis_diff", token)
	return r.Server.GetBasisDiff(repoOwner, repoName, oldIndex, newIndex)
}
