// Package vcsserver implements the VCS server: the stateful RPC
// surface layered directly on the LSM engine that backs the VCS
// repository client.
//
// Engine namespacing:
//
//	repos                                  one col per <owner>/<name>
//	<owner>/<name>/changes                 one col per change id
//	<owner>/<name>/change_ids               reserve_id counter source
//	<owner>/<name>/<id>/snapshots           one col per snapshot timestamp
//	code/submitted/<owner>/<name>           post-submit file tree
//	code/submitted_changes/<owner>/<name>   index of submit ids
//	code/blobs                              content-addressed blob bodies
//
// Every row that only ever carries one logical version (repos,
// changes, change metadata) is written and read at the engine
// timestamp 0; code/submitted is the one row family where the engine
// timestamp dimension carries real history (the submit id).
package vcsserver

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/engine"
	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/log"
)

// Server wraps an *engine.Engine with the VCS RPC surface. It holds no
// state beyond the engine handle, the local hostname a Basis is
// validated against, and a Clock for the submit-time mtime stamp —
// the same Clock dependency-injection pattern recordservice.Service
// follows.
type Server struct {
	engine   *engine.Engine
	hostname string
	clock    Clock
}

// New constructs a Server backed by e, serving bases whose Host field
// is either empty or equal to hostname. A non-empty, foreign host is
// rejected: this server does not proxy to other replicas. UpdateChange
// is stricter: a snapshot's basis host must equal hostname exactly.
func New(e *engine.Engine, hostname string, clock Clock) *Server {
	return &Server{engine: e, hostname: hostname, clock: clock}
}

func reposRow() string { return "repos" }

func reposCol(owner, name string) string { return owner + "/" + name }

func changesRow(owner, name string) string { return owner + "/" + name + "/changes" }

func changeIDsRow(owner, name string) string { return owner + "/" + name + "/change_ids" }

func snapshotsRow(owner, name string, changeID uint64) string {
	return fmt.Sprintf("%s/%s/%d/snapshots", owner, name, changeID)
}

func submittedRow(owner, name string) string { return "code/submitted/" + owner + "/" + name }

func submittedChangesRow(owner, name string) string {
	return "code/submitted_changes/" + owner + "/" + name
}

func blobsRow() string { return "code/blobs" }

// encodeID renders id as the zero-padded decimal of MaxUint64-id, so
// larger ids sort first lexicographically. The same transform covers
// the changes, submitted_changes and snapshots column families, all
// of which need the "most recent sorts first" property to answer
// lookups with a single read_range(limit=1).
func encodeID(id uint64) string {
	return fmt.Sprintf("%020d", math.MaxUint64-id)
}

// decodeID is the inverse of encodeID.
func decodeID(col string) (uint64, bool) {
	v, err := strconv.ParseUint(col, 10, 64)
	if err != nil {
		return 0, false
	}
	return math.MaxUint64 - v, true
}

// checkBasis validates that host refers to this server (an empty host
// is treated as "this host") and returns an InvalidInput-classified
// error otherwise.
func (s *Server) checkBasis(host string) error {
	if host != "" && host != s.hostname {
		return errors.Wrapf(kerr.InvalidInput, "vcsserver: foreign host %q (this server is %q)", host, s.hostname)
	}
	return nil
}

// Result is the uniform {failed, error_message} response shape, the
// same convention recordservice.Result follows.
type Result struct {
	Failed       bool
	ErrorMessage string
}

func ok() Result { return Result{} }

// statusFor classifies err against the kerr taxonomy, mirroring
// recordservice.statusFor for this package's own RPC surface.
func statusFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, kerr.NotFound):
		return "NotFound"
	case errors.Is(err, kerr.InvalidInput):
		return "InvalidInput"
	case errors.Is(err, kerr.InvalidData):
		return "InvalidData"
	case errors.Is(err, kerr.ConflictState):
		return "ConflictState"
	case errors.Is(err, kerr.ResourceExhausted):
		return "ResourceExhausted"
	case errors.Is(err, kerr.Transient):
		return "Transient"
	default:
		return "InternalError"
	}
}

// failure logs InternalError-classified failures before returning the
// wire Result; those are the failures an operator has to look at,
// since the caller can't act on them.
func failure(err error) Result {
	if statusFor(err) == "InternalError" {
		log.Errorf("vcsserver: internal error: %+v", err)
	}
	return Result{Failed: true, ErrorMessage: err.Error()}
}
