package vcsserver

import (
	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/model"
)

// Create implements create(token, name): registers a new, empty
// repository owned by owner.
func (s *Server) Create(owner, name string) Result {
	if name == "" {
		return failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: must provide a valid repository name"))
	}
	if err := s.engine.Write(reposRow(), reposCol(owner, name), model.Record{Data: []byte(owner)}); err != nil {
		return failure(errors.Wrap(err, "vcsserver: create repository"))
	}
	return ok()
}

// GetRepository implements get_repository(token, owner, name): the
// repository must already exist; the returned index is the most
// recently submitted index, or 0 for a brand new repository.
func (s *Server) GetRepository(owner, name string) (model.Basis, Result) {
	if _, found, err := s.engine.Read(reposRow(), reposCol(owner, name), 0); err != nil {
		return model.Basis{}, failure(errors.Wrap(err, "vcsserver: read repository"))
	} else if !found {
		return model.Basis{}, failure(errors.Wrapf(kerr.NotFound, "vcsserver: no such repository %s/%s", owner, name))
	}

	index, err := s.latestSubmittedIndex(owner, name)
	if err != nil {
		return model.Basis{}, failure(err)
	}

	return model.Basis{Host: s.hostname, Owner: owner, Name: name, Index: index}, ok()
}

// latestSubmittedIndex returns the highest submit id recorded for
// owner/name, or 0 if none has ever been submitted. The
// submitted_changes column family sorts most-recent-first (encodeID),
// so a single limit-1 read_range answers it.
func (s *Server) latestSubmittedIndex(owner, name string) (uint64, error) {
	recs, err := s.engine.ReadRange(submittedChangesRow(owner, name), "", "", "", 1, ^uint64(0))
	if err != nil {
		return 0, errors.Wrap(err, "vcsserver: read submitted-changes index")
	}
	if len(recs) == 0 {
		return 0, nil
	}
	id, ok := decodeID(recs[0].Col)
	if !ok {
		return 0, errors.Wrapf(kerr.InvalidData, "vcsserver: malformed submitted-changes column %q", recs[0].Col)
	}
	return id, nil
}
