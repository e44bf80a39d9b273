package vcsserver

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vcswire"
)

func userChangesRow(owner string) string { return owner + "/changes" }

func userChangesCol(repoOwner, repoName string, id uint64) string {
	return repoOwner + "/" + repoName + "/" + encodeID(id)
}

// UpdateChange implements update_change(token, change, snapshot):
// creates a change when change.ID is zero, otherwise updates the
// description/status of an existing one and appends the snapshot if
// one was supplied.
func (s *Server) UpdateChange(requestor string, change model.Change, snapshot model.Snapshot) (uint64, Result) {
	if _, found, err := s.engine.Read(reposRow(), reposCol(change.RepoOwner, change.RepoName), 0); err != nil {
		return 0, failure(errors.Wrap(err, "vcsserver: read repository"))
	} else if !found {
		return 0, failure(errors.Wrapf(kerr.NotFound, "vcsserver: no such repository %s/%s", change.RepoOwner, change.RepoName))
	}

	if change.ID != 0 {
		existing, found, err := s.readChange(change.RepoOwner, change.RepoName, change.ID)
		if err != nil {
			return 0, failure(err)
		}
		if !found {
			return 0, failure(errors.Wrapf(kerr.NotFound, "vcsserver: no such change"))
		}
		if existing.Owner != requestor {
			return 0, failure(errors.Wrapf(kerr.InvalidInput,
				"vcsserver: no permission to modify change (owner=%s, requestor=%s)", existing.Owner, requestor))
		}

		if change.Description != "" {
			existing.Description = change.Description
		}
		if change.Status == model.ChangeStatusArchived && existing.Status == model.ChangeStatusPending {
			existing.Status = change.Status
		}

		if err := s.writeChange(existing); err != nil {
			return 0, failure(err)
		}
		if snapshot.Timestamp != 0 {
			if err := s.addSnapshot(existing, snapshot); err != nil {
				return 0, failure(err)
			}
		}
		return existing.ID, ok()
	}

	// Creating a change from scratch: validate the proposed snapshot's
	// basis, reserve an id, and persist both the change and its first
	// snapshot.
	if snapshot.Basis.Host != s.hostname {
		return 0, failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: basis host must be %s", s.hostname))
	}
	if snapshot.Basis.Owner != change.RepoOwner || snapshot.Basis.Name != change.RepoName {
		return 0, failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: basis repo didn't match change"))
	}
	if snapshot.Timestamp == 0 {
		return 0, failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: snapshot timestamp must not be zero"))
	}

	id, err := s.engine.ReserveID(changeIDsRow(change.RepoOwner, change.RepoName), "")
	if err != nil {
		return 0, failure(errors.Wrap(err, "vcsserver: reserve change id"))
	}
	change.ID = id
	change.Owner = requestor
	change.Status = model.ChangeStatusPending

	if err := s.addSnapshot(change, snapshot); err != nil {
		return 0, failure(err)
	}
	if err := s.writeChange(change); err != nil {
		return 0, failure(err)
	}
	if err := s.engine.Write(userChangesRow(change.Owner), userChangesCol(change.RepoOwner, change.RepoName, change.ID), model.Record{}); err != nil {
		return 0, failure(errors.Wrap(err, "vcsserver: update user change index"))
	}
	return id, ok()
}

func (s *Server) readChange(repoOwner, repoName string, id uint64) (model.Change, bool, error) {
	rec, found, err := s.engine.Read(changesRow(repoOwner, repoName), encodeID(id), 0)
	if err != nil {
		return model.Change{}, false, errors.Wrap(err, "vcsserver: read change")
	}
	if !found {
		return model.Change{}, false, nil
	}
	c, err := vcswire.DecodeChange(rec.Data)
	if err != nil {
		return model.Change{}, false, errors.Wrapf(kerr.InvalidData, "vcsserver: decode change: %v", err)
	}
	return c, true, nil
}

func (s *Server) writeChange(c model.Change) error {
	if err := s.engine.Write(changesRow(c.RepoOwner, c.RepoName), encodeID(c.ID), model.Record{Data: vcswire.EncodeChange(c)}); err != nil {
		return errors.Wrap(err, "vcsserver: write change")
	}
	return nil
}

// addSnapshot validates snapshot against change and appends it to the
// change's snapshot log.
func (s *Server) addSnapshot(change model.Change, snapshot model.Snapshot) error {
	if snapshot.Timestamp == 0 {
		return errors.Wrapf(kerr.InvalidInput, "vcsserver: invalid snapshot, timestamp must not be zero")
	}
	if snapshot.Basis.Host != s.hostname {
		return errors.Wrapf(kerr.InvalidInput, "vcsserver: invalid basis for change, host must be %s", s.hostname)
	}
	if snapshot.Basis.Owner != change.RepoOwner || snapshot.Basis.Name != change.RepoName {
		return errors.Wrapf(kerr.InvalidInput, "vcsserver: invalid basis for change, repo didn't match change")
	}
	if err := s.engine.Write(
		snapshotsRow(change.RepoOwner, change.RepoName, change.ID),
		encodeID(snapshot.Timestamp),
		model.Record{Data: vcswire.EncodeSnapshot(snapshot)},
	); err != nil {
		return errors.Wrap(err, "vcsserver: write snapshot")
	}
	return nil
}

// latestSnapshot returns the most recently added snapshot for
// change's snapshot log, following original_id when the change has
// already been submitted (its live id is the submitted id, but the
// snapshot log is keyed by the pre-submit id).
func (s *Server) latestSnapshot(change model.Change) (model.Snapshot, bool, error) {
	id := change.OriginalID
	if id == 0 {
		id = change.ID
	}
	recs, err := s.engine.ReadRange(snapshotsRow(change.RepoOwner, change.RepoName, id), "", "", "", 1, 0)
	if err != nil {
		return model.Snapshot{}, false, errors.Wrap(err, "vcsserver: read snapshot log")
	}
	if len(recs) == 0 {
		return model.Snapshot{}, false, nil
	}
	snap, err := vcswire.DecodeSnapshot(recs[0].Data)
	if err != nil {
		return model.Snapshot{}, false, errors.Wrapf(kerr.InvalidData, "vcsserver: decode snapshot: %v", err)
	}
	return snap, true, nil
}

// GetChange implements get_change(token, repo_owner, repo_name, id).
func (s *Server) GetChange(repoOwner, repoName string, id uint64) (model.Change, model.Snapshot, Result) {
	change, found, err := s.readChange(repoOwner, repoName, id)
	if err != nil {
		return model.Change{}, model.Snapshot{}, failure(err)
	}
	if !found {
		return model.Change{}, model.Snapshot{}, failure(errors.Wrapf(kerr.NotFound, "vcsserver: no such change"))
	}
	snap, _, err := s.latestSnapshot(change)
	if err != nil {
		return model.Change{}, model.Snapshot{}, failure(err)
	}
	return change, snap, ok()
}

// ListChangesQuery narrows list_changes. Either Owner (list a user's
// changes across repos, via the per-user index) or RepoOwner+RepoName
// (list one repo's changes) must be set.
type ListChangesQuery struct {
	Owner        string
	RepoOwner    string
	RepoName     string
	Status       model.ChangeStatus
	FilterStatus bool
	StartingFrom string
	Limit        int
}

// ListChanges implements list_changes.
func (s *Server) ListChanges(q ListChangesQuery) ([]model.Change, Result) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	matches := func(c model.Change) bool {
		return !q.FilterStatus || c.Status == q.Status
	}

	if q.Owner != "" {
		recs, err := s.engine.ReadRange(userChangesRow(q.Owner), "", q.StartingFrom, "", 0, 0)
		if err != nil {
			return nil, failure(errors.Wrap(err, "vcsserver: read user change index"))
		}
		expectedPrefix := ""
		if q.RepoOwner != "" && q.RepoName != "" {
			expectedPrefix = q.RepoOwner + "/" + q.RepoName
		}
		var out []model.Change
		for _, rec := range recs {
			if expectedPrefix != "" && !strings.HasPrefix(rec.Col, expectedPrefix) {
				continue
			}
			parts := strings.Split(rec.Col, "/")
			if len(parts) != 3 {
				return nil, failure(errors.Wrapf(kerr.InvalidData, "vcsserver: malformed user change index entry %q", rec.Col))
			}
			id, idOK := decodeID(parts[2])
			if !idOK {
				return nil, failure(errors.Wrapf(kerr.InvalidData, "vcsserver: malformed user change index entry %q", rec.Col))
			}
			change, found, err := s.readChange(parts[0], parts[1], id)
			if err != nil {
				return nil, failure(err)
			}
			if !found || !matches(change) {
				continue
			}
			out = append(out, change)
			if len(out) >= limit {
				break
			}
		}
		return out, ok()
	}

	if q.RepoOwner != "" && q.RepoName != "" {
		recs, err := s.engine.ReadRange(changesRow(q.RepoOwner, q.RepoName), "", q.StartingFrom, "", limit, 0)
		if err != nil {
			return nil, failure(errors.Wrap(err, "vcsserver: read changes"))
		}
		var out []model.Change
		for _, rec := range recs {
			change, err := vcswire.DecodeChange(rec.Data)
			if err != nil {
				return nil, failure(errors.Wrapf(kerr.InvalidData, "vcsserver: decode change: %v", err))
			}
			if !matches(change) {
				continue
			}
			out = append(out, change)
		}
		return out, ok()
	}

	return nil, failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: a repo name or user must be specified"))
}
