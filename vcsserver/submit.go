package vcsserver

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vcsmeta"
	"github.com/colin353/corestore/internal/vcswire"
)

// Clock supplies the submit-time mtime stamp, the same dependency
// shape as recordservice.Clock.
type Clock interface {
	NowMicros() uint64
}

func (s *Server) getBlob(sha [32]byte) ([]byte, bool, error) {
	rec, found, err := s.engine.Read(blobsRow(), hex.EncodeToString(sha[:]), 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "vcsserver: read blob")
	}
	return rec.Data, found, nil
}

func (s *Server) putBlob(data []byte) ([32]byte, error) {
	sha := sha256.Sum256(data)
	if _, found, err := s.getBlob(sha); err != nil {
		return sha, err
	} else if found {
		return sha, nil
	}
	if err := s.engine.Write(blobsRow(), hex.EncodeToString(sha[:]), model.Record{Data: data}); err != nil {
		return sha, errors.Wrap(err, "vcsserver: write blob")
	}
	return sha, nil
}

func (s *Server) getFileAt(owner, name, path string, index uint64) (model.File, bool, error) {
	rec, found, err := s.engine.Read(submittedRow(owner, name), vcsmeta.Key(path), index)
	if err != nil {
		return model.File{}, false, errors.Wrap(err, "vcsserver: read file metadata")
	}
	if !found || rec.Deleted {
		return model.File{}, false, nil
	}
	f, err := vcsmeta.DecodeFile(rec.Data)
	if err != nil {
		return model.File{}, false, errors.Wrapf(kerr.InvalidData, "vcsserver: decode file metadata: %v", err)
	}
	return f, true, nil
}

func (s *Server) getFileContentAt(owner, name, path string, index uint64) ([]byte, bool, error) {
	f, found, err := s.getFileAt(owner, name, path, index)
	if err != nil || !found || f.IsDir {
		return nil, found && !f.IsDir, err
	}
	data, blobFound, err := s.getBlob(f.Sha)
	if err != nil {
		return nil, false, err
	}
	if !blobFound {
		return nil, false, errors.Wrapf(kerr.NotFound, "vcsserver: missing blob for %s", path)
	}
	return data, true, nil
}

func writeFile(f model.File) model.Record { return model.Record{Data: vcsmeta.EncodeFile(f)} }

// Submit implements submit(token, repo_owner, repo_name, change_id,
// snapshot_timestamp): reject unless the change is Pending and the
// snapshot timestamp matches, reserve a submit id off the same
// change_ids counter reserve_id already uses, apply each FileDiff to
// its submitted-tree baseline, then mark the change Submitted under
// both its original and new id.
func (s *Server) Submit(repoOwner, repoName string, changeID, snapshotTimestamp uint64) (uint64, Result) {
	change, found, err := s.readChange(repoOwner, repoName, changeID)
	if err != nil {
		return 0, failure(err)
	}
	if !found {
		return 0, failure(errors.Wrapf(kerr.NotFound, "vcsserver: no such change"))
	}
	if change.Status != model.ChangeStatusPending {
		return 0, failure(errors.Wrapf(kerr.ConflictState, "vcsserver: cannot submit change with status %s", change.Status))
	}

	snap, found, err := s.latestSnapshot(change)
	if err != nil {
		return 0, failure(err)
	}
	if !found {
		return 0, failure(errors.Wrapf(kerr.NotFound, "vcsserver: snapshot didn't exist"))
	}
	if snap.Timestamp != snapshotTimestamp {
		return 0, failure(errors.Wrapf(kerr.ConflictState,
			"vcsserver: snapshot timestamp didn't match (provided %d, expected %d)", snapshotTimestamp, snap.Timestamp))
	}

	submittedID, err := s.engine.ReserveID(changeIDsRow(repoOwner, repoName), "")
	if err != nil {
		return 0, failure(errors.Wrap(err, "vcsserver: reserve submit id"))
	}

	mtime := uint64(time.Now().UnixMicro())
	if s.clock != nil {
		mtime = s.clock.NowMicros()
	}

	modifiedPaths := make(map[string]bool)
	for _, fd := range snap.Files {
		modifiedPaths[fd.Path] = true

		if fd.Kind == diff.KindRemoved {
			if err := s.engine.Write(submittedRow(repoOwner, repoName), vcsmeta.Key(fd.Path),
				model.Record{Timestamp: submittedID, Deleted: true}); err != nil {
				return 0, failure(errors.Wrapf(err, "vcsserver: delete %s", fd.Path))
			}
			continue
		}

		if fd.IsDir {
			rec := writeFile(model.File{IsDir: true, Mtime: mtime})
			rec.Timestamp = submittedID
			if err := s.engine.Write(submittedRow(repoOwner, repoName), vcsmeta.Key(fd.Path), rec); err != nil {
				return 0, failure(errors.Wrapf(err, "vcsserver: write directory %s", fd.Path))
			}
			continue
		}

		var original []byte
		if fd.Kind == diff.KindModified {
			original, _, err = s.getFileContentAt(snap.Basis.Owner, snap.Basis.Name, fd.Path, snap.Basis.Index)
			if err != nil {
				return 0, failure(errors.Wrapf(err, "vcsserver: fetch baseline for %s", fd.Path))
			}
		}
		content, err := diff.Apply(fd.Differences, original)
		if err != nil {
			return 0, failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: failed to apply change to %s: %v", fd.Path, err))
		}

		sha, err := s.putBlob(content)
		if err != nil {
			return 0, failure(err)
		}

		rec := writeFile(model.File{IsDir: false, Mtime: mtime, Sha: sha, Length: uint64(len(content))})
		rec.Timestamp = submittedID
		if err := s.engine.Write(submittedRow(repoOwner, repoName), vcsmeta.Key(fd.Path), rec); err != nil {
			return 0, failure(errors.Wrapf(err, "vcsserver: write file %s", fd.Path))
		}
	}

	modifiedParents := make(map[string]bool)
	for p := range modifiedPaths {
		for i := len(p) - 1; i >= 0; i-- {
			if p[i] == '/' {
				modifiedParents[p[:i]] = true
			}
		}
	}
	for p := range modifiedParents {
		rec := writeFile(model.File{IsDir: true, Mtime: mtime})
		rec.Timestamp = submittedID
		if err := s.engine.Write(submittedRow(repoOwner, repoName), vcsmeta.Key(p), rec); err != nil {
			return 0, failure(errors.Wrapf(err, "vcsserver: touch directory %s", p))
		}
	}

	if err := s.engine.Write(submittedChangesRow(repoOwner, repoName), encodeID(submittedID), model.Record{}); err != nil {
		return 0, failure(errors.Wrap(err, "vcsserver: record submit id"))
	}

	change.Status = model.ChangeStatusSubmitted
	change.SubmittedID = submittedID
	change.OriginalID = change.ID
	change.ID = submittedID

	if err := s.writeChangeAt(change, change.OriginalID); err != nil {
		return 0, failure(err)
	}
	if err := s.writeChangeAt(change, change.SubmittedID); err != nil {
		return 0, failure(err)
	}

	return submittedID, ok()
}

func (s *Server) writeChangeAt(c model.Change, id uint64) error {
	if err := s.engine.Write(changesRow(c.RepoOwner, c.RepoName), encodeID(id), model.Record{Data: vcswire.EncodeChange(c)}); err != nil {
		return errors.Wrapf(err, "vcsserver: write change at id %d", id)
	}
	return nil
}
