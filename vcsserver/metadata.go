package vcsserver

import (
	"bytes"
	"sort"

	"github.com/DataDog/zstd"
	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/sortedfile"
)

// GetMetadata implements get_metadata(token, basis): the entire
// submitted file tree at basis.Index, emitted as a SortedFile whose
// keys are already vcsmeta-encoded depth-prefixed paths (the
// submitted row's columns), so no re-sorting is needed before
// building. The built SortedFile is zstd-compressed before being
// handed back; vcs.Client.GetMetadata decompresses it immediately on
// receipt.
func (s *Server) GetMetadata(basis model.Basis) ([]byte, Result) {
	if err := s.checkBasis(basis.Host); err != nil {
		return nil, failure(err)
	}

	recs, err := s.engine.ReadRange(submittedRow(basis.Owner, basis.Name), "", "", "", 0, basis.Index)
	if err != nil {
		return nil, failure(errors.Wrap(err, "vcsserver: read submitted tree"))
	}

	var buf bytes.Buffer
	b := sortedfile.NewBuilder(&buf)
	for _, rec := range recs {
		if err := b.Push(rec.Col, rec.Data); err != nil {
			return nil, failure(errors.Wrap(err, "vcsserver: build metadata sstable"))
		}
	}
	if err := b.Finish(); err != nil {
		return nil, failure(errors.Wrap(err, "vcsserver: finish metadata sstable"))
	}

	compressed, err := zstd.Compress(nil, buf.Bytes())
	if err != nil {
		return nil, failure(errors.Wrap(err, "vcsserver: compress metadata payload"))
	}
	return compressed, ok()
}

// GetBlobs implements get_blobs(token, shas): missing shas are simply
// absent from the result map. A missing blob is not itself an error
// at this layer — the caller decides whether an incomplete batch is
// fatal.
func (s *Server) GetBlobs(shas [][32]byte) (map[[32]byte][]byte, Result) {
	out := make(map[[32]byte][]byte, len(shas))
	for _, sha := range shas {
		data, found, err := s.getBlob(sha)
		if err != nil {
			return nil, failure(err)
		}
		if found {
			out[sha] = data
		}
	}
	return out, ok()
}

// GetBlobsByPath implements get_blobs_by_path(token, basis, paths):
// every path must resolve to known file metadata (a missing path
// fails the whole request), but a path whose blob is absent from the
// store is silently skipped.
func (s *Server) GetBlobsByPath(basis model.Basis, paths []string) (map[string][]byte, Result) {
	if err := s.checkBasis(basis.Host); err != nil {
		return nil, failure(err)
	}

	shas := make(map[string][32]byte, len(paths))
	for _, p := range paths {
		f, found, err := s.getFileAt(basis.Owner, basis.Name, p, basis.Index)
		if err != nil {
			return nil, failure(err)
		}
		if !found {
			return nil, failure(errors.Wrapf(kerr.NotFound, "vcsserver: could not find blob for %s", p))
		}
		shas[p] = f.Sha
	}

	out := make(map[string][]byte, len(paths))
	for p, sha := range shas {
		data, found, err := s.getBlob(sha)
		if err != nil {
			return nil, failure(err)
		}
		if found {
			out[p] = data
		}
	}
	return out, ok()
}

// GetBasisDiff implements get_basis_diff(token, old, new): union every
// path touched by a snapshot in (old, new], re-diffing the blob at old
// vs new directly when more than one snapshot in range touched that
// path.
func (s *Server) GetBasisDiff(repoOwner, repoName string, oldIndex, newIndex uint64) ([]diff.FileDiff, Result) {
	if oldIndex > newIndex {
		return nil, failure(errors.Wrapf(kerr.InvalidInput, "vcsserver: checking reverse diff is not supported"))
	}

	accumulated := make(map[string]diff.FileDiff)
	ambiguous := make(map[string]bool)

	for id := oldIndex + 1; id <= newIndex; id++ {
		change, found, err := s.readChange(repoOwner, repoName, id)
		if err != nil {
			return nil, failure(err)
		}
		if !found {
			continue
		}
		snap, found, err := s.latestSnapshot(change)
		if err != nil {
			return nil, failure(err)
		}
		if !found {
			continue
		}
		for _, fd := range snap.Files {
			if ambiguous[fd.Path] {
				continue
			}
			if _, exists := accumulated[fd.Path]; exists {
				delete(accumulated, fd.Path)
				ambiguous[fd.Path] = true
				continue
			}
			accumulated[fd.Path] = fd
		}
	}

	var out []diff.FileDiff
	for _, fd := range accumulated {
		out = append(out, fd)
	}

	for path := range ambiguous {
		fd, err := s.consolidateBasisDiff(repoOwner, repoName, path, oldIndex, newIndex)
		if err != nil {
			return nil, failure(err)
		}
		if fd != nil {
			out = append(out, *fd)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, ok()
}

// consolidateBasisDiff re-diffs path's content at old vs new directly,
// rather than chaining the individual snapshot diffs that touched it.
// Returns nil with no error when the path was created and then
// deleted again within (old, new] — there is nothing to report.
func (s *Server) consolidateBasisDiff(owner, name, path string, oldIndex, newIndex uint64) (*diff.FileDiff, error) {
	oldFile, oldFound, err := s.getFileAt(owner, name, path, oldIndex)
	if err != nil {
		return nil, err
	}
	newFile, newFound, err := s.getFileAt(owner, name, path, newIndex)
	if err != nil {
		return nil, err
	}

	switch {
	case oldFound && newFound:
		if newFile.IsDir {
			return &diff.FileDiff{Path: path, IsDir: true, Kind: diff.KindModified}, nil
		}
		oldContent, _, err := s.getFileContentAt(owner, name, path, oldIndex)
		if err != nil {
			return nil, err
		}
		newContent, _, err := s.getFileContentAt(owner, name, path, newIndex)
		if err != nil {
			return nil, err
		}
		return &diff.FileDiff{Path: path, Kind: diff.KindModified, Differences: diff.Diff(oldContent, newContent)}, nil

	case oldFound && !newFound:
		return &diff.FileDiff{Path: path, IsDir: oldFile.IsDir, Kind: diff.KindRemoved}, nil

	case !oldFound && newFound:
		if newFile.IsDir {
			return &diff.FileDiff{Path: path, IsDir: true, Kind: diff.KindAdded}, nil
		}
		content, _, err := s.getFileContentAt(owner, name, path, newIndex)
		if err != nil {
			return nil, err
		}
		return &diff.FileDiff{
			Path: path,
			Kind: diff.KindAdded,
			Differences: []diff.ByteDiff{{
				Kind:        diff.KindAdded,
				Data:        diff.Compress(content),
				Compression: diff.CompressionLZ4,
			}},
		}, nil

	default:
		return nil, nil
	}
}
