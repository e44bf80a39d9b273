package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/clock"
	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vcsmeta"
	"github.com/colin353/corestore/internal/vcswire"
	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/sortedfile"
)

// maxBlobBatch bounds the number of shas in a single get_blobs
// request.
const maxBlobBatch = 250

// RemoteFactory resolves a Basis host to a Remote, so a Client can
// talk to more than one repository server. Implementations are
// expected to cache per-host connections.
type RemoteFactory func(host string) (Remote, error)

// Client is the VCS repository client library: it owns a local
// root directory of cached metadata, content-addressed blobs and
// working-copy ("space") state, and talks to a Remote to pull
// whatever it doesn't have cached.
type Client struct {
	fs     vfs.FS
	root   string
	remote RemoteFactory
	clock  *clock.Monotonic
}

// New opens (creating if necessary) a Client rooted at root.
func New(fs vfs.FS, root string, remote RemoteFactory) (*Client, error) {
	for _, dir := range []string{"blobs", "metadata", "changes/by_alias", "changes/by_dir"} {
		if err := fs.MkdirAll(fs.PathJoin(root, dir), 0o755); err != nil {
			return nil, errors.Wrapf(err, "vcs: create %s", dir)
		}
	}
	return &Client{fs: fs, root: root, remote: remote, clock: clock.NewMonotonic()}, nil
}

func (c *Client) blobPath(sha [32]byte) string {
	return c.fs.PathJoin(c.root, "blobs", hex.EncodeToString(sha[:]))
}

func (c *Client) metadataPath(b model.Basis) string {
	return c.fs.PathJoin(c.root, "metadata", b.Host, b.Owner, b.Name+".sstable")
}

func (c *Client) spaceDir(alias string) string {
	return c.fs.PathJoin(c.root, "changes", "by_alias", alias)
}

func (c *Client) spacePath(alias string) string {
	return c.fs.PathJoin(c.spaceDir(alias), "space")
}

func (c *Client) snapshotPath(alias string, ts uint64) string {
	return c.fs.PathJoin(c.spaceDir(alias), strconv.FormatUint(ts, 10)+".snapshot")
}

// dirIndexPath hashes dir with xxhash so changes/by_dir never has to
// reproduce an arbitrary filesystem path as a filename.
func (c *Client) dirIndexPath(dir string) string {
	return c.fs.PathJoin(c.root, "changes", "by_dir", strconv.FormatUint(xxhash.Sum64String(dir), 16))
}

func (c *Client) hasBlob(sha [32]byte) bool {
	_, err := c.fs.Stat(c.blobPath(sha))
	return err == nil
}

func (c *Client) readBlob(sha [32]byte) ([]byte, error) {
	f, err := c.fs.Open(c.blobPath(sha))
	if err != nil {
		return nil, errors.Wrapf(kerr.NotFound, "vcs: blob %s: %v", hex.EncodeToString(sha[:]), err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (c *Client) writeBlob(sha [32]byte, data []byte) error {
	if c.hasBlob(sha) {
		return nil
	}
	f, err := c.fs.Create(c.blobPath(sha))
	if err != nil {
		return errors.Wrapf(err, "vcs: create blob %s", hex.EncodeToString(sha[:]))
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "vcs: write blob %s", hex.EncodeToString(sha[:]))
	}
	return f.Close()
}

// GetMetadata returns a Reader over basis's metadata SortedFile,
// fetching it from the remote and caching it locally the first time
// it's needed.
func (c *Client) GetMetadata(basis model.Basis) (*sortedfile.Reader, error) {
	p := c.metadataPath(basis)
	if fi, err := c.fs.Stat(p); err == nil {
		f, err := c.fs.Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "vcs: open cached metadata %s", p)
		}
		return sortedfile.Open(f, fi.Size())
	}

	remote, err := c.remote(basis.Host)
	if err != nil {
		return nil, err
	}
	compressed, err := remote.GetMetadata(basis)
	if err != nil {
		return nil, errors.Wrap(err, "vcs: fetch metadata")
	}
	data, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(err, "vcs: decompress metadata payload")
	}

	if err := c.fs.MkdirAll(c.fs.PathJoin(c.root, "metadata", basis.Host, basis.Owner), 0o755); err != nil {
		return nil, errors.Wrap(err, "vcs: create metadata directory")
	}
	wf, err := c.fs.Create(p)
	if err != nil {
		return nil, errors.Wrapf(err, "vcs: cache metadata %s", p)
	}
	if _, err := wf.Write(data); err != nil {
		wf.Close()
		return nil, errors.Wrapf(err, "vcs: write cached metadata %s", p)
	}
	if err := wf.Close(); err != nil {
		return nil, err
	}

	fi, err := c.fs.Stat(p)
	if err != nil {
		return nil, err
	}
	f, err := c.fs.Open(p)
	if err != nil {
		return nil, err
	}
	return sortedfile.Open(f, fi.Size())
}

func microsToTime(micros uint64) time.Time { return time.UnixMicro(int64(micros)) }

// metaFile pairs a decoded metadata entry with its depth and path.
type metaFile struct {
	depth int
	path  string
	file  model.File
}

// NewSpace implements new_space: validate basis against the remote,
// require an empty (or nonexistent) dir, fetch the metadata
// SortedFile, materialize files in batches of up to 250 blobs by sha,
// then set directory mtimes deepest first.
func (c *Client) NewSpace(basis model.Basis, dir, alias string) error {
	if entries, err := c.fs.List(dir); err == nil {
		if len(entries) > 0 {
			return errors.Wrapf(kerr.InvalidInput, "vcs: %s is not empty", dir)
		}
	} else if mkErr := c.fs.MkdirAll(dir, 0o755); mkErr != nil {
		return errors.Wrapf(mkErr, "vcs: create space directory %s", dir)
	}

	if basis.Index == 0 {
		remote, err := c.remote(basis.Host)
		if err != nil {
			return err
		}
		resolved, err := remote.GetRepository(basis.Owner, basis.Name)
		if err != nil {
			return errors.Wrap(err, "vcs: resolve basis")
		}
		basis.Index = resolved.Index
	}
	basis.Change = 0

	reader, err := c.GetMetadata(basis)
	if err != nil {
		return err
	}
	entries, err := reader.All()
	if err != nil {
		return errors.Wrap(err, "vcs: read metadata")
	}

	var files []metaFile
	maxDepth := 0
	for _, e := range entries {
		depth, p, ok := vcsmeta.DecodeKey(e.Key)
		if !ok {
			return errors.Wrap(kerr.InvalidData, "vcs: malformed metadata key")
		}
		f, err := vcsmeta.DecodeFile(e.Value)
		if err != nil {
			return err
		}
		files = append(files, metaFile{depth: depth, path: p, file: f})
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	remote, err := c.remote(basis.Host)
	if err != nil {
		return err
	}

	// Every ancestor directory must exist before a file beneath it can
	// be created; MkdirAll is recursive and idempotent, so a single
	// pass in any order suffices (mtimes are set in a later pass).
	for _, f := range files {
		target := c.fs.PathJoin(dir, f.path)
		if !f.file.IsDir {
			target = c.fs.PathJoin(dir, path.Dir(f.path))
		}
		if err := c.fs.MkdirAll(target, 0o755); err != nil {
			return errors.Wrapf(err, "vcs: mkdir %s", target)
		}
	}

	var batches []map[[32]byte][]metaFile
	pending := make(map[[32]byte][]metaFile)
	for _, f := range files {
		if f.file.IsDir {
			continue
		}
		if c.hasBlob(f.file.Sha) {
			data, err := c.readBlob(f.file.Sha)
			if err != nil {
				return err
			}
			if err := c.writeFile(dir, f.path, f.file, data); err != nil {
				return err
			}
			continue
		}
		pending[f.file.Sha] = append(pending[f.file.Sha], f)
		if len(pending) >= maxBlobBatch {
			batches = append(batches, pending)
			pending = make(map[[32]byte][]metaFile)
		}
	}
	if len(pending) > 0 {
		batches = append(batches, pending)
	}

	// Each batch touches a disjoint set of target files, so batches can
	// download and materialize concurrently.
	var g errgroup.Group
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			shas := make([][32]byte, 0, len(batch))
			for sha := range batch {
				shas = append(shas, sha)
			}
			blobs, err := remote.GetBlobs(shas)
			if err != nil {
				return errors.Wrap(err, "vcs: download blobs")
			}
			if len(blobs) != len(shas) {
				return errors.Wrap(kerr.Transient, "vcs: server returned fewer blobs than requested")
			}
			for sha, targets := range batch {
				data, ok := blobs[sha]
				if !ok {
					return errors.Wrapf(kerr.Transient, "vcs: missing blob %s", hex.EncodeToString(sha[:]))
				}
				if err := c.writeBlob(sha, data); err != nil {
					return err
				}
				for _, t := range targets {
					if err := c.writeFile(dir, t.path, t.file, data); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byDepth := make(map[int][]metaFile)
	for _, f := range files {
		if f.file.IsDir {
			byDepth[f.depth] = append(byDepth[f.depth], f)
		}
	}
	// Set directory mtimes deepest-first: every file write above
	// already happened, so touching a shallow directory's mtime last
	// cannot be re-bumped by a deeper write that hasn't happened yet.
	for d := maxDepth; d >= 1; d-- {
		for _, f := range byDepth[d] {
			if err := c.fs.Chtimes(c.fs.PathJoin(dir, f.path), microsToTime(f.file.Mtime)); err != nil {
				return errors.Wrapf(err, "vcs: set mtime on %s", f.path)
			}
		}
	}

	space := vcswire.Space{Basis: basis, Directory: dir, ChangeID: 0}
	if err := c.fs.MkdirAll(c.spaceDir(alias), 0o755); err != nil {
		return errors.Wrapf(err, "vcs: create space metadata directory for %s", alias)
	}
	sf, err := c.fs.Create(c.spacePath(alias))
	if err != nil {
		return errors.Wrapf(err, "vcs: write space metadata for %s", alias)
	}
	if _, err := sf.Write(vcswire.EncodeSpace(space)); err != nil {
		sf.Close()
		return err
	}
	if err := sf.Close(); err != nil {
		return err
	}

	df, err := c.fs.Create(c.dirIndexPath(dir))
	if err != nil {
		return errors.Wrapf(err, "vcs: write dir index for %s", dir)
	}
	if _, err := df.Write([]byte(alias)); err != nil {
		df.Close()
		return err
	}
	return df.Close()
}

func (c *Client) writeFile(root, relPath string, meta model.File, data []byte) error {
	full := c.fs.PathJoin(root, relPath)
	f, err := c.fs.Create(full)
	if err != nil {
		return errors.Wrapf(err, "vcs: create %s", full)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "vcs: write %s", full)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return c.fs.Chtimes(full, microsToTime(meta.Mtime))
}

// AliasForDir looks up the alias a space directory was registered
// under by NewSpace, for front ends that only know the directory.
func (c *Client) AliasForDir(dir string) (string, error) {
	f, err := c.fs.Open(c.dirIndexPath(dir))
	if err != nil {
		return "", errors.Wrapf(kerr.NotFound, "vcs: %s is not a space directory", dir)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) loadSpace(alias string) (vcswire.Space, error) {
	f, err := c.fs.Open(c.spacePath(alias))
	if err != nil {
		return vcswire.Space{}, errors.Wrapf(kerr.NotFound, "vcs: unrecognized alias %s", alias)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return vcswire.Space{}, err
	}
	return vcswire.DecodeSpace(b)
}

// Diff implements diff(alias): traverse alias's working directory,
// comparing each entry against the cached metadata for its basis.
func (c *Client) Diff(alias string) ([]diff.FileDiff, model.Basis, error) {
	space, err := c.loadSpace(alias)
	if err != nil {
		return nil, model.Basis{}, err
	}
	files, err := c.computeDiff(space)
	return files, space.Basis, err
}

func (c *Client) computeDiff(space vcswire.Space) ([]diff.FileDiff, error) {
	reader, err := c.GetMetadata(space.Basis)
	if err != nil {
		return nil, err
	}
	entries, err := reader.All()
	if err != nil {
		return nil, err
	}
	meta := make(map[string]model.File, len(entries))
	for _, e := range entries {
		_, p, ok := vcsmeta.DecodeKey(e.Key)
		if !ok {
			continue
		}
		f, err := vcsmeta.DecodeFile(e.Value)
		if err != nil {
			return nil, err
		}
		meta[p] = f
	}

	var out []diff.FileDiff
	seen := make(map[string]bool, len(meta))
	if err := c.walkDiff(space.Directory, "", meta, seen, &out); err != nil {
		return nil, err
	}

	var missing []string
	for p := range meta {
		if !seen[p] {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	for _, p := range missing {
		out = append(out, diff.FileDiff{Path: p, Kind: diff.KindRemoved})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func metadataCompatible(recorded model.File, fi os.FileInfo) bool {
	return uint64(fi.ModTime().UnixMicro()) == recorded.Mtime && uint64(fi.Size()) == recorded.Length
}

func (c *Client) walkDiff(root, relDir string, meta map[string]model.File, seen map[string]bool, out *[]diff.FileDiff) error {
	absDir := root
	if relDir != "" {
		absDir = c.fs.PathJoin(root, relDir)
	}
	names, err := c.fs.List(absDir)
	if err != nil {
		return errors.Wrapf(err, "vcs: list %s", absDir)
	}

	for _, name := range names {
		relPath := name
		if relDir != "" {
			relPath = path.Join(relDir, name)
		}
		abs := c.fs.PathJoin(root, relPath)
		fi, err := c.fs.Stat(abs)
		if err != nil {
			return errors.Wrapf(err, "vcs: stat %s", abs)
		}
		seen[relPath] = true
		recorded, known := meta[relPath]

		if fi.IsDir() {
			if !known {
				*out = append(*out, diff.FileDiff{Path: relPath, IsDir: true, Kind: diff.KindAdded})
			}
			recurse := !known || !recorded.IsDir || !metadataCompatible(recorded, fi)
			if recurse {
				if err := c.walkDiff(root, relPath, meta, seen, out); err != nil {
					return err
				}
			}
			continue
		}

		if known && !recorded.IsDir && metadataCompatible(recorded, fi) {
			continue
		}

		f, err := c.fs.Open(abs)
		if err != nil {
			return errors.Wrapf(err, "vcs: open %s", abs)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "vcs: read %s", abs)
		}

		if known && !recorded.IsDir {
			sum := sha256.Sum256(data)
			if sum == recorded.Sha {
				continue
			}
			original, err := c.readBlob(recorded.Sha)
			if err != nil {
				return errors.Wrapf(err, "vcs: missing baseline blob for %s", relPath)
			}
			*out = append(*out, diff.FileDiff{Path: relPath, Kind: diff.KindModified, Differences: diff.Diff(original, data)})
			continue
		}

		*out = append(*out, diff.FileDiff{
			Path: relPath,
			Kind: diff.KindAdded,
			Differences: []diff.ByteDiff{{
				Kind:        diff.KindAdded,
				Data:        diff.Compress(data),
				Compression: diff.CompressionLZ4,
			}},
		})
	}
	return nil
}

// Snapshot implements snapshot(alias, message): diff the space, wrap
// the result as a Snapshot keyed by the current monotonic microsecond
// clock, and persist it under the alias's space directory.
func (c *Client) Snapshot(alias, message string) (model.Snapshot, error) {
	space, err := c.loadSpace(alias)
	if err != nil {
		return model.Snapshot{}, err
	}
	files, err := c.computeDiff(space)
	if err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		Timestamp: c.clock.NowMicros(),
		Basis:     space.Basis,
		Files:     files,
		Message:   message,
	}

	f, err := c.fs.Create(c.snapshotPath(alias, snap.Timestamp))
	if err != nil {
		return model.Snapshot{}, errors.Wrapf(err, "vcs: write snapshot for %s", alias)
	}
	if _, err := f.Write(vcswire.EncodeSnapshot(snap)); err != nil {
		f.Close()
		return model.Snapshot{}, err
	}
	if err := f.Close(); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// ListSnapshots implements list_snapshots(alias): every persisted
// snapshot under alias's space directory, newest first.
func (c *Client) ListSnapshots(alias string) ([]model.Snapshot, error) {
	names, err := c.fs.List(c.spaceDir(alias))
	if err != nil {
		return nil, errors.Wrapf(kerr.NotFound, "vcs: unrecognized alias %s", alias)
	}

	var snaps []model.Snapshot
	for _, name := range names {
		if !strings.HasSuffix(name, ".snapshot") {
			continue
		}
		f, err := c.fs.Open(c.fs.PathJoin(c.spaceDir(alias), name))
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		snap, err := vcswire.DecodeSnapshot(b)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp > snaps[j].Timestamp })
	return snaps, nil
}

// FileHistory replays alias's snapshot log, oldest first, and returns
// every FileDiff recorded against path — the sequence of edits the
// working copy went through, not just path's latest diff.
func (c *Client) FileHistory(alias, path string) ([]diff.FileDiff, error) {
	snaps, err := c.ListSnapshots(alias)
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp < snaps[j].Timestamp })

	var out []diff.FileDiff
	for _, snap := range snaps {
		for _, fd := range snap.Files {
			if fd.Path == path {
				out = append(out, fd)
			}
		}
	}
	return out, nil
}
