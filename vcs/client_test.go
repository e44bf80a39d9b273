package vcs_test

import (
	"bytes"
	"crypto/sha256"
	"os"
	"testing"

	"github.com/DataDog/zstd"
	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/model"
	"github.com/colin353/corestore/internal/vcsmeta"
	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/sortedfile"
	"github.com/colin353/corestore/vcs"
)

// fakeRemote stands in for a VCS server across the RPC
// boundary, serving one repository's metadata and blobs from memory.
type fakeRemote struct {
	index    uint64
	metadata []byte
	blobs    map[[32]byte][]byte
}

func (f *fakeRemote) GetRepository(owner, name string) (model.Basis, error) {
	return model.Basis{Owner: owner, Name: name, Index: f.index}, nil
}

func (f *fakeRemote) GetMetadata(basis model.Basis) ([]byte, error) { return f.metadata, nil }

func (f *fakeRemote) GetBlobs(shas [][32]byte) (map[[32]byte][]byte, error) {
	out := make(map[[32]byte][]byte)
	for _, sha := range shas {
		if b, ok := f.blobs[sha]; ok {
			out[sha] = b
		}
	}
	return out, nil
}

func (f *fakeRemote) GetBlobsByPath(basis model.Basis, paths []string) (map[string][]byte, error) {
	return nil, nil
}

func (f *fakeRemote) UpdateChange(change model.Change, snapshot model.Snapshot) (uint64, error) {
	return 0, nil
}

func (f *fakeRemote) Submit(repoOwner, repoName string, changeID, snapshotTimestamp uint64) (model.Basis, error) {
	return model.Basis{}, nil
}

func (f *fakeRemote) GetBasisDiff(repoOwner, repoName string, oldIndex, newIndex uint64) ([]diff.FileDiff, error) {
	return nil, nil
}

func buildMetadata(t *testing.T, files map[string][]byte) ([]byte, map[[32]byte][]byte) {
	t.Helper()
	var buf bytes.Buffer
	b := sortedfile.NewBuilder(&buf)

	blobs := make(map[[32]byte][]byte)
	keys := make([]string, 0, len(files))
	for p := range files {
		keys = append(keys, p)
	}
	// the builder needs keys in order: sort paths by their
	// depth-prefixed metadata key, the order the SortedFile holds.
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if vcsmeta.Key(keys[j]) < vcsmeta.Key(keys[i]) {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	for _, p := range keys {
		data := files[p]
		sha := sha256.Sum256(data)
		blobs[sha] = data
		require.NoError(t, b.Push(vcsmeta.Key(p), vcsmeta.EncodeFile(model.File{
			Mtime:  1000,
			Sha:    sha,
			Length: uint64(len(data)),
		})))
	}
	require.NoError(t, b.Finish())
	compressed, err := zstd.Compress(nil, buf.Bytes())
	require.NoError(t, err)
	return compressed, blobs
}

func TestNewSpaceThenDiffThenSnapshot(t *testing.T) {
	metadata, blobs := buildMetadata(t, map[string][]byte{
		"hello.txt": []byte("hello world\n"),
	})
	remote := &fakeRemote{index: 7, metadata: metadata, blobs: blobs}

	root := t.TempDir()
	dir := t.TempDir()
	client, err := vcs.New(vfs.Default, root, func(host string) (vcs.Remote, error) { return remote, nil })
	require.NoError(t, err)

	basis := model.Basis{Host: "src.example.com", Owner: "me", Name: "repo"}
	require.NoError(t, client.NewSpace(basis, dir, "myalias"))

	content, err := os.ReadFile(dir + "/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello world\n", string(content))

	// Unchanged: diff should report nothing.
	files, gotBasis, err := client.Diff("myalias")
	require.NoError(t, err)
	require.Empty(t, files)
	require.Equal(t, uint64(7), gotBasis.Index)

	// Edit the file and re-diff: expect one Modified FileDiff that
	// round-trips via Apply back to the new content.
	require.NoError(t, os.WriteFile(dir+"/hello.txt", []byte("hello, world!\n"), 0o644))
	files, _, err = client.Diff("myalias")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "hello.txt", files[0].Path)
	require.Equal(t, diff.KindModified, files[0].Kind)

	applied, err := diff.Apply(files[0].Differences, []byte("hello world\n"))
	require.NoError(t, err)
	require.Equal(t, "hello, world!\n", string(applied))

	snap, err := client.Snapshot("myalias", "tweak greeting")
	require.NoError(t, err)
	require.Equal(t, "tweak greeting", snap.Message)
	require.Len(t, snap.Files, 1)

	snaps, err := client.ListSnapshots("myalias")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, snap.Timestamp, snaps[0].Timestamp)

	history, err := client.FileHistory("myalias", "hello.txt")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestNewSpaceRejectsNonEmptyDir(t *testing.T) {
	root := t.TempDir()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/existing", []byte("x"), 0o644))

	remote := &fakeRemote{index: 1}
	client, err := vcs.New(vfs.Default, root, func(host string) (vcs.Remote, error) { return remote, nil })
	require.NoError(t, err)

	err = client.NewSpace(model.Basis{Host: "h", Owner: "o", Name: "n"}, dir, "alias")
	require.Error(t, err)
}

func TestNewSpaceDownloadsMissingBlobFromRemote(t *testing.T) {
	metadata, blobs := buildMetadata(t, map[string][]byte{
		"a/b.txt": []byte("nested"),
	})
	remote := &fakeRemote{index: 3, metadata: metadata, blobs: blobs}

	root := t.TempDir()
	dir := t.TempDir()
	client, err := vcs.New(vfs.Default, root, func(host string) (vcs.Remote, error) { return remote, nil })
	require.NoError(t, err)

	basis := model.Basis{Host: "h", Owner: "o", Name: "n"}
	require.NoError(t, client.NewSpace(basis, dir, "nested-alias"))

	content, err := os.ReadFile(dir + "/a/b.txt")
	require.NoError(t, err)
	require.Equal(t, "nested", string(content))
}
