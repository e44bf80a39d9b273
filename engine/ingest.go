package engine

import (
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/recordkey"
	"github.com/colin353/corestore/internal/vfs"
	"github.com/colin353/corestore/sortedfile"
)

// Ingest installs an externally produced SortedFile at srcPath as a
// new, immutable level of the engine without going through the
// memtable/journal write path. Two phases: prepare (open and validate
// the candidate file) and only then apply (move it into the data
// directory and make it visible).
//
// Ingest is used to bulk-load a compacted or migrated file produced
// out of band (for example by an offline reshard), so it must
// validate the file's key ordering before admitting it: a corrupt or
// foreign-format file must never become visible to readers.
func (e *Engine) Ingest(srcPath string) error {
	f, err := e.fs.Open(srcPath)
	if err != nil {
		return errors.Wrapf(err, "engine: open ingest candidate %s", srcPath)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "engine: stat ingest candidate %s", srcPath)
	}
	if err := validateIngestKeys(f, fi.Size()); err != nil {
		f.Close()
		return errors.Wrapf(kerr.InvalidData, "engine: ingest %s: %v", srcPath, err)
	}
	f.Close()

	dstName := e.fs.PathJoin(e.dataDir, ingestFileName(srcPath))
	if err := e.fs.Rename(srcPath, dstName); err != nil {
		return errors.Wrapf(err, "engine: move ingest candidate into place")
	}
	if err := vfs.Syncdir(e.dataDir); err != nil {
		return errors.Wrapf(err, "engine: fsync data directory after ingest")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addSortedFileLocked(dstName)
}

func ingestFileName(srcPath string) string {
	return "ingested-" + filepath.Base(srcPath)
}

// validateIngestKeys opens f as a SortedFile and walks every entry,
// rejecting the file if its composite keys don't decode cleanly.
func validateIngestKeys(f vfs.File, size int64) error {
	reader, err := sortedfile.Open(f, size)
	if err != nil {
		return err
	}
	entries, err := reader.All()
	if err != nil {
		return err
	}
	for _, en := range entries {
		if _, _, _, ok := recordkey.Decode(en.Key); !ok {
			return errors.Newf("ingest candidate has malformed composite key %q", en.Key)
		}
	}
	return nil
}
