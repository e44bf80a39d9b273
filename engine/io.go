package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/colin353/corestore/internal/vfs"
)

// newFileHandle picks a filename that doesn't already exist under
// dataDir and creates it: increment a counter until the candidate
// path is free. A uuid suffix is additionally mixed in so concurrent
// engines sharing a directory (tests, multi-process recovery) never
// collide on the same counter value.
func (e *Engine) newFileHandle(ext string) (string, vfs.File, error) {
	for {
		name := fmt.Sprintf("data-%04d-%s.%s", e.nextFileNumber, uuid.New().String()[:8], ext)
		path := e.fs.PathJoin(e.dataDir, name)
		if _, err := e.fs.Stat(path); err == nil {
			e.nextFileNumber++
			continue
		}
		f, err := e.fs.Create(path)
		if err != nil {
			return "", nil, errors.Wrapf(err, "engine: create %s", path)
		}
		return path, f, nil
	}
}

// encodeValue packs a Record's Data and Deleted flag into a
// SortedFile value (the composite key already carries row, col, and
// timestamp — see internal/recordkey).
func encodeValue(deleted bool, data []byte) []byte {
	out := make([]byte, 1+len(data))
	if deleted {
		out[0] = 1
	}
	copy(out[1:], data)
	return out
}

func decodeValue(v []byte) (deleted bool, data []byte, err error) {
	if len(v) == 0 {
		return false, nil, errors.New("engine: empty sorted file value")
	}
	return v[0] != 0, v[1:], nil
}
