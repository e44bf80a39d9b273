package vfs

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// osFS is the default FS, backed directly by the local disk.
type osFS struct{}

// Default is the local-disk FS used by every component unless a
// remote-tiered backend (internal/vfs/cloud) is configured instead.
var Default FS = osFS{}

func (osFS) Create(name string) (File, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", name)
	}
	return f, nil
}

func (osFS) Open(name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return f, nil
}

func (osFS) Remove(name string) error {
	return errors.Wrapf(os.Remove(name), "remove %s", name)
}

func (osFS) Rename(oldname, newname string) error {
	return errors.Wrapf(os.Rename(oldname, newname), "rename %s -> %s", oldname, newname)
}

func (osFS) MkdirAll(dir string, perm os.FileMode) error {
	return errors.Wrapf(os.MkdirAll(dir, perm), "mkdirall %s", dir)
}

func (osFS) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (osFS) Stat(name string) (os.FileInfo, error) {
	fi, err := os.Stat(name)
	return fi, errors.Wrapf(err, "stat %s", name)
}

func (osFS) PathJoin(elem ...string) string {
	return filepath.Join(elem...)
}

func (osFS) Chtimes(name string, mtime time.Time) error {
	return errors.Wrapf(os.Chtimes(name, mtime, mtime), "chtimes %s", name)
}

// Syncdir fsyncs a directory entry so a crash between a rename and the
// next fsync cannot lose the rename. Used after journal/SortedFile
// swap-ins to uphold the crash-safety rule: fsync before unlink.
func Syncdir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "open dir %s for sync", dir)
	}
	defer unix.Close(fd)
	return errors.Wrapf(unix.Fsync(fd), "fsync dir %s", dir)
}
