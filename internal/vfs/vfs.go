// Package vfs defines the narrow filesystem abstraction threaded
// through the storage components (the sorted-file layer, the journal,
// the LSM engine, and the VCS blob store). Components never touch
// os.* calls directly; they take an FS so that an S3-backed or
// in-memory implementation can stand in during tests or remote-tiered
// storage. The File/FS split is trimmed to the operations this module
// actually needs.
package vfs

import (
	"io"
	"os"
	"time"
)

// File is an open handle to a regular file or directory.
type File interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.Closer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is a filesystem. Paths are slash-separated and relative to
// whatever root the FS implementation was constructed with.
type FS interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	Remove(name string) error
	Rename(oldname, newname string) error
	MkdirAll(dir string, perm os.FileMode) error
	List(dir string) ([]string, error)
	Stat(name string) (os.FileInfo, error)
	PathJoin(elem ...string) string
	// Chtimes sets name's modification time, used by the VCS
	// repository client to reproduce a basis's recorded mtimes
	// on materialized files and directories.
	Chtimes(name string, mtime time.Time) error
}
