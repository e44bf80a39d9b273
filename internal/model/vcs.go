package model

import "github.com/colin353/corestore/diff"

// ChangeStatus is the lifecycle state of a Change: Pending moves to
// either Submitted or Archived; Submitted is terminal.
type ChangeStatus int

const (
	ChangeStatusPending ChangeStatus = iota
	ChangeStatusSubmitted
	ChangeStatusArchived
)

func (s ChangeStatus) String() string {
	switch s {
	case ChangeStatusPending:
		return "Pending"
	case ChangeStatusSubmitted:
		return "Submitted"
	case ChangeStatusArchived:
		return "Archived"
	default:
		return "Unknown"
	}
}

// Basis is a stable reference point into a remote repository: a
// specific submitted index, optionally overlaid by an in-progress
// Change.
type Basis struct {
	Host   string
	Owner  string
	Name   string
	Index  uint64
	Change uint64
}

// Change is a unit of in-progress work against a repository.
type Change struct {
	ID          uint64
	RepoOwner   string
	RepoName    string
	Owner       string
	Description string
	Status      ChangeStatus
	OriginalID  uint64
	SubmittedID uint64
}

// Snapshot is an immutable, timestamp-keyed record of a Change's
// file-level edits against its Basis.
type Snapshot struct {
	Timestamp uint64
	Basis     Basis
	Files     []diff.FileDiff
	Message   string
}

// File is the metadata tracked per path: enough to detect a
// change without hashing file content (mtime/length short-circuit)
// and to address its content once a hash is required.
type File struct {
	IsDir  bool
	Mtime  uint64
	Sha    [32]byte
	Length uint64
}
