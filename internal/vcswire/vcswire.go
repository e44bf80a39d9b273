// Package vcswire encodes the VCS data-model types for on-disk
// persistence — the per-alias change-metadata file, snapshot files,
// and the metadata/submit payloads the client and server share. It
// follows the journal package's length-prefixed, varint-framed style
// rather than a generated wire format.
package vcswire

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/diff"
	"github.com/colin353/corestore/internal/model"
)

type writer struct {
	buf []byte
}

func (w *writer) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

func (w *writer) bytes(b []byte) {
	w.uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) str(s string) { w.bytes([]byte(s)) }

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

type reader struct {
	buf []byte
	err error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.err = errors.New("vcswire: invalid varint")
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) bytes() []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if uint64(len(r.buf)) < n {
		r.err = errors.New("vcswire: length prefix overruns buffer")
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) str() string { return string(r.bytes()) }

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	if len(r.buf) == 0 {
		r.err = errors.New("vcswire: truncated buffer")
		return 0
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b
}

func writeBasis(w *writer, b model.Basis) {
	w.str(b.Host)
	w.str(b.Owner)
	w.str(b.Name)
	w.uvarint(b.Index)
	w.uvarint(b.Change)
}

func readBasis(r *reader) model.Basis {
	return model.Basis{
		Host:   r.str(),
		Owner:  r.str(),
		Name:   r.str(),
		Index:  r.uvarint(),
		Change: r.uvarint(),
	}
}

func writeByteDiff(w *writer, d diff.ByteDiff) {
	w.uvarint(uint64(d.Start))
	w.uvarint(uint64(d.End))
	w.byte(byte(d.Kind))
	w.byte(byte(d.Compression))
	w.bytes(d.Data)
}

func readByteDiff(r *reader) diff.ByteDiff {
	start := uint32(r.uvarint())
	end := uint32(r.uvarint())
	kind := diff.Kind(r.byte())
	compression := diff.Compression(r.byte())
	data := append([]byte(nil), r.bytes()...)
	return diff.ByteDiff{Start: start, End: end, Kind: kind, Data: data, Compression: compression}
}

func writeFileDiff(w *writer, f diff.FileDiff) {
	w.str(f.Path)
	w.byte(byte(f.Kind))
	if f.IsDir {
		w.byte(1)
	} else {
		w.byte(0)
	}
	w.uvarint(uint64(len(f.Differences)))
	for _, d := range f.Differences {
		writeByteDiff(w, d)
	}
}

func readFileDiff(r *reader) diff.FileDiff {
	path := r.str()
	kind := diff.Kind(r.byte())
	isDir := r.byte() != 0
	n := r.uvarint()
	diffs := make([]diff.ByteDiff, 0, n)
	for i := uint64(0); i < n; i++ {
		diffs = append(diffs, readByteDiff(r))
	}
	return diff.FileDiff{Path: path, Kind: kind, IsDir: isDir, Differences: diffs}
}

// EncodeFileDiffs serializes a slice of FileDiff, the shape both
// Snapshot.Files and GetBasisDiff responses use.
func EncodeFileDiffs(files []diff.FileDiff) []byte {
	w := &writer{}
	w.uvarint(uint64(len(files)))
	for _, f := range files {
		writeFileDiff(w, f)
	}
	return w.buf
}

// DecodeFileDiffs is the inverse of EncodeFileDiffs.
func DecodeFileDiffs(b []byte) ([]diff.FileDiff, error) {
	r := &reader{buf: b}
	n := r.uvarint()
	out := make([]diff.FileDiff, 0, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		out = append(out, readFileDiff(r))
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "vcswire: decode file diffs")
	}
	return out, nil
}

// EncodeSnapshot serializes a Snapshot for a *.snapshot file or an
// UpdateChange RPC payload.
func EncodeSnapshot(s model.Snapshot) []byte {
	w := &writer{}
	w.uvarint(s.Timestamp)
	writeBasis(w, s.Basis)
	w.uvarint(uint64(len(s.Files)))
	for _, f := range s.Files {
		writeFileDiff(w, f)
	}
	w.str(s.Message)
	return w.buf
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(b []byte) (model.Snapshot, error) {
	r := &reader{buf: b}
	s := model.Snapshot{Timestamp: r.uvarint(), Basis: readBasis(r)}
	n := r.uvarint()
	s.Files = make([]diff.FileDiff, 0, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		s.Files = append(s.Files, readFileDiff(r))
	}
	s.Message = r.str()
	if r.err != nil {
		return model.Snapshot{}, errors.Wrap(r.err, "vcswire: decode snapshot")
	}
	return s, nil
}

// EncodeChange serializes a Change for the change-metadata table the
// server keeps under <owner>/<name>/changes.
func EncodeChange(c model.Change) []byte {
	w := &writer{}
	w.uvarint(c.ID)
	w.str(c.RepoOwner)
	w.str(c.RepoName)
	w.str(c.Owner)
	w.str(c.Description)
	w.byte(byte(c.Status))
	w.uvarint(c.OriginalID)
	w.uvarint(c.SubmittedID)
	return w.buf
}

// DecodeChange is the inverse of EncodeChange.
func DecodeChange(b []byte) (model.Change, error) {
	r := &reader{buf: b}
	c := model.Change{
		ID:        r.uvarint(),
		RepoOwner: r.str(),
		RepoName:  r.str(),
		Owner:     r.str(),
	}
	c.Description = r.str()
	c.Status = model.ChangeStatus(r.byte())
	c.OriginalID = r.uvarint()
	c.SubmittedID = r.uvarint()
	if r.err != nil {
		return model.Change{}, errors.Wrap(r.err, "vcswire: decode change")
	}
	return c, nil
}

// Space is the per-alias working-copy record persisted under
// changes/by_alias/<alias>/space: which directory an alias is
// materialized into and which basis it tracks.
type Space struct {
	Basis     model.Basis
	Directory string
	ChangeID  uint64
}

// EncodeSpace serializes a Space.
func EncodeSpace(s Space) []byte {
	w := &writer{}
	writeBasis(w, s.Basis)
	w.str(s.Directory)
	w.uvarint(s.ChangeID)
	return w.buf
}

// DecodeSpace is the inverse of EncodeSpace.
func DecodeSpace(b []byte) (Space, error) {
	r := &reader{buf: b}
	s := Space{Basis: readBasis(r), Directory: r.str(), ChangeID: r.uvarint()}
	if r.err != nil {
		return Space{}, errors.Wrap(r.err, "vcswire: decode space")
	}
	return s, nil
}
