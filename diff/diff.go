// Package diff implements the diff/merge core: a byte-diff primitive
// satisfying the round-trip law Apply(Diff(a,b), a) == b, and a
// three-way merge that coalesces each side's edits into snippets,
// reconciles overlapping zones, and renders any surviving conflicts
// with the usual <<<<<<< markers.
package diff

import "unicode/utf8"

// Kind classifies one edit.
type Kind int

const (
	KindAdded Kind = iota
	KindRemoved
	KindModified
)

// Compression names the codec used to store ByteDiff.Data.
type Compression int

const (
	CompressionNone Compression = iota
	// CompressionLZ4 is the historical wire name for this enum value;
	// the bytes are actually zstd-compressed (see codec.go). Every
	// producer and consumer in this module uses the same codec, so the
	// label is cosmetic.
	CompressionLZ4
)

// ByteDiff is one edit against a byte buffer: kind Added carries an
// insertion point (Start == End) and the inserted Data; Removed spans
// [Start, End) with no replacement; Modified spans [Start, End) with
// Data as the replacement.
type ByteDiff struct {
	Start       uint32
	End         uint32
	Kind        Kind
	Data        []byte
	Compression Compression
}

// FileDiff is the structural, per-file edit description.
type FileDiff struct {
	Path        string
	Kind        Kind
	IsDir       bool
	Differences []ByteDiff
}

// isTextLike reports whether b is plausibly line-oriented text: valid
// UTF-8 with no embedded NUL. Diff granularity is line-based for such
// inputs and byte-based otherwise.
func isTextLike(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}

// splitElements breaks b into the units the matcher compares: whole
// lines (newline-terminated, last fragment may lack one) for text,
// individual bytes otherwise.
func splitElements(b []byte, text bool) []string {
	if !text {
		out := make([]string, len(b))
		for i, c := range b {
			out[i] = string(c)
		}
		return out
	}
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, string(b[start:i+1]))
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}

// cumulativeLengths returns len(elems)+1 prefix byte-length sums, so
// cumulativeLengths(elems)[i] is the byte offset of elems[i] in the
// original buffer.
func cumulativeLengths(elems []string) []int {
	out := make([]int, len(elems)+1)
	for i, e := range elems {
		out[i+1] = out[i] + len(e)
	}
	return out
}
