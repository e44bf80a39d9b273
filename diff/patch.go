package diff

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff computes the edits that turn a into b. It diffs whole lines
// when both buffers look like text and individual bytes otherwise;
// either way the result satisfies Apply(Diff(a, b), a) == b.
func Diff(a, b []byte) []ByteDiff {
	text := isTextLike(a) && isTextLike(b)
	ae := splitElements(a, text)
	be := splitElements(b, text)
	aOffsets := cumulativeLengths(ae)

	matcher := difflib.NewMatcher(ae, be)
	var out []ByteDiff
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		start := aOffsets[op.I1]
		end := aOffsets[op.I2]

		var data []byte
		for _, e := range be[op.J1:op.J2] {
			data = append(data, e...)
		}

		var kind Kind
		switch op.Tag {
		case 'd':
			kind = KindRemoved
			data = nil
		case 'i':
			kind = KindAdded
		default: // 'r', replace
			kind = KindModified
		}
		out = append(out, ByteDiff{Start: uint32(start), End: uint32(end), Kind: kind, Data: data})
	}
	return out
}

// Apply reconstructs the edited buffer by walking diffs (in
// ascending (start, end) order, ties kept stable) against original,
// copying untouched spans through and substituting at each edit.
func Apply(diffs []ByteDiff, original []byte) ([]byte, error) {
	sorted := append([]ByteDiff(nil), diffs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var out []byte
	pos := uint32(0)
	for _, d := range sorted {
		if d.Start < pos {
			return nil, errors.Newf("diff: overlapping edit at byte %d", d.Start)
		}
		if int(d.Start) > len(original) || int(d.End) > len(original) {
			return nil, errors.Newf("diff: edit [%d, %d) out of range for %d-byte buffer", d.Start, d.End, len(original))
		}
		out = append(out, original[pos:d.Start]...)
		if d.Kind != KindRemoved {
			data, err := Decompress(d.Compression, d.Data)
			if err != nil {
				return nil, err
			}
			out = append(out, data...)
		}
		pos = d.End
	}
	out = append(out, original[pos:]...)
	return out, nil
}
