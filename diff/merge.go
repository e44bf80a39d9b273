package diff

import (
	"bytes"
	"reflect"
)

// Outcome classifies a three-way merge result.
type Outcome int

const (
	Merged Outcome = iota
	Conflict
	IrreconcilableStateChange
)

// ConflictPair is one unresolved region: Left and Right always share
// the same [Start, End) span (render_conflict's invariant), each
// giving that side's content for the region.
type ConflictPair struct {
	Left, Right ByteDiff
}

// MergeResult is the outcome of a three-way merge. Only the fields
// matching Outcome are meaningful: Result for Merged; Partial and
// Conflicts for Conflict (Partial already has every non-conflicting
// edit applied, and Conflicts' byte offsets index into Partial, not
// into original — RenderConflict must be called with Partial); Left/
// RightKind for IrreconcilableStateChange.
type MergeResult struct {
	Outcome   Outcome
	Result    FileDiff
	Partial   []byte
	Conflicts []ConflictPair
	LeftKind  Kind
	RightKind Kind
}

// Merge three-way merges left and right against their common ancestor
// original: coalesce each side's edits into snippets, walk both
// snippet streams classifying each pair as this-then-that /
// that-then-this / overlapping, and for overlapping windows re-diff
// the two sides' reconstructed content to find the minimal genuinely
// conflicting span.
func Merge(original []byte, left, right FileDiff) (MergeResult, error) {
	if fileDiffEqual(left, right) {
		return MergeResult{Outcome: Merged, Result: left}, nil
	}

	switch {
	case left.Kind == KindModified && right.Kind == KindModified:
	case left.Kind == KindAdded && right.Kind == KindAdded:
	case left.Kind == KindRemoved && right.Kind == KindRemoved:
		return MergeResult{Outcome: Merged, Result: left}, nil
	default:
		return MergeResult{Outcome: IrreconcilableStateChange, LeftKind: left.Kind, RightKind: right.Kind}, nil
	}

	const margin = 1
	leftSnippets := coalesce(left.Differences, original, margin)
	rightSnippets := coalesce(right.Differences, original, margin)

	var nonConflicting []ByteDiff
	var conflicting []ConflictPair
	accShift := 0
	li, ri := 0, 0

	for li < len(leftSnippets) || ri < len(rightSnippets) {
		switch {
		case li < len(leftSnippets) && ri < len(rightSnippets):
			l, r := leftSnippets[li], rightSnippets[ri]
			switch l.conflicts(r) {
			case thisThenThat:
				var err error
				nonConflicting, err = acceptDiffs(nonConflicting, l.diffs, &accShift)
				if err != nil {
					return MergeResult{}, err
				}
				li++
			case thatThenThis:
				var err error
				nonConflicting, err = acceptDiffs(nonConflicting, r.diffs, &accShift)
				if err != nil {
					return MergeResult{}, err
				}
				ri++
			default: // overlapping
				leftZone, rightZone := l, r
				li++
				ri++
				for {
					if leftZone.end > rightZone.end {
						if ri >= len(rightSnippets) || leftZone.conflicts(rightSnippets[ri]) != overlapping {
							break
						}
						rightZone.forceMerge(rightSnippets[ri])
						ri++
					} else {
						if li >= len(leftSnippets) || rightZone.conflicts(leftSnippets[li]) != overlapping {
							break
						}
						leftZone.forceMerge(leftSnippets[li])
						li++
					}
				}

				leftBD, err := leftZone.toByteDiff(original)
				if err != nil {
					return MergeResult{}, err
				}
				rightBD, err := rightZone.toByteDiff(original)
				if err != nil {
					return MergeResult{}, err
				}

				nc, cc, err := deconflictZones(original, leftBD, rightBD)
				if err != nil {
					return MergeResult{}, err
				}
				nonConflicting, err = acceptDiffs(nonConflicting, nc, &accShift)
				if err != nil {
					return MergeResult{}, err
				}
				for _, pair := range cc {
					conflicting = append(conflicting, ConflictPair{
						Left:  shiftDiff(pair.Left, accShift),
						Right: shiftDiff(pair.Right, accShift),
					})
				}
			}
		case li < len(leftSnippets):
			var err error
			nonConflicting, err = acceptDiffs(nonConflicting, leftSnippets[li].diffs, &accShift)
			if err != nil {
				return MergeResult{}, err
			}
			li++
		default:
			var err error
			nonConflicting, err = acceptDiffs(nonConflicting, rightSnippets[ri].diffs, &accShift)
			if err != nil {
				return MergeResult{}, err
			}
			ri++
		}
	}

	result := left
	result.Kind = KindModified
	result.Differences = nonConflicting

	if len(conflicting) > 0 {
		partial, err := Apply(nonConflicting, original)
		if err != nil {
			return MergeResult{}, err
		}
		return MergeResult{Outcome: Conflict, Partial: partial, Conflicts: conflicting}, nil
	}
	return MergeResult{Outcome: Merged, Result: result}, nil
}

func fileDiffEqual(a, b FileDiff) bool {
	return reflect.DeepEqual(a, b)
}

func shiftDiff(d ByteDiff, delta int) ByteDiff {
	d.Start = uint32(int(d.Start) + delta)
	d.End = uint32(int(d.End) + delta)
	return d
}

// acceptDiffs appends accepted diffs to out unchanged — they remain
// valid original-coordinate edits, since Partial = Apply(out,
// original) must be computable directly — while advancing *shift by
// each diff's own width delta. *shift is the running offset between a
// position in original and the same content's position in the
// partially-merged buffer, applied only to conflict coordinates
// (shiftDiff below), never to accepted ones.
func acceptDiffs(out []ByteDiff, diffs []ByteDiff, shift *int) ([]ByteDiff, error) {
	for _, d := range diffs {
		out = append(out, d)
		length, err := dataLength(d)
		if err != nil {
			return nil, err
		}
		width := int(d.End) - int(d.Start)
		*shift += length - width
	}
	return out, nil
}

type conflictRelation int

const (
	thisThenThat conflictRelation = iota
	thatThenThis
	overlapping
)

// snippet is a coalesced window of one side's edits, carrying both
// the window bounds and the constituent diffs — the latter are needed
// to reconstruct the window's content for conflict-zone
// deconfliction.
type snippet struct {
	start, end uint32
	diffs      []ByteDiff
}

func snippetFrom(d ByteDiff, original []byte, margin int) snippet {
	start := int(d.Start) - margin
	if start < 0 {
		start = 0
	}
	end := int(d.End) + margin
	if end > len(original) {
		end = len(original)
	}
	return snippet{start: uint32(start), end: uint32(end), diffs: []ByteDiff{d}}
}

// coalesce groups diffs (assumed already in ascending order, as
// produced by Diff) into snippets, merging a diff into the previous
// snippet whenever their margin-expanded windows touch or overlap.
func coalesce(diffs []ByteDiff, original []byte, margin int) []snippet {
	var out []snippet
	for _, d := range diffs {
		s := snippetFrom(d, original, margin)
		if len(out) > 0 && out[len(out)-1].merge(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// merge absorbs other into s if their windows touch or overlap,
// reporting whether it did.
func (s *snippet) merge(other snippet) bool {
	if other.start > s.end {
		return false
	}
	if other.end > s.end {
		s.end = other.end
	}
	s.diffs = append(s.diffs, other.diffs...)
	return true
}

// forceMerge unconditionally unions the windows, used while expanding
// a conflict zone to absorb every snippet it transitively overlaps.
func (s *snippet) forceMerge(other snippet) {
	if other.start < s.start {
		s.start = other.start
	}
	if other.end > s.end {
		s.end = other.end
	}
	s.diffs = append(s.diffs, other.diffs...)
}

func (s snippet) conflicts(other snippet) conflictRelation {
	if s.end <= other.start {
		return thisThenThat
	}
	if other.end <= s.start {
		return thatThenThis
	}
	return overlapping
}

// toByteDiff collapses a snippet's own diffs into one Modified edit
// spanning [start, end), by rebasing them onto the snippet's fragment
// of original and applying them there.
func (s snippet) toByteDiff(original []byte) (ByteDiff, error) {
	rebased := make([]ByteDiff, len(s.diffs))
	for i, d := range s.diffs {
		rebased[i] = d
		rebased[i].Start -= s.start
		rebased[i].End -= s.start
	}
	fragment := original[s.start:s.end]
	data, err := Apply(rebased, fragment)
	if err != nil {
		return ByteDiff{}, err
	}
	return ByteDiff{Start: s.start, End: s.end, Kind: KindModified, Data: data}, nil
}

// deconflictZones re-diffs the two sides' reconstructed content for
// an overlapping window and partitions the result into the shared
// prefix/suffix (accepted, non-conflicting) and the divergent middle
// (a genuine conflict), expressed in original's coordinate space.
func deconflictZones(original []byte, left, right ByteDiff) ([]ByteDiff, []ConflictPair, error) {
	zoneStart := left.Start
	if right.Start < zoneStart {
		zoneStart = right.Start
	}
	zoneEnd := left.End
	if right.End > zoneEnd {
		zoneEnd = right.End
	}
	fragment := original[zoneStart:zoneEnd]

	leftAdj := left
	leftAdj.Start -= zoneStart
	leftAdj.End -= zoneStart
	leftZone, err := Apply([]ByteDiff{leftAdj}, fragment)
	if err != nil {
		return nil, nil, err
	}

	rightAdj := right
	rightAdj.Start -= zoneStart
	rightAdj.End -= zoneStart
	rightZone, err := Apply([]ByteDiff{rightAdj}, fragment)
	if err != nil {
		return nil, nil, err
	}

	if bytes.Equal(leftZone, rightZone) {
		if bytes.Equal(leftZone, fragment) {
			return nil, nil, nil
		}
		return []ByteDiff{{Start: zoneStart, End: zoneEnd, Kind: KindModified, Data: leftZone}}, nil, nil
	}

	// Re-diff the two reconstructed zones at the same granularity as
	// the original edits: shared spans (the gaps between ops below)
	// are the "peace-finding" result — accepted as-is — and each op
	// is a genuine divergence between the two sides.
	var nonConflicting []ByteDiff
	var conflicting []ConflictPair
	pos := uint32(0)
	for _, d := range Diff(leftZone, rightZone) {
		if d.Start > pos {
			nonConflicting = append(nonConflicting, ByteDiff{
				Start: zoneStart + pos, End: zoneStart + d.Start, Kind: KindModified,
				Data: append([]byte(nil), leftZone[pos:d.Start]...),
			})
		}
		switch d.Kind {
		case KindAdded:
			conflicting = append(conflicting, ConflictPair{
				Left:  ByteDiff{Start: zoneStart + d.Start, End: zoneStart + d.Start, Kind: KindAdded},
				Right: ByteDiff{Start: zoneStart + d.Start, End: zoneStart + d.Start, Kind: KindAdded, Data: append([]byte(nil), d.Data...)},
			})
		case KindRemoved:
			conflicting = append(conflicting, ConflictPair{
				Left:  ByteDiff{Start: zoneStart + d.Start, End: zoneStart + d.End, Kind: KindModified, Data: append([]byte(nil), leftZone[d.Start:d.End]...)},
				Right: ByteDiff{Start: zoneStart + d.Start, End: zoneStart + d.End, Kind: KindRemoved},
			})
		default: // Modified
			conflicting = append(conflicting, ConflictPair{
				Left:  ByteDiff{Start: zoneStart + d.Start, End: zoneStart + d.End, Kind: KindModified, Data: append([]byte(nil), leftZone[d.Start:d.End]...)},
				Right: ByteDiff{Start: zoneStart + d.Start, End: zoneStart + d.End, Kind: KindModified, Data: append([]byte(nil), d.Data...)},
			})
		}
		pos = d.End
	}
	if pos < uint32(len(leftZone)) {
		nonConflicting = append(nonConflicting, ByteDiff{
			Start: zoneStart + pos, End: zoneEnd, Kind: KindModified, Data: append([]byte(nil), leftZone[pos:]...),
		})
	}
	return nonConflicting, conflicting, nil
}
