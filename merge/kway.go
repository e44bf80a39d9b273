// Package merge implements the k-way merging reader over a list of
// sorted files — a min-heap merge keyed on (key, source index) — plus
// the pure reshard planner used to redistribute a set of SortedFiles
// across a different number of destination files.
package merge

import (
	"container/heap"

	"github.com/colin353/corestore/sortedfile"
)

// Entry is one (key, value) pair drawn from a source run, tagged with
// which run it came from once popped off the heap.
type Entry struct {
	Key         string
	Value       []byte
	SourceIndex int
}

type cursor struct {
	entries     []Entry
	pos         int
	sourceIndex int
}

func (c *cursor) peek() (Entry, bool) {
	if c.pos >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[c.pos], true
}

// heapItem is one live cursor, ordered into the heap by its current
// head entry.
type heapItem struct {
	cur *cursor
}

type cursorHeap []*heapItem

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	ei, _ := h[i].cur.peek()
	ej, _ := h[j].cur.peek()
	if ei.Key != ej.Key {
		return ei.Key < ej.Key
	}
	// Tie-break by source index ascending: newer files must appear
	// earlier in the source list so newer records win.
	return h[i].cur.sourceIndex < h[j].cur.sourceIndex
}
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Reader yields a lazy, totally ordered stream of (key, value,
// sourceIndex) tuples across all supplied per-source runs: primary
// order by key ascending, ties broken by source index ascending.
type Reader struct {
	h cursorHeap
}

// NewReader seeds a merging reader from per-source entry runs, each
// already sorted ascending by key and already restricted to the
// caller's [min, max) window.
func NewReader(runs [][]Entry) *Reader {
	h := make(cursorHeap, 0, len(runs))
	for i, run := range runs {
		if len(run) == 0 {
			continue
		}
		h = append(h, &heapItem{cur: &cursor{entries: run, sourceIndex: i}})
	}
	heap.Init(&h)
	return &Reader{h: h}
}

// NewFromFiles seeds a merging reader directly from opened
// SortedFiles, each restricted to keys in [min, max) (empty max means
// unbounded). The files' order supplies the source indexes, so newer
// files must come first for ties to resolve toward newer records.
func NewFromFiles(files []*sortedfile.Reader, min, max string) (*Reader, error) {
	runs := make([][]Entry, len(files))
	for i, f := range files {
		entries, err := f.Range("", min, max)
		if err != nil {
			return nil, err
		}
		run := make([]Entry, len(entries))
		for j, e := range entries {
			run[j] = Entry{Key: e.Key, Value: e.Value}
		}
		runs[i] = run
	}
	return NewReader(runs), nil
}

// Next pops the next entry in merged order, advancing its source's
// cursor. ok is false once every source is exhausted.
func (r *Reader) Next() (Entry, bool) {
	if r.h.Len() == 0 {
		return Entry{}, false
	}
	item := r.h[0]
	e, _ := item.cur.peek()
	e.SourceIndex = item.cur.sourceIndex
	item.cur.pos++
	if _, more := item.cur.peek(); more {
		heap.Fix(&r.h, 0)
	} else {
		heap.Pop(&r.h)
	}
	return e, true
}

// All drains the reader, deduplicating by key with first-seen (lowest
// source index, i.e. newest) winning and tombstones left for the
// caller to filter.
func (r *Reader) All() []Entry {
	var out []Entry
	seen := make(map[string]bool)
	for {
		e, ok := r.Next()
		if !ok {
			break
		}
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		out = append(out, e)
	}
	return out
}
