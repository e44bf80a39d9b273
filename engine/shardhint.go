package engine

import (
	"sort"

	"github.com/colin353/corestore/internal/recordkey"
)

// ShardHints implements get_shard_hint: the union of every SortedFile's
// index keys falling within [minCol, maxCol) of row, matching colSpec.
//
// Corrects the REDESIGN FLAG in the source get_shard_hint: that
// implementation mis-constructs its upper bound by reusing min_key,
// so a window's hints were silently clipped to nothing whenever
// maxCol was left for the engine to infer. Here maxCol is derived from
// the real maximum column at or after minCol (scanning memtables and
// sortedfile indexes) whenever the caller leaves it empty, rather than
// ever substituting minCol for it.
func (e *Engine) ShardHints(row, colSpec, minCol, maxCol string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if maxCol == "" {
		maxCol = e.maxColumnLocked(row, colSpec, minCol)
	}

	rowPrefix := recordkey.RowPrefix(row)
	spec := rowPrefix + colSpec
	min := rowPrefix
	if minCol != "" {
		min = rowPrefix + minCol
	}
	max := ""
	if maxCol != "" {
		max = rowPrefix + maxCol
	}

	seen := make(map[string]bool)
	var out []string
	for _, h := range e.sortedFiles {
		for _, hint := range h.reader.ShardHints(spec, min, max) {
			if !seen[hint] {
				seen[hint] = true
				out = append(out, hint)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// maxColumnLocked returns the lexicographically largest column name at
// or after minCol matching colSpec, across every MemTable's columns and
// every SortedFile's index keys (the only SortedFile keys ShardHints
// can return), plus a trailing 0xff byte so that column itself falls
// inside the [minCol, maxCol) window. It returns "" when no column
// qualifies.
func (e *Engine) maxColumnLocked(row, colSpec, minCol string) string {
	max := ""
	consider := func(col string) {
		if minCol != "" && col < minCol {
			return
		}
		if col > max {
			max = col
		}
	}
	for _, mt := range e.memtables {
		for _, col := range mt.ColumnsInRange(row, colSpec, minCol, "") {
			consider(col)
		}
	}
	rowPrefix := recordkey.RowPrefix(row)
	spec := rowPrefix + colSpec
	min := rowPrefix
	if minCol != "" {
		min = rowPrefix + minCol
	}
	for _, h := range e.sortedFiles {
		for _, key := range h.reader.ShardHints(spec, min, "") {
			if _, col, _, ok := recordkey.Decode(key); ok {
				consider(col)
			}
		}
	}
	if max == "" {
		return ""
	}
	return max + "\xff"
}
