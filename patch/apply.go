package patch

import (
	"sort"

	"codetab/logger"
	"codetab/types"
)

// Result is the outcome of applying a set of edit instructions to a snapshot.
// Clamped and Dropped hold indices into the input slice (its original order)
// so callers can report what was adjusted or discarded.
type Result struct {
	Lines   []string
	Clamped []int
	Dropped []int
}

// Apply replays edit instructions against a frozen snapshot and returns the
// resulting line list. The snapshot is never mutated, so the same snapshot
// can be re-applied for every streaming delta.
//
// Instructions are applied in descending start order so that earlier ranges
// keep their meaning while later lines shift. Out-of-range instructions are
// clamped to the snapshot, an inverted range inserts before its start line,
// and when two instructions overlap the one starting first wins and the
// other is dropped.
func Apply(instructions []*types.EditInstruction, source []string) *Result {
	res := &Result{}

	type indexed struct {
		idx  int
		edit *types.EditInstruction
	}
	ordered := make([]indexed, 0, len(instructions))
	for i, e := range instructions {
		ordered = append(ordered, indexed{i, e})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].edit.StartLine < ordered[j].edit.StartLine
	})

	// Overlap pass in ascending order: the first claim on a line range wins.
	// An insertion whose target line sits inside a claimed range is dropped
	// too; splicing it would shift lines under the earlier edit.
	kept := ordered[:0]
	lastEnd := 0
	for _, in := range ordered {
		start, end := normalizeRange(in.edit, len(source))
		if start <= lastEnd {
			logger.Debug("patch: dropping overlapping edit %d-%d", in.edit.StartLine, in.edit.EndLine)
			res.Dropped = append(res.Dropped, in.idx)
			continue
		}
		if end >= start {
			lastEnd = end
		}
		kept = append(kept, in)
	}

	res.Lines = make([]string, len(source))
	copy(res.Lines, source)

	// Apply back to front.
	for i := len(kept) - 1; i >= 0; i-- {
		in := kept[i]
		start, end := normalizeRange(in.edit, len(source))
		if start != in.edit.StartLine || (end != in.edit.EndLine && !in.edit.Inverted()) {
			res.Clamped = append(res.Clamped, in.idx)
		}
		res.Lines = splice(res.Lines, start, end, in.edit.Lines)
	}

	sort.Ints(res.Clamped)
	return res
}

// normalizeRange clamps a 1-indexed inclusive range to the snapshot. An
// inverted range collapses to the empty range before start (end = start-1),
// which splice treats as an insertion.
func normalizeRange(e *types.EditInstruction, lineCount int) (start, end int) {
	start = e.StartLine
	if start < 1 {
		start = 1
	}
	if start > lineCount+1 {
		start = lineCount + 1
	}

	if e.Inverted() {
		return start, start - 1
	}

	end = e.EndLine
	if end > lineCount {
		end = lineCount
	}
	if end < start-1 {
		end = start - 1
	}
	return start, end
}

// splice replaces the 1-indexed inclusive range [start, end] with repl.
// end == start-1 inserts before start without removing anything.
func splice(lines []string, start, end int, repl []string) []string {
	out := make([]string, 0, len(lines)-(end-start+1)+len(repl))
	out = append(out, lines[:start-1]...)
	out = append(out, repl...)
	out = append(out, lines[end:]...)
	return out
}
