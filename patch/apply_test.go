package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"codetab/types"
)

func edit(start, end int, lines ...string) *types.EditInstruction {
	return &types.EditInstruction{StartLine: start, EndLine: end, Lines: lines}
}

func TestApply(t *testing.T) {
	source := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name        string
		edits       []*types.EditInstruction
		source      []string
		want        []string
		wantClamped []int
		wantDropped []int
	}{
		{
			name:   "single replacement",
			edits:  []*types.EditInstruction{edit(2, 3, "X", "Y")},
			source: source,
			want:   []string{"a", "X", "Y", "d", "e"},
		},
		{
			name: "multiple disjoint edits keep original numbering",
			edits: []*types.EditInstruction{
				edit(1, 1, "A1", "A2"),
				edit(4, 5, "B"),
			},
			source: source,
			want:   []string{"A1", "A2", "b", "c", "B"},
		},
		{
			name:   "replacement shorter than range",
			edits:  []*types.EditInstruction{edit(1, 4, "only")},
			source: source,
			want:   []string{"only", "e"},
		},
		{
			name:   "replacement longer than range",
			edits:  []*types.EditInstruction{edit(3, 3, "c1", "c2", "c3")},
			source: source,
			want:   []string{"a", "b", "c1", "c2", "c3", "d", "e"},
		},
		{
			name:   "empty replacement deletes",
			edits:  []*types.EditInstruction{{StartLine: 2, EndLine: 4}},
			source: source,
			want:   []string{"a", "e"},
		},
		{
			name:        "end clamped to buffer",
			edits:       []*types.EditInstruction{edit(4, 99, "tail")},
			source:      source,
			want:        []string{"a", "b", "c", "tail"},
			wantClamped: []int{0},
		},
		{
			name:        "start past the end appends",
			edits:       []*types.EditInstruction{edit(40, 41, "appended")},
			source:      source,
			want:        []string{"a", "b", "c", "d", "e", "appended"},
			wantClamped: []int{0},
		},
		{
			name:        "start below one clamped",
			edits:       []*types.EditInstruction{edit(0, 1, "head")},
			source:      source,
			want:        []string{"head", "b", "c", "d", "e"},
			wantClamped: []int{0},
		},
		{
			name:   "inverted range inserts before start",
			edits:  []*types.EditInstruction{edit(3, 1, "inserted")},
			source: source,
			want:   []string{"a", "b", "inserted", "c", "d", "e"},
		},
		{
			name: "overlapping edit dropped first wins",
			edits: []*types.EditInstruction{
				edit(2, 4, "wins"),
				edit(3, 5, "loses"),
			},
			source:      source,
			want:        []string{"a", "wins", "e"},
			wantDropped: []int{1},
		},
		{
			name: "overlap decided by position not input order",
			edits: []*types.EditInstruction{
				edit(3, 5, "loses"),
				edit(2, 4, "wins"),
			},
			source:      source,
			want:        []string{"a", "wins", "e"},
			wantDropped: []int{0},
		},
		{
			name: "insertion inside claimed range dropped",
			edits: []*types.EditInstruction{
				edit(2, 4, "wins"),
				edit(4, 3, "i1", "i2"),
			},
			source:      source,
			want:        []string{"a", "wins", "e"},
			wantDropped: []int{1},
		},
		{
			name: "insertion inside claimed range dropped regardless of input order",
			edits: []*types.EditInstruction{
				edit(4, 3, "i1", "i2"),
				edit(2, 4, "wins"),
			},
			source:      source,
			want:        []string{"a", "wins", "e"},
			wantDropped: []int{0},
		},
		{
			name: "insertion at claimed end line dropped",
			edits: []*types.EditInstruction{
				edit(1, 2, "x"),
				edit(2, 1, "mid"),
			},
			source:      source,
			want:        []string{"x", "c", "d", "e"},
			wantDropped: []int{1},
		},
		{
			name: "insertion past claimed range applies",
			edits: []*types.EditInstruction{
				edit(1, 2, "x"),
				edit(3, 2, "mid"),
			},
			source: source,
			want:   []string{"x", "mid", "c", "d", "e"},
		},
		{
			name:   "adjacent ranges both apply",
			edits:  []*types.EditInstruction{edit(1, 2, "x"), edit(3, 3, "y")},
			source: source,
			want:   []string{"x", "y", "d", "e"},
		},
		{
			name:   "empty source insertion",
			edits:  []*types.EditInstruction{edit(1, 0, "first")},
			source: []string{},
			want:   []string{"first"},
		},
		{
			name:   "no edits returns copy",
			edits:  nil,
			source: source,
			want:   source,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply(tt.edits, tt.source)
			assert.Equal(t, tt.want, res.Lines, "Apply lines")
			assert.Equal(t, tt.wantClamped, res.Clamped, "Apply clamped")
			assert.Equal(t, tt.wantDropped, res.Dropped, "Apply dropped")
		})
	}
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	source := []string{"a", "b", "c"}
	Apply([]*types.EditInstruction{edit(1, 3, "z")}, source)
	assert.Equal(t, []string{"a", "b", "c"}, source, "source snapshot")
}

func TestDecodeThenApply(t *testing.T) {
	source := []string{"a", "b", "c", "d", "e"}
	response := "<ct_lines_to_update>\n2-3\n<ct_updated_code>\nX\nY\n</ct_updated_code>\n</ct_lines_to_update>"

	res := Apply(DecodeEdits(response), source)
	assert.Equal(t, []string{"a", "X", "Y", "d", "e"}, res.Lines, "decode then apply")
}
