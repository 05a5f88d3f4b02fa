package treesitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "bare query untouched",
			reply: "(function_declaration name: (identifier) @function.name)",
			want:  "(function_declaration name: (identifier) @function.name)",
		},
		{
			name:  "fenced with language tag",
			reply: "```query\n(call_expression) @call\n```",
			want:  "(call_expression) @call",
		},
		{
			name:  "fenced without language tag",
			reply: "```\n(comment) @comment\n```",
			want:  "(comment) @comment",
		},
		{
			name:  "surrounding whitespace trimmed",
			reply: "\n\n  (string) @string  \n\n",
			want:  "(string) @string",
		},
		{
			name: "multi-line query preserved",
			reply: "```\n(function_declaration\n  name: (identifier) @name)\n```",
			want:  "(function_declaration\n  name: (identifier) @name)",
		},
		{
			name:  "empty reply",
			reply: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.reply), "StripFences")
		})
	}
}

func TestGetHelpers(t *testing.T) {
	m := map[string]any{
		"capture":   "function.name",
		"start_row": int64(4),
		"start_col": float64(2),
		"end_row":   uint64(4),
	}

	assert.Equal(t, "function.name", getString(m, "capture"), "getString")
	assert.Equal(t, "", getString(m, "missing"), "getString missing")
	assert.Equal(t, 4, getNumber(m, "start_row"), "getNumber int64")
	assert.Equal(t, 2, getNumber(m, "start_col"), "getNumber float64")
	assert.Equal(t, 4, getNumber(m, "end_row"), "getNumber uint64")
	assert.Equal(t, 0, getNumber(m, "missing"), "getNumber missing")
}
