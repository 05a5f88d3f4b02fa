package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimContentAroundCursor_EmptyFile(t *testing.T) {
	trimmed, cursorRow, offset, didTrim := TrimContentAroundCursor([]string{}, 0, 100)

	assert.Equal(t, 0, len(trimmed), "trimmed length")
	assert.Equal(t, 0, cursorRow, "cursorRow")
	assert.Equal(t, 0, offset, "offset")
	assert.False(t, didTrim, "didTrim should be false")
}

func TestTrimContentAroundCursor_SmallFile(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}
	trimmed, cursorRow, offset, didTrim := TrimContentAroundCursor(lines, 1, 1000)

	assert.Equal(t, 3, len(trimmed), "small file untrimmed")
	assert.Equal(t, 1, cursorRow, "cursorRow")
	assert.Equal(t, 0, offset, "offset")
	assert.False(t, didTrim, "didTrim should be false")
}

func TestTrimContentAroundCursor_LargeFileTrims(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "this is line content that takes up space"
	}

	trimmed, cursorRow, offset, didTrim := TrimContentAroundCursor(lines, 50, 20)

	assert.True(t, didTrim, "didTrim should be true")
	assert.True(t, len(trimmed) < 100, "trimmed length should shrink")
	assert.True(t, cursorRow >= 0 && cursorRow < len(trimmed), "cursor within trimmed range")
	assert.Equal(t, 50, offset+cursorRow, "offset maps cursor back to original")
}

func TestTrimContentAroundCursor_CursorClamping(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}

	_, cursorRow, _, _ := TrimContentAroundCursor(lines, 100, 1000)
	assert.Equal(t, 2, cursorRow, "cursorRow clamped to last line")

	_, cursorRow, _, _ = TrimContentAroundCursor(lines, -5, 1000)
	assert.Equal(t, 0, cursorRow, "cursorRow clamped to first line")
}

func TestTrimContentAroundCursor_ZeroMaxTokens(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}
	trimmed, _, _, didTrim := TrimContentAroundCursor(lines, 1, 0)

	assert.Equal(t, 3, len(trimmed), "content returned as-is")
	assert.False(t, didTrim, "didTrim should be false")
}

func TestTrimContentAroundCursor_BalancedAroundCursor(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "x"
	}

	trimmed, cursorRow, _, didTrim := TrimContentAroundCursor(lines, 25, 20)

	assert.True(t, didTrim, "didTrim should be true")
	// Roughly as much context above the cursor as below it.
	above := cursorRow
	below := len(trimmed) - cursorRow - 1
	assert.True(t, above > 0 && below > 0, "context on both sides")
}
