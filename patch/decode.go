// Package patch decodes tagged model responses into edit instructions and
// applies them to buffer snapshots. Decoding tolerates truncated input so the
// same functions can run once per streaming delta over the accumulated text.
package patch

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"codetab/types"
)

// Markers the model is instructed to wrap edits in. The prompt templates and
// the decoder must agree on these exactly.
const (
	OpenRangeMarker  = "<ct_lines_to_update>"
	CloseRangeMarker = "</ct_lines_to_update>"
	OpenCodeMarker   = "<ct_updated_code>"
	CloseCodeMarker  = "</ct_updated_code>"
)

var rangePattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// pendingEdit tracks one instruction mid-decode.
type pendingEdit struct {
	startLine int
	endLine   int
	haveRange bool
	inCode    bool
	code      []string
}

// DecodeEdits parses the accumulated model response into edit instructions.
// Malformed lines are skipped rather than failing the decode, and an
// instruction whose code block is still open at end of input is emitted with
// the lines seen so far, so partial streaming responses produce usable edits.
// The result is sorted ascending by start line.
func DecodeEdits(text string) []*types.EditInstruction {
	var edits []*types.EditInstruction
	var pending *pendingEdit

	rawLines := strings.Split(text, "\n")
	// Text ending in a newline has not started its next line yet; without
	// this, every delta boundary would inject a phantom empty code line.
	if n := len(rawLines); n > 0 && rawLines[n-1] == "" {
		rawLines = rawLines[:n-1]
	}

	for _, raw := range rawLines {
		line := strings.TrimSpace(raw)

		switch {
		case line == OpenRangeMarker:
			// A new open marker abandons any half-finished instruction.
			pending = &pendingEdit{}

		case pending != nil && pending.inCode:
			if line == CloseCodeMarker {
				edits = appendComplete(edits, pending)
				pending = nil
				continue
			}
			pending.code = append(pending.code, raw)

		case line == OpenCodeMarker:
			if pending != nil {
				pending.inCode = true
				pending.code = nil
			}

		case pending != nil && !pending.haveRange:
			if m := rangePattern.FindStringSubmatch(line); m != nil {
				pending.startLine, _ = strconv.Atoi(m[1])
				pending.endLine, _ = strconv.Atoi(m[2])
				pending.haveRange = true
			}
		}
	}

	// Partial tail: an open code block with a known range is still useful.
	if pending != nil && pending.inCode && pending.haveRange {
		edits = appendComplete(edits, pending)
	}

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].StartLine < edits[j].StartLine
	})
	return edits
}

func appendComplete(edits []*types.EditInstruction, p *pendingEdit) []*types.EditInstruction {
	if !p.haveRange {
		return edits
	}
	return append(edits, &types.EditInstruction{
		StartLine: p.startLine,
		EndLine:   p.endLine,
		Lines:     p.code,
	})
}

// DecodeAppend parses a response that should be a single tagged code block and
// returns its lines. A missing close marker means the stream is still in
// flight and everything after the open marker is returned; a missing open
// marker means the response is not usable and the result is empty.
func DecodeAppend(text string) []string {
	lines := strings.Split(text, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[start:end]

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != OpenCodeMarker {
		return []string{}
	}

	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == CloseCodeMarker {
			if i <= 1 {
				return []string{}
			}
			return lines[1:i]
		}
	}
	return lines[1:]
}
