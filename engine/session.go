package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/neovim/go-client/nvim"

	"codetab/patch"
	"codetab/prompt"
	"codetab/types"
	"codetab/utils"
)

// maxContextTokens bounds how much buffer content an append prompt carries.
const maxContextTokens = 24000

// session is the state of one in-flight prompt request. Everything a request
// needs lives here; nothing about the request is global.
type session struct {
	id         string
	gen        uint64
	mode       types.PromptMode
	cancel     context.CancelFunc
	stream     patch.Stream
	snapshot   []string
	refBuffer  nvim.Buffer // reference copy in diff mode, 0 otherwise
	diff       bool
	startedAt  time.Time
	insertLine int // append mode: 0-indexed first written line
}

// buildPrompts renders the system and user prompts for a request. Pure
// function over synced buffer state so it is testable without an editor.
func buildPrompts(templates prompt.Templates, args *PromptArgs, lines []string, row int, filetype string) (system, user string, err error) {
	switch types.PromptMode(args.Mode) {
	case types.ModeEdit:
		selStart, selEnd := args.StartLine, args.EndLine
		if selStart <= 0 {
			selStart, selEnd = 1, len(lines)
		}
		if selEnd < selStart {
			selEnd = selStart
		}
		system, user = templates.Edit(filetype, args.Instruction, lines, selStart, selEnd)
		return system, user, nil

	case types.ModeAppend:
		// Content up to and including the cursor line, trimmed to budget.
		before := lines
		if row >= 1 && row <= len(lines) {
			before = lines[:row]
		}
		trimmed, _, _, _ := utils.TrimContentAroundCursor(before, len(before)-1, maxContextTokens)
		system, user = templates.Append(filetype, args.Instruction, trimmed)
		return system, user, nil

	default:
		return "", "", fmt.Errorf("unknown prompt mode %q", args.Mode)
	}
}
