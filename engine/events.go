package engine

import (
	"fmt"

	"github.com/neovim/go-client/nvim"
)

type eventType int

const (
	eventAttach eventType = iota
	eventPrompt
	eventCancel
	eventQuery
	eventQueryNL
	eventQueryClear
	eventStreamDelta
	eventStreamDone
	eventStreamError
)

func (t eventType) String() string {
	switch t {
	case eventAttach:
		return "attach"
	case eventPrompt:
		return "prompt"
	case eventCancel:
		return "cancel"
	case eventQuery:
		return "query"
	case eventQueryNL:
		return "query_nl"
	case eventQueryClear:
		return "query_clear"
	case eventStreamDelta:
		return "stream_delta"
	case eventStreamDone:
		return "stream_done"
	case eventStreamError:
		return "stream_error"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// event is the only way anything reaches the engine loop. Stream events
// carry the generation they were started under so superseded requests can
// be dropped without locks.
type event struct {
	Type   eventType
	Gen    uint64
	Nvim   *nvim.Nvim
	Prompt *PromptArgs
	Query  string
	Delta  string
	Err    error
}

// PromptArgs is the payload of a codetab_prompt RPC call.
type PromptArgs struct {
	Instruction string
	StartLine   int // 1-indexed selection start, 0 when no selection
	EndLine     int // 1-indexed inclusive selection end
	Mode        string
	Diff        bool
	Model       string
}
