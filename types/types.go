package types

// EditInstruction is one decoded replacement: swap the inclusive line range
// [StartLine, EndLine] of the original buffer for Lines.
type EditInstruction struct {
	StartLine int // 1-indexed
	EndLine   int // 1-indexed, inclusive
	Lines     []string
}

// Inverted reports whether the range runs backwards. Inverted instructions
// are applied as pure insertions before StartLine.
func (e *EditInstruction) Inverted() bool { return e.EndLine < e.StartLine }

// PromptMode selects how a response is written back into the buffer.
type PromptMode string

const (
	// ModeEdit replaces tagged line ranges of the buffer.
	ModeEdit PromptMode = "edit"
	// ModeAppend inserts the response below the cursor.
	ModeAppend PromptMode = "append"
)

// APIKind identifies the wire protocol a provider speaks.
type APIKind string

const (
	APIKindAnthropic APIKind = "anthropic"
	APIKindOpenAI    APIKind = "openai"
)

// ProviderConfig holds the fully resolved settings for one request. Values
// come out of the layered config resolver; nothing here is optional.
type ProviderConfig struct {
	Kind        APIKind
	URL         string  // base endpoint, e.g. "https://api.anthropic.com/v1/messages"
	APIKey      string  // resolved key, never the env var name
	Model       string  // model identifier sent on the wire
	Temperature float64 // sampling temperature
	MaxTokens   int     // generation cap, also drives input trimming
	TimeoutMs   int     // per-request timeout in milliseconds
}

// PromptRequest is a provider-agnostic chat request. Providers shape it into
// their own payloads.
type PromptRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// QueryMatch is one treesitter capture reported back to the plugin.
// Rows and columns are 0-indexed, end exclusive, matching nvim's extmark API.
type QueryMatch struct {
	Capture  string `json:"capture"`
	StartRow int    `json:"start_row"`
	StartCol int    `json:"start_col"`
	EndRow   int    `json:"end_row"`
	EndCol   int    `json:"end_col"`
}
