// Package provider defines the adapter surface between the engine and a
// concrete LLM API. A provider only shapes requests and interprets responses;
// the HTTP transport lives in client/llm.
package provider

import (
	"fmt"

	"codetab/logger"
	"codetab/provider/anthropic"
	"codetab/provider/openai"
	"codetab/types"
)

// Provider adapts one wire protocol. Implementations are stateless; all
// per-request settings arrive through the config and request arguments.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Headers returns the HTTP headers for a request, including auth.
	Headers(cfg *types.ProviderConfig) map[string]string

	// BuildPayload shapes a request into the provider's JSON body.
	BuildPayload(req *types.PromptRequest, stream bool) (any, error)

	// ExtractText pulls the assistant text out of a non-streaming response body.
	ExtractText(body []byte) (string, error)

	// ExtractDelta pulls the text fragment out of one SSE data payload.
	// event is the current SSE event name, empty for unnamed events. The
	// second return is false when the payload carries no text.
	ExtractDelta(event string, data []byte) (string, bool)
}

// New returns the provider for an API kind.
func New(kind types.APIKind) (Provider, error) {
	switch kind {
	case types.APIKindAnthropic:
		return anthropic.New(), nil
	case types.APIKindOpenAI:
		return openai.New(), nil
	default:
		return nil, fmt.Errorf("no provider for api kind %q", kind)
	}
}

// LogRequest records an outgoing request at DEBUG with its key parameters.
func LogRequest(name string, req *types.PromptRequest, stream bool) {
	logger.Debug("%s request: model=%s max_tokens=%d temp=%.2f stream=%v prompt_len=%d",
		name, req.Model, req.MaxTokens, req.Temperature, stream, len(req.Prompt))
}

// LogResponse records a completed response at DEBUG.
func LogResponse(name string, text string) {
	logger.Debug("%s response: %d chars", name, len(text))
}
