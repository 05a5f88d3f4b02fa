// Package openai speaks the OpenAI chat-completions protocol, which most
// self-hosted inference servers also expose.
package openai

import (
	"encoding/json"
	"fmt"

	"codetab/types"
)

// Provider implements provider.Provider for OpenAI-compatible endpoints.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Headers(cfg *types.ProviderConfig) map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	return headers
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type payload struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

func (p *Provider) BuildPayload(req *types.PromptRequest, stream bool) (any, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	messages := make([]message, 0, 2)
	if req.System != "" {
		messages = append(messages, message{Role: "system", Content: req.System})
	}
	messages = append(messages, message{Role: "user", Content: req.Prompt})

	return &payload{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}, nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (p *Provider) ExtractText(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("openai: decoding response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai: %s: %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ExtractDelta reads text from streamed chat chunks. OpenAI streams do not
// use named SSE events, so event is ignored.
func (p *Provider) ExtractDelta(_ string, data []byte) (string, bool) {
	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}
