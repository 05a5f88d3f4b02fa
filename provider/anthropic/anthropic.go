// Package anthropic speaks the Anthropic Messages API, including its named
// SSE events for streaming.
package anthropic

import (
	"encoding/json"
	"fmt"

	"codetab/types"
)

const apiVersion = "2023-06-01"

// Provider implements provider.Provider for the Anthropic Messages API.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Headers(cfg *types.ProviderConfig) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         cfg.APIKey,
		"anthropic-version": apiVersion,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type payload struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

func (p *Provider) BuildPayload(req *types.PromptRequest, stream bool) (any, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	return &payload{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      stream,
	}, nil
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (p *Provider) ExtractText(body []byte) (string, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("anthropic: decoding response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("anthropic: %s: %s", resp.Error.Type, resp.Error.Message)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

type deltaPayload struct {
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// ExtractDelta reads text fragments from content_block_delta events. All
// other event types (message_start, ping, message_stop, ...) carry no text.
func (p *Provider) ExtractDelta(event string, data []byte) (string, bool) {
	if event != "content_block_delta" {
		return "", false
	}
	var chunk deltaPayload
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", false
	}
	if chunk.Delta.Type != "text_delta" || chunk.Delta.Text == "" {
		return "", false
	}
	return chunk.Delta.Text, true
}
