package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"codetab/types"
)

func TestHeaders(t *testing.T) {
	p := New()
	headers := p.Headers(&types.ProviderConfig{APIKey: "sk-test"})

	assert.Equal(t, "sk-test", headers["x-api-key"], "api key header")
	assert.Equal(t, apiVersion, headers["anthropic-version"], "version header")
	assert.Equal(t, "application/json", headers["Content-Type"], "content type")
}

func TestBuildPayload(t *testing.T) {
	p := New()

	t.Run("shapes the messages body", func(t *testing.T) {
		body, err := p.BuildPayload(&types.PromptRequest{
			System:      "be terse",
			Prompt:      "hello",
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.2,
			MaxTokens:   1024,
		}, true)
		assert.NoError(t, err, "BuildPayload")

		raw, err := json.Marshal(body)
		assert.NoError(t, err, "marshal payload")

		var got map[string]any
		assert.NoError(t, json.Unmarshal(raw, &got), "unmarshal payload")
		assert.Equal(t, "claude-sonnet-4-20250514", got["model"], "model")
		assert.Equal(t, "be terse", got["system"], "system")
		assert.Equal(t, float64(1024), got["max_tokens"], "max_tokens")
		assert.Equal(t, true, got["stream"], "stream")

		messages := got["messages"].([]any)
		assert.Len(t, messages, 1, "one user message")
		first := messages[0].(map[string]any)
		assert.Equal(t, "user", first["role"], "role")
		assert.Equal(t, "hello", first["content"], "content")
	})

	t.Run("missing model rejected", func(t *testing.T) {
		_, err := p.BuildPayload(&types.PromptRequest{Prompt: "x"}, false)
		assert.Error(t, err, "BuildPayload without model")
	})
}

func TestExtractText(t *testing.T) {
	p := New()

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "joins text blocks",
			body: `{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}`,
			want: "hello world",
		},
		{
			name: "skips non-text blocks",
			body: `{"content":[{"type":"tool_use"},{"type":"text","text":"only this"}]}`,
			want: "only this",
		},
		{
			name:    "api error surfaces",
			body:    `{"error":{"type":"overloaded_error","message":"try later"}}`,
			wantErr: true,
		},
		{
			name:    "garbage body",
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ExtractText([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err, "ExtractText")
				return
			}
			assert.NoError(t, err, "ExtractText")
			assert.Equal(t, tt.want, got, "ExtractText")
		})
	}
}

func TestExtractDelta(t *testing.T) {
	p := New()

	tests := []struct {
		name   string
		event  string
		data   string
		want   string
		wantOK bool
	}{
		{
			name:   "text delta",
			event:  "content_block_delta",
			data:   `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"chunk"}}`,
			want:   "chunk",
			wantOK: true,
		},
		{
			name:  "non-text delta ignored",
			event: "content_block_delta",
			data:  `{"delta":{"type":"input_json_delta","partial_json":"{"}}`,
		},
		{
			name:  "message_start ignored",
			event: "message_start",
			data:  `{"type":"message_start","message":{"id":"msg_1"}}`,
		},
		{
			name:  "ping ignored",
			event: "ping",
			data:  `{"type":"ping"}`,
		},
		{
			name:  "malformed data ignored",
			event: "content_block_delta",
			data:  `{{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ExtractDelta(tt.event, []byte(tt.data))
			assert.Equal(t, tt.wantOK, ok, "ExtractDelta ok")
			assert.Equal(t, tt.want, got, "ExtractDelta text")
		})
	}
}
