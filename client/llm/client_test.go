package llm

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"

	"codetab/provider/anthropic"
	"codetab/provider/openai"
	"codetab/types"
)

func newTestClient(url string, kind types.APIKind) *Client {
	cfg := &types.ProviderConfig{
		Kind:   kind,
		URL:    url,
		APIKey: "test-key",
		Model:  "test-model",
	}
	if kind == types.APIKindAnthropic {
		return New(anthropic.New(), cfg)
	}
	return New(openai.New(), cfg)
}

func promptReq() *types.PromptRequest {
	return &types.PromptRequest{Prompt: "hi", Model: "test-model", MaxTokens: 64}
}

func TestComplete(t *testing.T) {
	t.Run("plain response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"), "auth header forwarded")
			fmt.Fprint(w, `{"content":[{"type":"text","text":"pong"}]}`)
		}))
		defer server.Close()

		got, err := newTestClient(server.URL, types.APIKindAnthropic).Complete(context.Background(), promptReq())
		assert.NoError(t, err, "Complete")
		assert.Equal(t, "pong", got, "Complete text")
	})

	t.Run("gzip response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.Header.Get("Accept-Encoding"), "br", "brotli negotiated")
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			fmt.Fprint(gz, `{"choices":[{"message":{"content":"zipped"}}]}`)
			gz.Close()
		}))
		defer server.Close()

		got, err := newTestClient(server.URL, types.APIKindOpenAI).Complete(context.Background(), promptReq())
		assert.NoError(t, err, "Complete")
		assert.Equal(t, "zipped", got, "Complete text")
	})

	t.Run("brotli response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			br := brotli.NewWriter(w)
			fmt.Fprint(br, `{"choices":[{"message":{"content":"compressed"}}]}`)
			br.Close()
		}))
		defer server.Close()

		got, err := newTestClient(server.URL, types.APIKindOpenAI).Complete(context.Background(), promptReq())
		assert.NoError(t, err, "Complete")
		assert.Equal(t, "compressed", got, "Complete text")
	})

	t.Run("http error includes body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, types.APIKindAnthropic).Complete(context.Background(), promptReq())
		assert.Error(t, err, "Complete")
		assert.Contains(t, err.Error(), "429", "status in error")
		assert.Contains(t, err.Error(), "rate limited", "body in error")
	})
}

func TestStream(t *testing.T) {
	t.Run("anthropic named events", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "text/event-stream", r.Header.Get("Accept"), "sse accept header")
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: message_start\n")
			fmt.Fprint(w, "data: {\"type\":\"message_start\"}\n\n")
			fmt.Fprint(w, "event: content_block_delta\n")
			fmt.Fprint(w, "data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"hel\"}}\n\n")
			fmt.Fprint(w, "event: content_block_delta\n")
			fmt.Fprint(w, "data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n")
			fmt.Fprint(w, "event: message_stop\n")
			fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
		}))
		defer server.Close()

		var deltas []string
		full, err := newTestClient(server.URL, types.APIKindAnthropic).Stream(context.Background(), promptReq(), func(d string) {
			deltas = append(deltas, d)
		})
		assert.NoError(t, err, "Stream")
		assert.Equal(t, "hello", full, "accumulated text")
		assert.Equal(t, []string{"hel", "lo"}, deltas, "delta sequence")
	})

	t.Run("openai done sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"one \"}}]}\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"two\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		defer server.Close()

		var count int
		full, err := newTestClient(server.URL, types.APIKindOpenAI).Stream(context.Background(), promptReq(), func(string) {
			count++
		})
		assert.NoError(t, err, "Stream")
		assert.Equal(t, "one two", full, "accumulated text")
		assert.Equal(t, 2, count, "role-only chunk skipped")
	})

	t.Run("error event stops the stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: content_block_delta\n")
			fmt.Fprint(w, "data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n")
			fmt.Fprint(w, "event: error\n")
			fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\"}}\n\n")
		}))
		defer server.Close()

		full, err := newTestClient(server.URL, types.APIKindAnthropic).Stream(context.Background(), promptReq(), func(string) {})
		assert.Error(t, err, "Stream")
		assert.Contains(t, err.Error(), "overloaded_error", "error payload surfaced")
		assert.Equal(t, "partial", full, "text before the error kept")
	})

	t.Run("comment lines ignored", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, ": keepalive\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		defer server.Close()

		full, err := newTestClient(server.URL, types.APIKindOpenAI).Stream(context.Background(), promptReq(), func(string) {})
		assert.NoError(t, err, "Stream")
		assert.Equal(t, "ok", full, "accumulated text")
	})

	t.Run("http error before streaming", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such model", http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, types.APIKindOpenAI).Stream(context.Background(), promptReq(), func(string) {})
		assert.Error(t, err, "Stream")
		assert.Contains(t, err.Error(), "404", "status in error")
	})
}
