// Package llm is the HTTP transport shared by all providers. It handles
// request encoding, response decompression and SSE framing; payload shaping
// and response interpretation are delegated to the provider.
package llm

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"codetab/logger"
	"codetab/provider"
	"codetab/types"
)

const (
	defaultTimeout = 120 * time.Second
	// SSE data lines can carry whole code files in one payload.
	maxScanTokenSize = 10 * 1024 * 1024
)

type Client struct {
	httpClient *http.Client
	prov       provider.Provider
	cfg        *types.ProviderConfig
}

func New(prov provider.Provider, cfg *types.ProviderConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			// Compression is negotiated and decoded by hand so brotli works;
			// the stock transport only speaks gzip.
			Transport: &http.Transport{DisableCompression: true},
		},
		prov: prov,
		cfg:  cfg,
	}
}

func (c *Client) timeout() time.Duration {
	if c.cfg.TimeoutMs > 0 {
		return time.Duration(c.cfg.TimeoutMs) * time.Millisecond
	}
	return defaultTimeout
}

// Complete performs a non-streaming request and returns the assistant text.
func (c *Client) Complete(ctx context.Context, req *types.PromptRequest) (string, error) {
	defer logger.Trace("llm.Complete")()

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	provider.LogRequest(c.prov.Name(), req, false)

	resp, err := c.doRequest(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned status %d: %s", c.prov.Name(), resp.StatusCode, string(body))
	}

	text, err := c.prov.ExtractText(body)
	if err != nil {
		return "", err
	}
	provider.LogResponse(c.prov.Name(), text)
	return text, nil
}

// Stream performs a streaming request, invoking onDelta for every text
// fragment, and returns the accumulated full text. The caller's context
// cancels the stream; there is no overall timeout while deltas flow.
func (c *Client) Stream(ctx context.Context, req *types.PromptRequest, onDelta func(string)) (string, error) {
	defer logger.Trace("llm.Stream")()

	provider.LogRequest(c.prov.Name(), req, true)

	resp, err := c.doRequest(ctx, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readBody(resp)
		return "", fmt.Errorf("%s returned status %d: %s", c.prov.Name(), resp.StatusCode, string(body))
	}

	return c.readStream(resp.Body, onDelta)
}

// readStream scans SSE frames. The current event name is carried as context
// for every data line until a blank line ends the frame; a literal [DONE]
// payload or an error event ends the stream.
func (c *Client) readStream(body io.Reader, onDelta func(string)) (string, error) {
	var full strings.Builder
	var event string

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			event = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
			continue
		}

		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}
		if event == "error" {
			return full.String(), fmt.Errorf("%s stream error: %s", c.prov.Name(), data)
		}

		if delta, ok := c.prov.ExtractDelta(event, []byte(data)); ok {
			full.WriteString(delta)
			onDelta(delta)
		}
	}

	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("reading stream: %w", err)
	}
	provider.LogResponse(c.prov.Name(), full.String())
	return full.String(), nil
}

func (c *Client) doRequest(ctx context.Context, req *types.PromptRequest, stream bool) (*http.Response, error) {
	payload, err := c.prov.BuildPayload(req, stream)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for key, value := range c.prov.Headers(c.cfg) {
		httpReq.Header.Set(key, value)
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	} else {
		httpReq.Header.Set("Accept-Encoding", "gzip, br")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

// readBody drains and decompresses a response body per Content-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	default:
		reader = resp.Body
	}
	return io.ReadAll(reader)
}
