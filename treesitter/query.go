// Package treesitter runs tree-sitter queries against the current buffer.
// Parsing and capture iteration happen inside nvim via ExecLua, so the query
// engine and language grammars are always the editor's own.
package treesitter

import (
	"context"
	"fmt"
	"strings"

	"github.com/neovim/go-client/nvim"

	"codetab/client/llm"
	"codetab/logger"
	"codetab/prompt"
	"codetab/types"
)

const runQueryLua = `
	local query_str = ...
	local buf = vim.api.nvim_get_current_buf()
	local lang = vim.treesitter.language.get_lang(vim.bo[buf].filetype)
	if not lang then
		return {err = 'no treesitter language for filetype ' .. vim.bo[buf].filetype}
	end
	local ok, query = pcall(vim.treesitter.query.parse, lang, query_str)
	if not ok then
		return {err = tostring(query)}
	end
	local parser = vim.treesitter.get_parser(buf, lang)
	local tree = parser:parse()[1]
	local results = {}
	for id, node in query:iter_captures(tree:root(), buf, 0, -1) do
		local sr, sc, er, ec = node:range()
		results[#results + 1] = {
			capture = query.captures[id],
			start_row = sr,
			start_col = sc,
			end_row = er,
			end_col = ec,
		}
	end
	return {matches = results}
`

// Run executes a tree-sitter query against the current buffer and returns
// the captured ranges. Query syntax errors come back as errors, not panics.
func Run(n *nvim.Nvim, query string) ([]types.QueryMatch, error) {
	defer logger.Trace("treesitter.Run")()

	var result map[string]any
	if err := n.ExecLua(runQueryLua, &result, query); err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	if errMsg, ok := result["err"].(string); ok && errMsg != "" {
		return nil, fmt.Errorf("query failed: %s", errMsg)
	}

	raw, _ := result["matches"].([]any)
	matches := make([]types.QueryMatch, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		matches = append(matches, types.QueryMatch{
			Capture:  getString(m, "capture"),
			StartRow: getNumber(m, "start_row"),
			StartCol: getNumber(m, "start_col"),
			EndRow:   getNumber(m, "end_row"),
			EndCol:   getNumber(m, "end_col"),
		})
	}
	logger.Debug("treesitter query matched %d capture(s)", len(matches))
	return matches, nil
}

// GenerateQuery asks the LLM to write a tree-sitter query from a natural
// language description. The reply is de-fenced but otherwise trusted; Run
// reports syntax errors if the model got it wrong.
func GenerateQuery(ctx context.Context, client *llm.Client, templates prompt.Templates, lang, request string) (string, error) {
	system, user := templates.Query(lang, request)
	reply, err := client.Complete(ctx, &types.PromptRequest{
		System: system,
		Prompt: user,
	})
	if err != nil {
		return "", fmt.Errorf("generating query: %w", err)
	}

	query := StripFences(reply)
	if query == "" {
		return "", fmt.Errorf("model returned no query")
	}
	logger.Debug("generated query for %q: %s", request, query)
	return query, nil
}

// StripFences removes markdown code fences and surrounding whitespace from a
// model reply, leaving the bare query text.
func StripFences(reply string) string {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func getString(m map[string]any, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getNumber(m map[string]any, key string) int {
	switch val := m[key].(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case float64:
		return int(val)
	}
	return 0
}
