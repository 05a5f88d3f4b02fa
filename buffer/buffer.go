// Package buffer wraps the nvim RPC API for the one buffer a session works
// on. All state is captured in a single batched round-trip and frozen; writes
// go through explicit methods so the engine controls every mutation.
package buffer

import (
	"fmt"

	"github.com/neovim/go-client/nvim"

	"codetab/logger"
	"codetab/types"
)

type Config struct {
	// NsID is the plugin's highlight namespace, allocated by the Lua side.
	NsID int
}

// NvimBuffer is the synced state of the current buffer. Methods that talk to
// nvim take the connection explicitly; the daemon serves one connection per
// attached editor.
type NvimBuffer struct {
	Lines    []string
	Row      int // 1-indexed
	Col      int // 0-indexed
	Path     string
	Filetype string

	id     nvim.Buffer
	config Config
}

func New(config Config) *NvimBuffer {
	return &NvimBuffer{config: config}
}

// Sync captures buffer id, name, content, cursor and filetype in one batch.
func (b *NvimBuffer) Sync(n *nvim.Nvim) error {
	defer logger.Trace("buffer.Sync")()

	batch := n.NewBatch()

	var currentBuf nvim.Buffer
	var path string
	var lines [][]byte
	var cursor [2]int
	var filetype string

	batch.CurrentBuffer(&currentBuf)
	batch.BufferName(nvim.Buffer(0), &path)
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor)
	batch.ExecLua("return vim.bo.filetype", &filetype, nil)

	if err := batch.Execute(); err != nil {
		return fmt.Errorf("syncing buffer: %w", err)
	}

	b.id = currentBuf
	b.Path = path
	b.Row = cursor[0]
	b.Col = cursor[1]
	b.Filetype = filetype

	b.Lines = make([]string, len(lines))
	for i, line := range lines {
		b.Lines[i] = string(line)
	}
	return nil
}

// Snapshot returns a frozen copy of the synced lines.
func (b *NvimBuffer) Snapshot() []string {
	snap := make([]string, len(b.Lines))
	copy(snap, b.Lines)
	return snap
}

// ID returns the synced buffer handle.
func (b *NvimBuffer) ID() nvim.Buffer { return b.id }

// Writer binds the buffer to a connection as a line sink for streaming.
func (b *NvimBuffer) Writer(n *nvim.Nvim) *Writer {
	return &Writer{n: n, buf: b.id}
}

// Writer applies half-open line replacements to one buffer. It satisfies the
// patch.Sink contract; end == -1 means end of buffer, as in the nvim API.
type Writer struct {
	n   *nvim.Nvim
	buf nvim.Buffer
}

func (w *Writer) ReplaceLines(start, end int, lines []string) error {
	data := make([][]byte, len(lines))
	for i, line := range lines {
		data[i] = []byte(line)
	}
	if err := w.n.SetBufferLines(w.buf, start, end, false, data); err != nil {
		return fmt.Errorf("replacing lines [%d,%d): %w", start, end, err)
	}
	return nil
}

// Duplicate creates a read-only scratch copy of the buffer with the same
// content and filetype. The copy serves as the untouched reference side of a
// diff view.
func (b *NvimBuffer) Duplicate(n *nvim.Nvim) (nvim.Buffer, error) {
	ref, err := n.CreateBuffer(false, true)
	if err != nil {
		return 0, fmt.Errorf("creating reference buffer: %w", err)
	}

	data := make([][]byte, len(b.Lines))
	for i, line := range b.Lines {
		data[i] = []byte(line)
	}

	batch := n.NewBatch()
	batch.SetBufferLines(ref, 0, -1, false, data)
	batch.SetBufferOption(ref, "filetype", b.Filetype)
	batch.SetBufferOption(ref, "modifiable", false)
	batch.SetBufferName(ref, b.Path+" (codetab)")
	if err := batch.Execute(); err != nil {
		return 0, fmt.Errorf("preparing reference buffer: %w", err)
	}
	return ref, nil
}

// OpenDiff puts the buffer and its reference copy side by side in diff mode,
// leaving the cursor in the original window.
func (b *NvimBuffer) OpenDiff(n *nvim.Nvim, ref nvim.Buffer) error {
	err := n.ExecLua(`
		local ref = ...
		vim.cmd('diffthis')
		vim.cmd('rightbelow vsplit')
		vim.api.nvim_win_set_buf(0, ref)
		vim.cmd('diffthis')
		vim.cmd('wincmd p')
	`, nil, int(ref))
	if err != nil {
		return fmt.Errorf("opening diff view: %w", err)
	}
	return nil
}

// CloseDiff leaves diff mode and deletes the reference buffer, which also
// closes its window.
func (b *NvimBuffer) CloseDiff(n *nvim.Nvim, ref nvim.Buffer) error {
	err := n.ExecLua(`
		local ref = ...
		vim.cmd('diffoff!')
		pcall(vim.api.nvim_buf_delete, ref, {force = true})
	`, nil, int(ref))
	if err != nil {
		return fmt.Errorf("closing diff view: %w", err)
	}
	return nil
}

// Notify shows a message through vim.notify. level is one of "info", "warn",
// "error".
func Notify(n *nvim.Nvim, msg, level string) {
	err := n.ExecLua(`
		local msg, level = ...
		local levels = {info = vim.log.levels.INFO, warn = vim.log.levels.WARN, error = vim.log.levels.ERROR}
		vim.notify('[codetab] ' .. msg, levels[level] or vim.log.levels.INFO)
	`, nil, msg, level)
	if err != nil {
		logger.Error("notify failed: %v", err)
	}
}

// AddHighlights paints query matches into the plugin namespace. Multi-line
// captures are highlighted row by row.
func (b *NvimBuffer) AddHighlights(n *nvim.Nvim, matches []types.QueryMatch) error {
	batch := n.NewBatch()
	batch.ClearBufferNamespace(b.id, b.config.NsID, 0, -1)

	for _, m := range matches {
		for row := m.StartRow; row <= m.EndRow; row++ {
			colStart, colEnd := 0, -1
			if row == m.StartRow {
				colStart = m.StartCol
			}
			if row == m.EndRow {
				colEnd = m.EndCol
			}
			batch.AddBufferHighlight(b.id, b.config.NsID, "CodetabMatch", row, colStart, colEnd, new(int))
		}
	}

	if err := batch.Execute(); err != nil {
		return fmt.Errorf("adding highlights: %w", err)
	}
	return nil
}

// ClearHighlights removes every highlight in the plugin namespace.
func (b *NvimBuffer) ClearHighlights(n *nvim.Nvim) error {
	if err := n.ClearBufferNamespace(b.id, b.config.NsID, 0, -1); err != nil {
		return fmt.Errorf("clearing highlights: %w", err)
	}
	return nil
}
