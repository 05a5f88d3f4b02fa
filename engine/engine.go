// Package engine owns all session state and serializes it through a single
// event loop. RPC handlers and streaming goroutines never touch state
// directly; they post events, and the loop applies them in order. A
// generation counter ties every stream event to the request that produced
// it, so a superseded request can never write into the buffer.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/neovim/go-client/nvim"
	"golang.org/x/time/rate"

	"codetab/buffer"
	"codetab/client/llm"
	"codetab/config"
	"codetab/logger"
	"codetab/patch"
	"codetab/prompt"
	"codetab/provider"
	"codetab/text"
	"codetab/treesitter"
	"codetab/types"
)

// redrawInterval throttles how often streaming deltas repaint the buffer.
const redrawInterval = 50 * time.Millisecond

const maxLoopRestarts = 3

type Config struct {
	NsID int
}

type Engine struct {
	cfg       Config
	resolver  *config.Resolver
	templates prompt.Templates

	nvim *nvim.Nvim
	buf  *buffer.NvimBuffer

	eventChan chan *event

	// Loop-owned state; only the event loop goroutine reads or writes these.
	generation uint64
	session    *session

	ctx          context.Context
	loopRestarts atomic.Int32
}

func New(cfg Config, resolver *config.Resolver) *Engine {
	return &Engine{
		cfg:       cfg,
		resolver:  resolver,
		templates: prompt.Defaults().Merge(promptOverrides(resolver.Prompts())),
		buf:       buffer.New(buffer.Config{NsID: cfg.NsID}),
		eventChan: make(chan *event, 64),
	}
}

func promptOverrides(p config.Prompts) prompt.Templates {
	return prompt.Templates{
		EditSystem:   p.EditSystem,
		EditUser:     p.EditUser,
		AppendSystem: p.AppendSystem,
		AppendUser:   p.AppendUser,
		QuerySystem:  p.QuerySystem,
		QueryUser:    p.QueryUser,
	}
}

// Start launches the event loop. It returns immediately; the loop runs until
// ctx is canceled.
func (e *Engine) Start(ctx context.Context) {
	e.ctx = ctx
	go e.eventLoop(ctx)
}

// SetNvim registers the RPC handlers the Lua side calls and hands the
// connection to the event loop. The daemon calls this once per connection;
// the loop owns e.nvim, so the handoff goes through an event rather than a
// direct write from the connection goroutine. The send blocks instead of
// using post because an attach must not be dropped under load.
func (e *Engine) SetNvim(n *nvim.Nvim) {
	e.eventChan <- &event{Type: eventAttach, Nvim: n}

	n.RegisterHandler("codetab_prompt", func(instruction string, startLine, endLine int, mode string, diff bool, model string) {
		e.post(&event{Type: eventPrompt, Prompt: &PromptArgs{
			Instruction: instruction,
			StartLine:   startLine,
			EndLine:     endLine,
			Mode:        mode,
			Diff:        diff,
			Model:       model,
		}})
	})
	n.RegisterHandler("codetab_cancel", func() {
		e.post(&event{Type: eventCancel})
	})
	n.RegisterHandler("codetab_query", func(query string) {
		e.post(&event{Type: eventQuery, Query: query})
	})
	n.RegisterHandler("codetab_query_nl", func(request string) {
		e.post(&event{Type: eventQueryNL, Query: request})
	})
	n.RegisterHandler("codetab_query_clear", func() {
		e.post(&event{Type: eventQueryClear})
	})
}

func (e *Engine) post(ev *event) {
	select {
	case e.eventChan <- ev:
	default:
		logger.Warn("event channel full, dropping %s", ev.Type)
	}
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic: %v", r)
			if e.loopRestarts.Add(1) <= maxLoopRestarts {
				logger.Warn("restarting event loop (%d/%d)", e.loopRestarts.Load(), maxLoopRestarts)
				go e.eventLoop(ctx)
			} else {
				logger.Error("event loop restart limit reached, giving up")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.eventChan:
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) handleEvent(ev *event) {
	logger.Debug("event: %s (gen %d, current %d)", ev.Type, ev.Gen, e.generation)

	switch ev.Type {
	case eventAttach:
		e.nvim = ev.Nvim
	case eventPrompt:
		e.startSession(ev.Prompt)
	case eventCancel:
		e.cancelSession(true)
	case eventStreamDelta:
		e.handleDelta(ev)
	case eventStreamDone:
		e.finishSession(ev)
	case eventStreamError:
		e.failSession(ev)
	case eventQuery:
		e.runQuery(ev.Query)
	case eventQueryNL:
		e.generateAndRunQuery(ev.Query)
	case eventQueryClear:
		e.clearQuery()
	}
}

// startSession supersedes any in-flight request and launches a new one.
func (e *Engine) startSession(args *PromptArgs) {
	if e.nvim == nil {
		return
	}
	e.cancelSession(false)

	e.generation++
	gen := e.generation

	if err := e.buf.Sync(e.nvim); err != nil {
		e.notifyError(fmt.Errorf("syncing buffer: %w", err))
		return
	}

	cfg, err := e.resolver.Resolve(args.Model)
	if err != nil {
		e.notifyError(err)
		return
	}

	system, user, err := buildPrompts(e.templates, args, e.buf.Lines, e.buf.Row, e.buf.Filetype)
	if err != nil {
		e.notifyError(err)
		return
	}

	snapshot := e.buf.Snapshot()
	sink := e.buf.Writer(e.nvim)
	limiter := rate.NewLimiter(rate.Every(redrawInterval), 1)

	sess := &session{
		id:        uuid.NewString(),
		gen:       gen,
		mode:      types.PromptMode(args.Mode),
		snapshot:  snapshot,
		diff:      args.Diff,
		startedAt: time.Now(),
	}

	switch sess.mode {
	case types.ModeEdit:
		sess.stream = patch.NewEditStream(sink, snapshot, limiter)
	case types.ModeAppend:
		// Insert below the cursor line; Row is 1-indexed so it doubles as
		// the 0-indexed position after that line.
		sess.insertLine = e.buf.Row
		sess.stream = patch.NewAppendStream(sink, sess.insertLine, limiter)
	}

	if args.Diff {
		ref, err := e.buf.Duplicate(e.nvim)
		if err != nil {
			e.notifyError(err)
			return
		}
		if err := e.buf.OpenDiff(e.nvim, ref); err != nil {
			e.notifyError(err)
			return
		}
		sess.refBuffer = ref
	}

	sctx, cancel := context.WithCancel(e.ctx)
	sess.cancel = cancel
	e.session = sess

	prov, err := provider.New(cfg.Kind)
	if err != nil {
		e.notifyError(err)
		e.session = nil
		cancel()
		return
	}
	client := llm.New(prov, cfg)
	req := &types.PromptRequest{
		System:      system,
		Prompt:      user,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	logger.Info("session %s: %s request via %s (model %s, gen %d)",
		sess.id, sess.mode, prov.Name(), cfg.Model, gen)

	go func() {
		_, err := client.Stream(sctx, req, func(delta string) {
			e.post(&event{Type: eventStreamDelta, Gen: gen, Delta: delta})
		})
		if err != nil {
			e.post(&event{Type: eventStreamError, Gen: gen, Err: err})
			return
		}
		e.post(&event{Type: eventStreamDone, Gen: gen})
	}()
}

// stale reports whether a stream event belongs to a superseded request.
func (e *Engine) stale(ev *event) bool {
	if e.session == nil || ev.Gen != e.generation || ev.Gen != e.session.gen {
		logger.Debug("dropping %s from superseded gen %d", ev.Type, ev.Gen)
		return true
	}
	return false
}

func (e *Engine) handleDelta(ev *event) {
	if e.stale(ev) {
		return
	}
	if err := e.session.stream.Push(ev.Delta); err != nil {
		logger.Error("applying delta: %v", err)
	}
}

func (e *Engine) finishSession(ev *event) {
	if e.stale(ev) {
		return
	}
	sess := e.session
	e.session = nil

	if err := sess.stream.Flush(); err != nil {
		logger.Error("final flush: %v", err)
	}
	sess.cancel()

	msg := e.summarize(sess)
	logger.Info("session %s done in %v: %s", sess.id, time.Since(sess.startedAt).Round(time.Millisecond), msg)
	buffer.Notify(e.nvim, msg, "info")
	// A diff view stays open for review; codetab_cancel tears it down.
}

func (e *Engine) summarize(sess *session) string {
	if es, ok := sess.stream.(*patch.EditStream); ok {
		if res := es.Result(); res != nil {
			summary := text.Summary(sess.snapshot, res.Lines)
			if n := len(res.Dropped); n > 0 {
				summary += fmt.Sprintf(" (%d overlapping edit(s) discarded)", n)
			}
			return summary
		}
		return "no edits in response"
	}
	lines := patch.DecodeAppend(sess.stream.Text())
	if len(lines) == 0 {
		return "no code block in response"
	}
	return fmt.Sprintf("inserted %d line(s)", len(lines))
}

func (e *Engine) failSession(ev *event) {
	if e.stale(ev) {
		return
	}
	sess := e.session
	e.session = nil
	sess.cancel()

	logger.Error("session %s failed: %v", sess.id, ev.Err)
	e.notifyError(ev.Err)
	if sess.refBuffer != 0 {
		if err := e.buf.CloseDiff(e.nvim, sess.refBuffer); err != nil {
			logger.Error("closing diff after failure: %v", err)
		}
	}
}

// cancelSession tears down the in-flight session, restoring the original
// content when the stream had already written into the buffer. Bumping the
// generation makes every late event from the old stream a no-op.
func (e *Engine) cancelSession(notify bool) {
	sess := e.session
	if sess == nil {
		if notify && e.nvim != nil {
			buffer.Notify(e.nvim, "nothing to cancel", "info")
		}
		return
	}
	e.session = nil
	e.generation++
	sess.cancel()

	if e.nvim != nil {
		if err := e.buf.Writer(e.nvim).ReplaceLines(0, -1, sess.snapshot); err != nil {
			logger.Error("restoring buffer after cancel: %v", err)
		}
		if sess.refBuffer != 0 {
			if err := e.buf.CloseDiff(e.nvim, sess.refBuffer); err != nil {
				logger.Error("closing diff after cancel: %v", err)
			}
		}
		if notify {
			buffer.Notify(e.nvim, "request canceled", "info")
		}
	}
	logger.Info("session %s canceled", sess.id)
}

func (e *Engine) runQuery(query string) {
	if e.nvim == nil {
		return
	}
	if err := e.buf.Sync(e.nvim); err != nil {
		e.notifyError(err)
		return
	}
	matches, err := treesitter.Run(e.nvim, query)
	if err != nil {
		e.notifyError(err)
		return
	}
	if err := e.buf.AddHighlights(e.nvim, matches); err != nil {
		e.notifyError(err)
		return
	}
	buffer.Notify(e.nvim, fmt.Sprintf("%d match(es)", len(matches)), "info")
}

// generateAndRunQuery asks the LLM to write the query off-loop, then feeds
// the result back in as a plain query event.
func (e *Engine) generateAndRunQuery(request string) {
	if e.nvim == nil {
		return
	}
	if err := e.buf.Sync(e.nvim); err != nil {
		e.notifyError(err)
		return
	}
	cfg, err := e.resolver.Resolve("")
	if err != nil {
		e.notifyError(err)
		return
	}
	prov, err := provider.New(cfg.Kind)
	if err != nil {
		e.notifyError(err)
		return
	}

	client := llm.New(prov, cfg)
	lang := e.buf.Filetype
	templates := e.templates
	ctx := e.ctx
	n := e.nvim // the loop may reattach before the goroutine finishes

	go func() {
		query, err := treesitter.GenerateQuery(ctx, client, templates, lang, request)
		if err != nil {
			logger.Error("query generation failed: %v", err)
			buffer.Notify(n, err.Error(), "error")
			return
		}
		e.post(&event{Type: eventQuery, Query: query})
	}()
}

func (e *Engine) clearQuery() {
	if e.nvim == nil {
		return
	}
	if err := e.buf.ClearHighlights(e.nvim); err != nil {
		e.notifyError(err)
	}
}

func (e *Engine) notifyError(err error) {
	logger.Error("%v", err)
	if e.nvim != nil {
		buffer.Notify(e.nvim, err.Error(), "error")
	}
}
