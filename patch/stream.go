package patch

import (
	"strings"

	"golang.org/x/time/rate"

	"codetab/logger"
)

// Sink receives decoded lines as they firm up during streaming. Ranges are
// 0-indexed and half-open; end == -1 means the end of the buffer. This is
// nvim's SetBufferLines contract, but tests substitute an in-memory fake.
type Sink interface {
	ReplaceLines(start, end int, lines []string) error
}

// Stream is the per-delta accumulation contract shared by both modes.
// Push folds one delta into the accumulated response and may redraw; Flush
// forces a final redraw from the complete response.
type Stream interface {
	Push(delta string) error
	Flush() error
	Text() string
}

// AppendStream accumulates a streamed response and maintains a growing block
// of lines below a fixed insertion point. Each delta re-decodes the entire
// accumulated text and replaces the whole region written so far, so a decode
// that comes back shorter still clears the stale tail.
type AppendStream struct {
	sink       Sink
	insertLine int // 0-indexed first line of the written region
	full       strings.Builder
	written    int // lines currently occupying the region
	redraw     *rate.Limiter
}

// NewAppendStream writes decoded lines starting at insertLine (0-indexed).
// limiter throttles intermediate redraws; pass rate.NewLimiter(rate.Inf, 0)
// to redraw on every delta.
func NewAppendStream(sink Sink, insertLine int, limiter *rate.Limiter) *AppendStream {
	return &AppendStream{sink: sink, insertLine: insertLine, redraw: limiter}
}

func (s *AppendStream) Push(delta string) error {
	s.full.WriteString(delta)
	if !s.redraw.Allow() {
		return nil
	}
	return s.write()
}

func (s *AppendStream) Flush() error {
	return s.write()
}

func (s *AppendStream) Text() string { return s.full.String() }

func (s *AppendStream) write() error {
	lines := DecodeAppend(s.full.String())
	if len(lines) == 0 && s.written == 0 {
		return nil
	}
	err := s.sink.ReplaceLines(s.insertLine, s.insertLine+s.written, lines)
	if err != nil {
		return err
	}
	s.written = len(lines)
	return nil
}

// EditStream accumulates a streamed response of tagged edit instructions and
// re-applies the full decoded set against a frozen snapshot on each redraw,
// replacing the whole buffer in one call. Working from the snapshot keeps
// line numbers in the response meaningful no matter how many times edits are
// re-applied.
type EditStream struct {
	sink     Sink
	snapshot []string
	full     strings.Builder
	redraw   *rate.Limiter
	applied  bool
	lastRes  *Result
}

func NewEditStream(sink Sink, snapshot []string, limiter *rate.Limiter) *EditStream {
	frozen := make([]string, len(snapshot))
	copy(frozen, snapshot)
	return &EditStream{sink: sink, snapshot: frozen, redraw: limiter}
}

func (s *EditStream) Push(delta string) error {
	s.full.WriteString(delta)
	if !s.redraw.Allow() {
		return nil
	}
	return s.apply()
}

func (s *EditStream) Flush() error {
	return s.apply()
}

func (s *EditStream) Text() string { return s.full.String() }

// Result returns the outcome of the most recent apply, nil before the first.
func (s *EditStream) Result() *Result { return s.lastRes }

func (s *EditStream) apply() error {
	edits := DecodeEdits(s.full.String())
	if len(edits) == 0 {
		// Nothing decodable yet. If we never wrote, leave the buffer alone.
		if !s.applied {
			return nil
		}
	}
	res := Apply(edits, s.snapshot)
	if len(res.Dropped) > 0 {
		logger.Warn("patch: %d overlapping edit(s) discarded", len(res.Dropped))
	}
	s.lastRes = res
	s.applied = true
	return s.sink.ReplaceLines(0, -1, res.Lines)
}
