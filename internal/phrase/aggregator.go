// Package phrase turns a stream of text fragments into speakable phrases.
//
// An Aggregator buffers fragments coming from speech recognition partials or
// LLM token deltas and emits a phrase as soon as the buffer ends a sentence or
// a clause, reaches a word cap, or sits idle for too long.
package phrase

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// JoinMode controls how pushed chunks are appended to the buffer.
type JoinMode int

const (
	// JoinWords trims every chunk and joins chunks with a single space. The
	// chunk boundary itself counts as trailing whitespace.
	JoinWords JoinMode = iota
	// JoinTokens concatenates chunks verbatim, for token streams that carry
	// their own spacing.
	JoinTokens
)

// ParseJoinMode maps "words" / "tokens" onto a JoinMode.
func ParseJoinMode(s string) JoinMode {
	if strings.EqualFold(strings.TrimSpace(s), "tokens") {
		return JoinTokens
	}
	return JoinWords
}

const (
	DefaultIdle     = 280 * time.Millisecond
	DefaultMaxWords = 18
)

var (
	// terminal punctuation, optional closing quotes/brackets, then whitespace
	sentenceEnd = regexp.MustCompile(`[.!?…]["'”’)\]]*\s+$`)
	clauseEnd   = regexp.MustCompile(`[,;:]\s+$`)
)

type Options struct {
	// Idle is how long a non-terminal buffer may wait before being flushed.
	Idle time.Duration
	// MaxWords flushes the buffer once it holds this many words.
	MaxWords int
	Join     JoinMode
	// GuardAbbreviations keeps "Dr. " or "J. " from ending a phrase.
	GuardAbbreviations bool
}

// Aggregator buffers fragments and decides when a phrase is complete.
// onFlush callbacks run with the aggregator locked and must not call back
// into the same Aggregator.
type Aggregator struct {
	opts Options

	mu    sync.Mutex
	buf   string
	timer *time.Timer
	// gen invalidates timers that fire after a flush or reset
	gen uint64
}

func New(opts Options) *Aggregator {
	if opts.Idle <= 0 {
		opts.Idle = DefaultIdle
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	return &Aggregator{opts: opts}
}

// Push appends chunk and flushes immediately when a boundary is reached,
// otherwise (re)arms the idle timer. Empty chunks are ignored.
func (a *Aggregator) Push(chunk string, onFlush func(string)) {
	if chunk == "" {
		return
	}
	if a.opts.Join == JoinWords {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			return
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.opts.Join == JoinTokens:
		a.buf += chunk
	case a.buf == "":
		a.buf = chunk
	default:
		a.buf += " " + chunk
	}

	if reason := a.boundaryLocked(); reason != "" {
		a.emitLocked(reason, onFlush)
		return
	}
	if strings.TrimSpace(a.buf) == "" {
		return
	}
	a.armLocked(onFlush)
}

// Flush cancels the idle timer and emits whatever is buffered.
func (a *Aggregator) Flush(onFlush func(string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emitLocked("explicit", onFlush)
}

// Reset drops the buffer and the pending timer without emitting.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.buf = ""
	a.stopTimerLocked()
	a.mu.Unlock()
}

// Pending returns the buffered text.
func (a *Aggregator) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf
}

func (a *Aggregator) boundaryLocked() string {
	tail := a.buf
	if a.opts.Join == JoinWords {
		tail += " "
	}
	if sentenceEnd.MatchString(tail) && !(a.opts.GuardAbbreviations && endsWithAbbreviation(tail)) {
		return "sentence"
	}
	if clauseEnd.MatchString(tail) {
		return "clause"
	}
	if len(strings.Fields(a.buf)) >= a.opts.MaxWords {
		return "words"
	}
	return ""
}

func (a *Aggregator) armLocked(onFlush func(string)) {
	a.stopTimerLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.opts.Idle, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if gen != a.gen {
			return
		}
		a.emitLocked("idle", onFlush)
	})
}

func (a *Aggregator) stopTimerLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Aggregator) emitLocked(reason string, onFlush func(string)) {
	a.stopTimerLocked()
	text := strings.TrimSpace(a.buf)
	a.buf = ""
	if text == "" {
		return
	}
	metricFlushes.WithLabelValues(reason).Inc()
	if onFlush != nil {
		onFlush(text)
	}
}

var abbreviations = map[string]bool{
	"dr.": true, "mr.": true, "mrs.": true, "ms.": true, "jr.": true, "sr.": true,
	"prof.": true, "st.": true, "vs.": true, "etc.": true, "inc.": true, "ltd.": true,
	"co.": true, "corp.": true, "e.g.": true, "i.e.": true, "a.m.": true, "p.m.": true,
	"u.s.": true, "u.k.": true, "no.": true, "approx.": true,
}

// endsWithAbbreviation reports whether the last word is a known abbreviation
// or a single-letter initial such as "J.".
func endsWithAbbreviation(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	word := fields[len(fields)-1]
	if !strings.HasSuffix(word, ".") {
		return false
	}
	if abbreviations[strings.ToLower(word)] {
		return true
	}
	return len(word) == 2 && word[0] >= 'A' && word[0] <= 'Z'
}
