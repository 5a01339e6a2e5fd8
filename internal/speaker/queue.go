// Package speaker turns phrases into sequential audio playback.
//
// A Queue owns the pending phrases and a single pump goroutine that
// synthesizes and plays them one at a time. Stop cancels the in-flight
// request and playback and bumps a generation counter so that late
// completions from the cancelled pump cannot touch the queue again.
package speaker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"intervue/voice/internal/log"
)

const DefaultMaxQueue = 3

// Clip is one synthesized phrase.
type Clip struct {
	Audio       []byte
	ContentType string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// Player plays a clip to completion. Play must return promptly once ctx is
// cancelled or Stop is called.
type Player interface {
	Play(ctx context.Context, clip Clip) error
	Stop()
}

type Options struct {
	// MaxQueue is the depth (queued plus playing) at which Push starts
	// merging into the tail instead of growing the queue.
	MaxQueue int
	Logger   *slog.Logger
	// OnPlay is called from the pump right before a phrase starts playing.
	OnPlay func(text string)
}

type Queue struct {
	synth  Synthesizer
	player Player
	opts   Options
	log    *slog.Logger

	mu       sync.Mutex
	queue    []string
	playing  bool
	inflight bool
	gen      uint64
	cancel   context.CancelFunc
}

func New(synth Synthesizer, player Player, opts Options) *Queue {
	if opts.MaxQueue <= 0 {
		opts.MaxQueue = DefaultMaxQueue
	}
	l := opts.Logger
	if l == nil {
		l = log.Component("speaker")
	}
	return &Queue{synth: synth, player: player, opts: opts, log: l}
}

// Say appends text and starts the pump if nothing is playing.
func (q *Queue) Say(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.appendLocked(text)
}

// MergeTail joins text onto the last queued phrase, or behaves like Say when
// nothing is queued.
func (q *Queue) MergeTail(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mergeLocked(text)
}

// Push enqueues text, tail-merging once the queue is at MaxQueue depth.
func (q *Queue) Push(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	depth := len(q.queue)
	if q.inflight {
		depth++
	}
	if depth >= q.opts.MaxQueue {
		q.mergeLocked(text)
		return
	}
	q.appendLocked(text)
}

func (q *Queue) appendLocked(text string) {
	q.queue = append(q.queue, text)
	q.startLocked()
}

func (q *Queue) mergeLocked(text string) {
	n := len(q.queue)
	if n == 0 {
		q.appendLocked(text)
		return
	}
	q.queue[n-1] += " " + text
	metricMerges.Inc()
}

// IsSpeaking reports whether a phrase is playing or waiting to play.
func (q *Queue) IsSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing || len(q.queue) > 0
}

// Pending returns a copy of the queued (not yet playing) phrases.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queue...)
}

// Stop silences playback and drops everything queued. Safe to call at any time.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.gen++
	dropped := len(q.queue)
	q.queue = nil
	wasPlaying := q.playing
	q.playing = false
	q.inflight = false
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if q.player != nil {
		q.player.Stop()
	}
	if wasPlaying || dropped > 0 {
		metricStops.Inc()
		q.log.Debug("playback stopped", "dropped", dropped)
	}
}

func (q *Queue) startLocked() {
	if q.playing || len(q.queue) == 0 {
		return
	}
	q.playing = true
	q.inflight = true
	text := q.queue[0]
	q.queue = q.queue[1:]
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.pump(ctx, q.gen, text)
}

func (q *Queue) pump(ctx context.Context, gen uint64, text string) {
	for {
		q.playOne(ctx, text)

		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			return
		}
		if len(q.queue) == 0 {
			q.playing = false
			q.inflight = false
			if q.cancel != nil {
				q.cancel()
				q.cancel = nil
			}
			q.mu.Unlock()
			return
		}
		text = q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()
	}
}

// playOne never returns an error: failures are logged and the pump moves on.
func (q *Queue) playOne(ctx context.Context, text string) {
	start := time.Now()
	clip, err := q.synth.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			metricPhrases.WithLabelValues("cancelled").Inc()
			return
		}
		metricPhrases.WithLabelValues("synth_error").Inc()
		q.log.Warn("synthesis failed, skipping phrase", "error", err, "chars", len(text))
		return
	}
	metricSynthMS.Observe(float64(time.Since(start).Milliseconds()))

	if ctx.Err() != nil {
		metricPhrases.WithLabelValues("cancelled").Inc()
		return
	}
	if q.opts.OnPlay != nil {
		q.opts.OnPlay(text)
	}
	if err := q.player.Play(ctx, clip); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			metricPhrases.WithLabelValues("cancelled").Inc()
			return
		}
		metricPhrases.WithLabelValues("play_error").Inc()
		q.log.Warn("playback failed, skipping phrase", "error", err)
		return
	}
	metricPhrases.WithLabelValues("played").Inc()
}
