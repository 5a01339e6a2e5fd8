// Package duplex is the per-session turn controller of the voice interview.
//
// It wires recognizer partials and finals, the streaming turn endpoint, the
// phrase aggregator and the playback queue together. User speech over the
// assistant (barge-in) silences playback and cancels the in-flight turn.
// Every asynchronous path carries a generation number so that callbacks
// arriving after a cancellation or teardown are ignored.
package duplex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"intervue/voice/internal/audio"
	"intervue/voice/internal/floor"
	"intervue/voice/internal/llm"
	"intervue/voice/internal/log"
	"intervue/voice/internal/phrase"
	"intervue/voice/internal/stt"
	"intervue/voice/internal/types"
)

var (
	ErrNotIdle   = errors.New("duplex: controller already started")
	ErrNotActive = errors.New("duplex: controller not active")

	errStaleTurn = errors.New("duplex: turn superseded")
)

// Recognizer is an open speech-recognition socket.
type Recognizer interface {
	Send(ctx context.Context, frame []byte) error
	Events() <-chan stt.Event
	Close() error
}

// Dialer opens a recognizer with an ephemeral token.
type Dialer func(ctx context.Context, token string) (Recognizer, error)

// TurnStreamer streams the assistant's answer to one user utterance.
type TurnStreamer interface {
	Stream(ctx context.Context, sessionID, lastUser string, fn func(llm.Delta) error) error
}

// Speaker is the playback queue.
type Speaker interface {
	Push(text string)
	IsSpeaking() bool
	Stop()
}

type Options struct {
	Dial Dialer
	// Token fetches the recognizer token. Optional.
	Token func(ctx context.Context) (string, error)
	// OpenCapture opens the microphone. Nil means no audio capture: finals
	// are fed with InjectFinal only.
	OpenCapture   func() (audio.Source, error)
	CaptureFormat string
	FrameBytes    int

	Turns   TurnStreamer
	Speaker Speaker

	Aggregator      phrase.Options
	BargeInMinChars int
	// SpeakQuestion commits and speaks the opening question on Start.
	SpeakQuestion bool

	Logger  *slog.Logger
	OnEvent func(Event)
}

type Controller struct {
	opts   Options
	log    *slog.Logger
	events *emitter
	agg    *phrase.Aggregator
	floor  *floor.Manager

	mu        sync.Mutex
	state     State
	epoch     uint64
	session   SessionState
	turns     []Turn
	liveUser  string
	liveAI    string
	listening bool

	rec        Recognizer
	mic        audio.Source
	micCancel  context.CancelFunc
	llmCancel  context.CancelFunc
	finalAt    time.Time
	firstDelta bool

	// llmGen identifies the current turn; bumped on every cancel.
	llmGen atomic.Uint64
}

func New(opts Options) *Controller {
	l := opts.Logger
	if l == nil {
		l = log.Component("duplex")
	}
	if opts.FrameBytes <= 0 {
		opts.FrameBytes = 3200
	}
	if opts.CaptureFormat == "" {
		opts.CaptureFormat = audio.FormatS16LE
	}
	return &Controller{
		opts:   opts,
		log:    l,
		events: newEmitter(opts.OnEvent),
		agg:    phrase.New(opts.Aggregator),
		floor:  floor.New(opts.BargeInMinChars),
	}
}

// Start connects the recognizer, opens the microphone and starts streaming.
// On failure nothing stays open and the controller remains idle.
func (c *Controller) Start(ctx context.Context, info SessionState) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.mu.Unlock()

	if c.opts.Dial == nil || c.opts.Turns == nil || c.opts.Speaker == nil {
		return errors.New("duplex: dial, turns and speaker are required")
	}

	var token string
	if c.opts.Token != nil {
		t, err := c.opts.Token(ctx)
		if err != nil {
			c.logf(slog.LevelError, "recognizer token failed", "error", err)
			return fmt.Errorf("duplex: token: %w", err)
		}
		token = t
	}

	rec, err := c.opts.Dial(ctx, token)
	if err != nil {
		c.logf(slog.LevelError, "recognizer connect failed", "error", err)
		return fmt.Errorf("duplex: connect: %w", err)
	}

	var mic audio.Source
	if c.opts.OpenCapture != nil {
		mic, err = c.opts.OpenCapture()
		if err != nil {
			_ = rec.Close()
			c.logf(slog.LevelError, "microphone unavailable", "error", err)
			if !errors.Is(err, audio.ErrMicrophone) {
				err = fmt.Errorf("%w: %v", audio.ErrMicrophone, err)
			}
			return err
		}
	}

	c.mu.Lock()
	if c.state != StateIdle {
		// Stop raced with us
		c.mu.Unlock()
		_ = rec.Close()
		if mic != nil {
			_ = mic.Close()
		}
		return ErrNotIdle
	}
	c.state, _ = c.state.To(StateActive)
	c.epoch++
	epoch := c.epoch
	c.session = info
	c.rec = rec
	c.mic = mic
	c.listening = true
	var micCtx context.Context
	if mic != nil {
		micCtx, c.micCancel = context.WithCancel(context.Background())
	}
	if c.opts.SpeakQuestion && strings.TrimSpace(info.CurrentQuestion) != "" {
		t := newTurn(RoleAI, strings.TrimSpace(info.CurrentQuestion))
		c.turns = append(c.turns, t)
		c.events.send(Event{Type: EventTurn, Turn: &t, Text: t.Text})
		c.opts.Speaker.Push(t.Text)
	}
	c.mu.Unlock()

	go c.readLoop(epoch, rec)
	if mic != nil {
		go c.micLoop(micCtx, epoch, mic, rec)
	}
	c.log.Info("listening", "session_id", info.SessionID, "stage", info.Stage.String())
	c.events.send(Event{Type: EventListening, Stage: info.Stage, Question: info.CurrentQuestion})
	return nil
}

// Stop tears the session down: recognizer, microphone, in-flight turn and
// playback. It is idempotent and leaves no resource handles behind.
func (c *Controller) Stop() {
	c.mu.Lock()
	cleanup := c.teardownLocked("stopped")
	c.mu.Unlock()
	cleanup()
	c.events.close()
}

// InjectFinal feeds a final user transcript as if the recognizer sent it.
func (c *Controller) InjectFinal(text string) error {
	c.mu.Lock()
	epoch, active := c.epoch, c.state == StateActive
	c.mu.Unlock()
	if !active {
		return ErrNotActive
	}
	c.handle(epoch, stt.Event{Kind: stt.KindFinal, Text: text, Type: "injected"})
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		Session:       c.session,
		Turns:         append([]Turn(nil), c.turns...),
		LiveUser:      c.liveUser,
		LiveAI:        c.liveAI,
		Speaking:      c.opts.Speaker != nil && c.opts.Speaker.IsSpeaking(),
		Listening:     c.listening,
		HasRecognizer: c.rec != nil,
		HasCapture:    c.mic != nil,
		HasLLMRequest: c.llmCancel != nil,
	}
}

func (c *Controller) readLoop(epoch uint64, rec Recognizer) {
	for ev := range rec.Events() {
		c.handle(epoch, ev)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != StateActive {
		return
	}
	c.listening = false
	c.logf(slog.LevelWarn, "recognizer socket closed; restart required")
}

func (c *Controller) micLoop(ctx context.Context, epoch uint64, mic audio.Source, rec Recognizer) {
	err := audio.Pump(ctx, mic, c.opts.CaptureFormat, c.opts.FrameBytes, func(frame []byte) error {
		return rec.Send(ctx, frame)
	})
	if err == nil || ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch == c.epoch {
		c.logf(slog.LevelWarn, "audio streaming stopped", "error", err)
	}
}

func (c *Controller) handle(epoch uint64, ev stt.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != StateActive {
		return
	}

	switch ev.Kind {
	case stt.KindPartial:
		c.liveUser = ev.Text
		c.events.send(Event{Type: EventPartial, Text: ev.Text})
		d := c.floor.OnPartial(ev.Text, c.opts.Speaker.IsSpeaking())
		if d.ShouldStop {
			c.cancelAILocked(d.Reason)
			metricBargeIns.Inc()
			c.log.Info("barge-in", "partial_chars", len(ev.Text))
			c.events.send(Event{Type: EventBargeIn, Text: ev.Text})
		}

	case stt.KindFinal:
		c.liveUser = ""
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		t := newTurn(RoleUser, text)
		c.turns = append(c.turns, t)
		c.events.send(Event{Type: EventTurn, Turn: &t, Text: text})
		if d := c.floor.OnFinal(c.opts.Speaker.IsSpeaking()); d.ShouldStop {
			c.cancelAILocked(d.Reason)
		}
		c.startTurnLocked(text)

	case stt.KindError:
		c.logf(slog.LevelWarn, "recognizer error", "message", ev.Text)

	case stt.KindInfo:
		c.log.Debug("recognizer info", "type", ev.Type)
	}
}

// cancelAILocked aborts the in-flight turn, drops any buffered assistant
// text and silences playback. The generation bump and the aggregator reset
// come before Speaker.Stop: Reset waits for a timer flush already holding the
// aggregator lock, so anything that flush pushed is cleared by the Stop.
func (c *Controller) cancelAILocked(reason string) {
	c.llmGen.Add(1)
	if c.llmCancel != nil {
		c.llmCancel()
		c.llmCancel = nil
		metricTurns.WithLabelValues("cancelled").Inc()
	}
	c.floor.OnLLMFinished()
	c.agg.Reset()
	c.liveAI = ""
	c.opts.Speaker.Stop()
	c.log.Debug("assistant cancelled", "reason", reason)
}

func (c *Controller) startTurnLocked(text string) {
	if c.llmCancel != nil {
		c.llmCancel()
	}
	gen := c.llmGen.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	c.llmCancel = cancel
	c.liveAI = ""
	c.agg.Reset()
	c.floor.OnLLMStarted()
	c.finalAt = time.Now()
	c.firstDelta = true

	go c.runTurn(ctx, cancel, gen, c.session.SessionID, text)
}

func (c *Controller) runTurn(ctx context.Context, cancel context.CancelFunc, gen uint64, sessionID, text string) {
	defer cancel()

	// flushes run under the aggregator's lock, possibly from its timer
	// goroutine; they must not take c.mu
	flush := func(p string) {
		if c.llmGen.Load() != gen {
			return
		}
		c.events.send(Event{Type: EventPhrase, Text: p})
		c.opts.Speaker.Push(p)
	}

	var meta *llm.Meta
	err := c.opts.Turns.Stream(ctx, sessionID, text, func(d llm.Delta) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.llmGen.Load() || c.state != StateActive {
			return errStaleTurn
		}
		if d.Meta != nil {
			meta = d.Meta
		}
		if d.Text != "" {
			if c.firstDelta {
				c.firstDelta = false
				metricFirstDeltaMS.Observe(float64(time.Since(c.finalAt).Milliseconds()))
			}
			c.liveAI += d.Text
			c.events.send(Event{Type: EventAIDelta, Text: d.Text})
			c.agg.Push(d.Text, flush)
		}
		if d.Final {
			c.finishTurnLocked(gen, meta, flush)
		}
		return nil
	})
	if err == nil || errors.Is(err, errStaleTurn) || ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.llmGen.Load() || c.state != StateActive {
		return
	}
	metricTurns.WithLabelValues("failed").Inc()
	c.logf(slog.LevelError, "assistant turn failed", "error", err)
	c.llmGen.Add(1)
	c.llmCancel = nil
	c.floor.OnLLMFinished()
	c.agg.Reset()
	c.liveAI = ""
}

func (c *Controller) finishTurnLocked(gen uint64, meta *llm.Meta, flush func(string)) {
	c.agg.Flush(flush)
	text := strings.TrimSpace(c.liveAI)
	c.liveAI = ""
	c.llmCancel = nil
	c.floor.OnLLMFinished()

	if text != "" {
		t := newTurn(RoleAI, text)
		c.turns = append(c.turns, t)
		c.events.send(Event{Type: EventTurn, Turn: &t, Text: text})
		metricTurns.WithLabelValues("committed").Inc()
	} else {
		metricTurns.WithLabelValues("empty").Inc()
	}

	if meta == nil {
		return
	}
	if q := strings.TrimSpace(meta.Question); q != "" {
		c.session.CurrentQuestion = q
	}
	if meta.Stage != "" {
		if st, ok := types.ParseStage(meta.Stage); ok && st != c.session.Stage {
			c.session.Stage = st
			c.events.send(Event{Type: EventStage, Stage: st, Question: c.session.CurrentQuestion})
		} else if !ok {
			c.log.Debug("ignoring unknown stage", "stage", meta.Stage)
		}
	}
	if meta.Ended {
		c.session.Stage = types.StageEnded
		// the wrap-up answer keeps playing; only listening and streaming stop
		cleanup := c.teardownLocked("interview ended", keepSpeaker)
		go cleanup()
	}
}

type teardownOpt int

const keepSpeaker teardownOpt = 1

// teardownLocked marks the controller ended, nils every handle and returns
// the blocking part of the shutdown to run without the lock.
func (c *Controller) teardownLocked(reason string, opts ...teardownOpt) func() {
	stopSpeaker := true
	for _, o := range opts {
		if o == keepSpeaker {
			stopSpeaker = false
		}
	}

	wasActive := c.state == StateActive
	if c.state != StateEnded {
		c.state, _ = c.state.To(StateEnded)
	}
	c.epoch++
	c.llmGen.Add(1)
	llmCancel, rec, mic, micCancel := c.llmCancel, c.rec, c.mic, c.micCancel
	c.llmCancel, c.rec, c.mic, c.micCancel = nil, nil, nil, nil
	c.listening = false
	c.liveUser = ""
	c.liveAI = ""
	c.agg.Reset()
	c.floor.OnLLMFinished()

	if wasActive {
		c.log.Info("session ended", "reason", reason, "session_id", c.session.SessionID, "turns", len(c.turns))
		c.events.send(Event{Type: EventEnded, Text: reason})
	}

	return func() {
		if llmCancel != nil {
			llmCancel()
		}
		if micCancel != nil {
			micCancel()
		}
		if mic != nil {
			_ = mic.Close()
		}
		if rec != nil {
			_ = rec.Close()
		}
		if stopSpeaker && c.opts.Speaker != nil {
			c.opts.Speaker.Stop()
		}
	}
}

// logf writes a diagnostic line to the logger and the event stream. It
// takes no locks.
func (c *Controller) logf(level slog.Level, msg string, args ...any) {
	c.log.Log(context.Background(), level, msg, args...)
	c.events.send(Event{Type: EventLog, Level: level, Text: formatLine(msg, args...)})
}

func formatLine(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
