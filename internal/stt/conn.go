// Package stt is the streaming speech-recognition client. A Conn sends raw
// PCM16 frames over a websocket and delivers normalized partial/final
// transcript events; provider dialects cover AssemblyAI and Deepgram.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"nhooyr.io/websocket"

	"intervue/voice/internal/log"
)

const (
	ProviderAssemblyAI = "assemblyai"
	ProviderDeepgram   = "deepgram"

	assemblyAIURL = "wss://streaming.assemblyai.com/v3/ws"
	deepgramURL   = "wss://api.deepgram.com/v1/listen"
)

var ErrClosed = errors.New("stt: connection closed")

type Config struct {
	Provider   string
	URL        string // overrides the provider default
	SampleRate int
	// Token is an ephemeral client token; APIKey a server key. One is enough.
	Token  string
	APIKey string

	Model       string // deepgram only
	Language    string // deepgram only
	FormatTurns bool   // assemblyai only

	Logger *slog.Logger
}

// Endpoint builds the websocket URL with the audio format in the query.
func (c Config) Endpoint() (string, error) {
	rate := c.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	q := url.Values{}
	base := c.URL
	switch strings.ToLower(c.Provider) {
	case ProviderDeepgram:
		if base == "" {
			base = deepgramURL
		}
		q.Set("model", orDefault(c.Model, "nova-2"))
		q.Set("language", orDefault(c.Language, "en-US"))
		q.Set("smart_format", "true")
		q.Set("interim_results", "true")
		q.Set("utterance_end_ms", "1500")
		q.Set("vad_events", "true")
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(rate))
		q.Set("channels", "1")
	case "", ProviderAssemblyAI:
		if base == "" {
			base = assemblyAIURL
		}
		q.Set("sample_rate", strconv.Itoa(rate))
		q.Set("encoding", "pcm_s16le")
		if c.FormatTurns {
			q.Set("format_turns", "true")
		}
		if c.Token != "" {
			q.Set("token", c.Token)
		}
	default:
		return "", fmt.Errorf("stt: unknown provider %q", c.Provider)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("stt: bad url: %w", err)
	}
	existing := u.Query()
	for k, vs := range q {
		if existing.Get(k) == "" {
			existing[k] = vs
		}
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

func (c Config) header() http.Header {
	h := make(http.Header)
	switch strings.ToLower(c.Provider) {
	case ProviderDeepgram:
		if c.Token != "" {
			h.Set("Authorization", "Bearer "+c.Token)
		} else if c.APIKey != "" {
			h.Set("Authorization", "Token "+c.APIKey)
		}
	default:
		if c.Token == "" && c.APIKey != "" {
			h.Set("Authorization", c.APIKey)
		}
	}
	return h
}

func (c Config) dialect() dialect {
	if strings.EqualFold(c.Provider, ProviderDeepgram) {
		return &deepgram{}
	}
	return &assemblyAI{formatted: c.FormatTurns}
}

// Conn is one recognizer socket. Events is closed when the socket ends, for
// whatever reason; there is no reconnect.
type Conn struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
	d      dialect

	events chan Event
	opened time.Time

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	closing   bool
}

// Dial opens the recognizer socket and starts the reader goroutine. ctx only
// bounds the handshake.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	l := cfg.Logger
	if l == nil {
		l = log.Component("stt")
	}

	ctx, span := tracer.Start(ctx, "stt.dial")
	defer span.End()
	span.SetAttributes(attribute.String("stt.provider", orDefault(cfg.Provider, ProviderAssemblyAI)))

	dctx, dcancel := context.WithTimeout(ctx, 10*time.Second)
	defer dcancel()
	start := time.Now()
	ws, _, err := websocket.Dial(dctx, endpoint, &websocket.DialOptions{HTTPHeader: cfg.header()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, fmt.Errorf("stt: dial: %w", err)
	}
	ms := time.Since(start).Milliseconds()
	metricConnectMS.Observe(float64(ms))
	l.Info("recognizer connected", "provider", orDefault(cfg.Provider, ProviderAssemblyAI), "connect_ms", ms)

	rctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:     ws,
		ctx:    rctx,
		cancel: cancel,
		log:    l,
		d:      cfg.dialect(),
		events: make(chan Event, 64),
		opened: time.Now(),
	}
	gaugeSessions.Inc()
	go c.readLoop()
	return c, nil
}

func (c *Conn) Events() <-chan Event { return c.events }

// Err is the reason the socket ended, nil after a clean Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes one binary PCM frame.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.ws.Write(wctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("stt: write: %w", err)
	}
	metricAudioBytes.Add(float64(len(frame)))
	metricFrames.Inc()
	return nil
}

// Close sends the provider's terminate message and closes the socket. It is
// safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()

		wctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = c.ws.Write(wctx, websocket.MessageText, c.d.terminate())
		cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
	})
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.events)
	defer gaugeSessions.Dec()
	defer c.cancel()

	seenPartial := false
	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.finish(err)
			return
		}
		if typ != websocket.MessageText || len(data) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			metricMalformed.Inc()
			c.log.Debug("ignoring malformed frame", "error", err)
			continue
		}
		for _, ev := range c.d.parse(m) {
			if ev.Kind == KindPartial && !seenPartial {
				seenPartial = true
				metricTTFTMS.Observe(float64(time.Since(c.opened).Milliseconds()))
			}
			if !c.deliver(ev) {
				return
			}
		}
	}
}

// deliver blocks for finals and errors, drops partials when the consumer
// is behind. It reports false once the connection is shutting down.
func (c *Conn) deliver(ev Event) bool {
	metricEvents.WithLabelValues(ev.Kind.String()).Inc()
	if ev.Kind == KindPartial {
		select {
		case c.events <- ev:
		default:
			metricEventDrops.Inc()
		}
		return true
	}
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Conn) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := websocket.CloseStatus(err)
	if c.closing || status == websocket.StatusNormalClosure {
		c.log.Info("recognizer closed", "status", status)
		return
	}
	c.err = err
	c.log.Warn("recognizer socket ended", "error", err)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
