package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"intervue/voice/internal/auth"
	"intervue/voice/internal/health"
	"intervue/voice/internal/interview"
	"intervue/voice/internal/llm"
	"intervue/voice/internal/log"
	"intervue/voice/internal/speaker"
	"intervue/voice/internal/store"
	"intervue/voice/internal/stt"
	"intervue/voice/internal/tts"
	"intervue/voice/internal/types"
)

const (
	DefaultPingInterval = 15 * time.Second
	maxBodyBytes        = 64 << 10
)

// Chat streams a model reply; llm.ChatClient satisfies it.
type Chat interface {
	Stream(ctx context.Context, msgs []types.Message, onText func(string) error) (string, error)
}

// Minter issues recognizer tokens; stt.Minter satisfies it.
type Minter interface {
	Mint(ctx context.Context) (stt.Token, error)
}

// Deps are the upstreams behind the gateway.
type Deps struct {
	Engine *interview.Engine
	Signer *auth.Signer
	Chat   Chat
	TTS    speaker.Synthesizer
	STT    Minter
	Health *health.Checker
	Logger *slog.Logger
	// PingInterval is the SSE heartbeat period on the turn stream.
	PingInterval time.Duration
}

type Handlers struct {
	store *store.Store
	Deps
}

func NewHandlers(st *store.Store, d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = log.Component("api")
	}
	if d.PingInterval <= 0 {
		d.PingInterval = DefaultPingInterval
	}
	return &Handlers{store: st, Deps: d}
}

func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req interview.StartRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	sess := &types.Session{
		ID:        uuid.NewString(),
		Role:      strings.TrimSpace(req.Role),
		CreatedAt: time.Now().UTC(),
	}
	h.Engine.Begin(sess)
	if err := h.store.CreateSession(sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.store.AppendEvent(sess.ID, "session_started", map[string]any{"role": sess.Role, "stage": sess.Stage.String()})
	metricSessions.WithLabelValues("started").Inc()

	token, _ := h.Signer.Issue(sess.ID)
	h.Logger.Info("interview started", "session_id", sess.ID, "role", sess.Role)
	writeJSON(w, http.StatusOK, interview.StartResponse{
		SessionID: sess.ID,
		Question:  sess.CurrentQuestion,
		Stage:     sess.Stage,
		Token:     token,
	})
}

func (h *Handlers) HandleEnd(w http.ResponseWriter, r *http.Request) {
	var req interview.EndRequest
	if err := decode(r, &req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId required")
		return
	}
	if !h.ownsSession(w, r, req.SessionID) {
		return
	}
	err := h.store.Update(req.SessionID, func(s *types.Session) error {
		h.Engine.End(s)
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		http.NotFound(w, r)
		return
	}
	h.store.AppendEvent(req.SessionID, "session_ended", nil)
	metricSessions.WithLabelValues("ended").Inc()
	h.Logger.Info("interview ended", "session_id", req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleTurn answers one user utterance as a server-sent event stream:
// text deltas, then a final frame carrying the next question and stage.
func (h *Handlers) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req llm.TurnRequest
	if err := decode(r, &req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId required")
		return
	}
	lastUser := strings.TrimSpace(req.LastUser)
	if lastUser == "" {
		writeError(w, http.StatusBadRequest, "lastUser required")
		return
	}
	if !h.ownsSession(w, r, req.SessionID) {
		return
	}

	var (
		step interview.Step
		msgs []types.Message
	)
	err := h.store.Update(req.SessionID, func(s *types.Session) (err error) {
		step, msgs, err = h.Engine.Answer(s, lastUser)
		return err
	})
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, interview.ErrEnded):
		writeError(w, http.StatusConflict, "interview has ended")
		return
	}
	h.store.AppendEvent(req.SessionID, "user_turn", map[string]any{"text": lastUser})

	sw, err := llm.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	stopPing := h.heartbeat(ctx, sw)
	defer stopPing()

	answer, err := h.Chat.Stream(ctx, msgs, func(text string) error {
		return sw.Data(llm.Delta{Text: text})
	})
	if ctx.Err() != nil {
		metricTurns.WithLabelValues("cancelled").Inc()
		h.Logger.Debug("turn stream cancelled by client", "session_id", req.SessionID)
		return
	}
	result := "ok"
	if err != nil {
		result = "fallback"
		h.Logger.Warn("upstream chat failed", "session_id", req.SessionID, "error", err)
		if strings.TrimSpace(answer) == "" {
			// keep the interview moving with the planned line
			answer = fallbackLine(step)
			_ = sw.Data(llm.Delta{Text: answer})
		}
	}
	metricTurns.WithLabelValues(result).Inc()

	_ = h.store.Update(req.SessionID, func(s *types.Session) error {
		h.Engine.Reply(s, answer)
		return nil
	})
	h.store.AppendEvent(req.SessionID, "ai_turn", map[string]any{"text": answer, "stage": step.Stage.String()})
	if step.Ended {
		h.store.AppendEvent(req.SessionID, "session_ended", map[string]any{"reason": "plan complete"})
		metricSessions.WithLabelValues("completed").Inc()
	}

	_ = sw.Data(llm.Delta{Final: true, Meta: &llm.Meta{
		Question: step.Question,
		Stage:    step.Stage.String(),
		Ended:    step.Ended,
	}})
	_ = sw.Done()
}

func (h *Handlers) heartbeat(ctx context.Context, sw *llm.Writer) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(h.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if sw.Ping() != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

func fallbackLine(step interview.Step) string {
	if step.Ended {
		return "Thanks for your time today. That's the end of our interview."
	}
	return "Thanks. " + step.Question
}

func (h *Handlers) HandleTTS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	clip, err := h.TTS.Synthesize(r.Context(), req.Text)
	if err != nil {
		status := http.StatusBadGateway
		var apiErr *tts.APIError
		switch {
		case errors.Is(err, tts.ErrNoAPIKey), errors.Is(err, tts.ErrNoVoiceID):
			status = http.StatusServiceUnavailable
		case errors.As(err, &apiErr) && apiErr.IsRateLimited():
			status = http.StatusTooManyRequests
		}
		h.Logger.Warn("tts failed", "error", err, "chars", len(req.Text))
		writeError(w, status, err.Error())
		return
	}
	ct := clip.ContentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Audio)
}

func (h *Handlers) HandleSTTToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.STT.Mint(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, stt.ErrNoAPIKey) {
			status = http.StatusServiceUnavailable
		}
		h.Logger.Warn("stt token failed", "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.ownsSession(w, r, id) {
		return
	}
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"stage":      sess.Stage,
		"status":     sess.Status,
		"events":     h.store.ListEvents(id),
	})
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	st := h.Health.CheckAll(ctx)
	status := http.StatusOK
	if !st.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

// ownsSession rejects requests whose token was issued for another session.
func (h *Handlers) ownsSession(w http.ResponseWriter, r *http.Request, id string) bool {
	c, ok := auth.FromContext(r.Context())
	if !ok || c.SessionID != id {
		writeError(w, http.StatusForbidden, auth.ErrTokenSID.Error())
		return false
	}
	return true
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
