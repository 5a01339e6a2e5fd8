// Package llm streams interview turns. TurnClient consumes the gateway's SSE
// turn endpoint; ChatClient streams from an OpenAI-compatible upstream.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"intervue/voice/internal/httpc"
	"intervue/voice/internal/log"
)

// Meta is server-signaled session state carried on a turn frame.
type Meta struct {
	Question string `json:"question,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Ended    bool   `json:"ended,omitempty"`
}

// Delta is one frame of the turn stream.
type Delta struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
	Meta  *Meta  `json:"meta,omitempty"`
}

type TurnRequest struct {
	SessionID string `json:"sessionId"`
	LastUser  string `json:"lastUser"`
}

type TurnClient struct {
	URL    string
	Token  string
	Client *http.Client
	Logger *slog.Logger
}

func NewTurnClient(url, token string) *TurnClient {
	return &TurnClient{URL: url, Token: token, Client: httpc.NewStreamingClient()}
}

// Stream posts the user's utterance and calls fn for each delta. Ping
// frames and frames that are not valid JSON are skipped. When the stream
// ends ([DONE] or EOF) without a final frame, fn receives a synthetic
// final so the caller can commit what it has. There is no timeout: the
// stream runs until it ends or ctx is cancelled, in which case ctx.Err()
// is returned and no final is delivered.
func (c *TurnClient) Stream(ctx context.Context, sessionID, lastUser string, fn func(Delta) error) (err error) {
	ctx, span := tracer.Start(ctx, "llm.turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	result := "error"
	defer func() {
		metricTurnStreams.WithLabelValues(result).Inc()
		if err != nil && result == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn failed")
		}
	}()

	body, err := json.Marshal(TurnRequest{SessionID: sessionID, LastUser: lastUser})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.Client
	if client == nil {
		client = httpc.NewStreamingClient()
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			result = "cancelled"
			return ctx.Err()
		}
		return fmt.Errorf("turn request: %w", err)
	}
	defer resp.Body.Close()
	if err := httpc.Check(resp); err != nil {
		return err
	}

	dec := NewDecoder(resp.Body)
	first := true
	for {
		event, data, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				result = "cancelled"
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				result = "eof"
				return fn(Delta{Final: true})
			}
			return fmt.Errorf("read turn stream: %w", err)
		}
		if ctx.Err() != nil {
			result = "cancelled"
			return ctx.Err()
		}
		if event == "ping" {
			metricIgnoredFrames.WithLabelValues("ping").Inc()
			continue
		}
		if string(data) == "[DONE]" {
			result = "eof"
			return fn(Delta{Final: true})
		}
		var d Delta
		if err := json.Unmarshal(data, &d); err != nil {
			metricIgnoredFrames.WithLabelValues("malformed").Inc()
			c.logger().Debug("ignoring malformed turn frame", "error", err)
			continue
		}
		if first && d.Text != "" {
			first = false
			metricFirstDeltaMS.Observe(float64(time.Since(start).Milliseconds()))
		}
		if err := fn(d); err != nil {
			return err
		}
		if d.Final {
			result = "final"
			return nil
		}
	}
}

func (c *TurnClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Component("llm")
}
