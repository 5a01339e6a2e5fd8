package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"intervue/voice/internal/httpc"
	"intervue/voice/internal/types"
)

var ErrNoAPIKey = errors.New("llm: api key required")

// ChatClient streams chat completions from an OpenAI-compatible API.
type ChatClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
}

// Stream sends the conversation and calls onText for every content delta.
// It returns the concatenated answer.
func (c *ChatClient) Stream(ctx context.Context, msgs []types.Message, onText func(string) error) (string, error) {
	if c.APIKey == "" {
		return "", ErrNoAPIKey
	}
	ctx, span := tracer.Start(ctx, "llm.chat_completion")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.Model), attribute.Int("llm.messages", len(msgs)))

	body := map[string]any{
		"model":    c.Model,
		"stream":   true,
		"messages": msgs,
	}
	if c.Temperature > 0 {
		body["temperature"] = c.Temperature
	}
	if c.MaxTokens > 0 {
		body["max_tokens"] = c.MaxTokens
	}
	reqBytes, _ := json.Marshal(body)

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	client := c.Client
	if client == nil {
		client = httpc.NewStreamingClient()
	}
	startTime := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metricUpstream.WithLabelValues("transport").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", fmt.Errorf("llm: chat request: %w", err)
	}
	defer resp.Body.Close()
	metricUpstream.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if err := httpc.Check(resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return "", fmt.Errorf("llm: chat request: %w", err)
	}

	var out strings.Builder
	firstToken := true
	dec := NewDecoder(resp.Body)
	for {
		if ctx.Err() != nil {
			return out.String(), ctx.Err()
		}
		_, data, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return out.String(), fmt.Errorf("llm: read stream: %w", err)
		}
		if string(data) == "[DONE]" {
			break
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if firstToken {
			firstToken = false
			metricUpstreamTTFTMS.Observe(float64(time.Since(startTime).Milliseconds()))
		}
		out.WriteString(content)
		if onText != nil {
			if err := onText(content); err != nil {
				return out.String(), err
			}
		}
	}
	span.SetAttributes(attribute.Int("llm.answer_chars", out.Len()))
	return out.String(), nil
}
