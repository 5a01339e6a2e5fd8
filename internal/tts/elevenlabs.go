// Package tts synthesizes speech with ElevenLabs. It backs the gateway's
// /api/tts endpoint and can be handed to a speaker.Queue directly.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"intervue/voice/internal/httpc"
	"intervue/voice/internal/speaker"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	// DefaultVoiceID is the stock "Rachel" voice.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_turbo_v2_5"
)

var tracer = otel.Tracer("intervue/voice/internal/tts")

type ElevenLabs struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string // e.g. mp3_44100_128
	BaseURL      string
	Client       *http.Client
}

func NewElevenLabs(apiKey, voiceID, modelID, outputFormat string) *ElevenLabs {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &ElevenLabs{
		APIKey:       apiKey,
		VoiceID:      voiceID,
		ModelID:      modelID,
		OutputFormat: outputFormat,
		BaseURL:      elevenLabsBaseURL,
		Client:       httpc.NewClient(httpc.DefaultTimeout),
	}
}

// Synthesize returns the complete audio for text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (clip speaker.Clip, err error) {
	text = strings.TrimSpace(text)
	switch {
	case e.APIKey == "":
		return clip, ErrNoAPIKey
	case e.VoiceID == "":
		return clip, ErrNoVoiceID
	case text == "":
		return clip, ErrEmptyText
	}

	ctx, span := tracer.Start(ctx, "tts.elevenlabs")
	defer span.End()
	span.SetAttributes(attribute.Int("tts.chars", len(text)), attribute.String("tts.model", e.ModelID))

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
		}
		ttsSynthesisTotal.WithLabelValues(status).Inc()
		ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	}()

	u := fmt.Sprintf("%s/text-to-speech/%s", strings.TrimRight(e.BaseURL, "/"), url.PathEscape(e.VoiceID))
	if e.OutputFormat != "" {
		u += "?output_format=" + url.QueryEscape(e.OutputFormat)
	}
	body, _ := json.Marshal(map[string]any{"text": text, "model_id": e.ModelID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return clip, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("accept", "audio/mpeg")
	req.Header.Set("content-type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return clip, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()
	ttsElevenLabsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))

	if resp.StatusCode/100 != 2 {
		return clip, parseError(resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return clip, fmt.Errorf("tts: read audio: %w", err)
	}
	ttsAudioBytes.Add(float64(len(audio)))

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return speaker.Clip{Audio: audio, ContentType: ct}, nil
}

// parseError understands {"detail":{"status":..., "message":...}} and
// {"detail":"..."} bodies.
func parseError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}

	var structured struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if json.Unmarshal(b, &structured) == nil && structured.Detail.Message != "" {
		apiErr.Code = structured.Detail.Status
		apiErr.Message = structured.Detail.Message
		return apiErr
	}
	var plain struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &plain) == nil && plain.Detail != "" {
		apiErr.Message = plain.Detail
	}
	return apiErr
}
