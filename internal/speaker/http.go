package speaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"intervue/voice/internal/httpc"
)

// HTTPSynthesizer posts {"text": ...} to a TTS endpoint and reads the raw
// audio body.
type HTTPSynthesizer struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewHTTPSynthesizer(url, token string) *HTTPSynthesizer {
	return &HTTPSynthesizer{URL: url, Token: token, Client: httpc.NewClient(httpc.DefaultTimeout)}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (Clip, error) {
	ctx, span := tracer.Start(ctx, "speaker.synthesize")
	defer span.End()
	span.SetAttributes(attribute.Int("tts.chars", len(text)))

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Clip{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return Clip{}, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Clip{}, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	if err := httpc.Check(resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return Clip{}, err
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("read tts audio: %w", err)
	}
	span.SetAttributes(attribute.Int("tts.bytes", len(audio)))
	return Clip{Audio: audio, ContentType: resp.Header.Get("Content-Type")}, nil
}
