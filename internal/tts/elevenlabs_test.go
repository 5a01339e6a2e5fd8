package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" || r.URL.Query().Get("output_format") != "mp3_44100_128" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("xi-api-key") != "xi" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "Hello there." || body["model_id"] != DefaultModelID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	e := NewElevenLabs("xi", "voice-1", "", "mp3_44100_128")
	e.BaseURL = srv.URL
	clip, err := e.Synthesize(context.Background(), "  Hello there. ")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(clip.Audio) != "ID3-audio" || clip.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected clip %+v", clip)
	}

	e.APIKey = "bad"
	_, err = e.Synthesize(context.Background(), "Hello there.")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() || apiErr.Code != "invalid_api_key" || apiErr.Message != "Invalid API key" {
		t.Fatalf("expected structured 401, got %v", err)
	}
}

func TestElevenLabsValidation(t *testing.T) {
	if _, err := NewElevenLabs("", "", "", "").Synthesize(context.Background(), "hi"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if _, err := NewElevenLabs("xi", "", "", "").Synthesize(context.Background(), "  "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}
