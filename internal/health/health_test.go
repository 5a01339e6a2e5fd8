package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"intervue/voice/internal/config"
)

func TestCheckAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/voices/v1" && r.Header.Get("xi-api-key") == "el":
			w.Write([]byte(`{}`))
		case r.URL.Path == "/models" && r.Header.Get("Authorization") == "Bearer sk":
			w.Write([]byte(`{"data":[]}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	var cfg config.Config
	cfg.Eleven.APIKey, cfg.Eleven.VoiceID = "el", "v1"
	cfg.LLM.APIKey, cfg.LLM.BaseURL = "sk", srv.URL
	cfg.STT.APIKey, cfg.STT.Provider = "aai", "assemblyai"

	c := &Checker{Cfg: cfg, ElevenBaseURL: srv.URL, Client: srv.Client()}
	st := c.CheckAll(context.Background())
	if !st.OK {
		t.Fatalf("expected healthy, got:\n%s", st)
	}

	c.Cfg.LLM.APIKey = "wrong"
	st = c.CheckAll(context.Background())
	if st.OK {
		t.Fatalf("expected failure with a bad key")
	}
	if !strings.Contains(st.String(), "✗ llm") {
		t.Fatalf("expected llm failure in report:\n%s", st)
	}
}

func TestMissingKeysFailWithoutNetwork(t *testing.T) {
	c := &Checker{}
	st := c.CheckAll(context.Background())
	if st.OK || len(st.Checks) != 3 {
		t.Fatalf("expected three failing checks, got %+v", st)
	}
	for _, ch := range st.Checks {
		if ch.OK || !strings.Contains(ch.Error, "not set") {
			t.Fatalf("unexpected result %+v", ch)
		}
	}
}
