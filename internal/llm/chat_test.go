package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"intervue/voice/internal/types"
)

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Model    string          `json:"model"`
			Stream   bool            `json:"stream"`
			Messages []types.Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream || body.Model != "gpt-test" || len(body.Messages) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, tok := range []string{"Great", " answer", "."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := &ChatClient{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test"}
	var deltas []string
	out, err := c.Stream(context.Background(), []types.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, func(s string) error {
		deltas = append(deltas, s)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out != "Great answer." || len(deltas) != 3 {
		t.Fatalf("unexpected output %q %v", out, deltas)
	}
}

func TestChatStreamRequiresKey(t *testing.T) {
	if _, err := (&ChatClient{}).Stream(context.Background(), nil, nil); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}
