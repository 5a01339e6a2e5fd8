package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"intervue/voice/internal/httpc"
	"intervue/voice/internal/stt"
	"intervue/voice/internal/types"
)

// Gateway paths, relative to the API base.
const (
	PathStart    = "/api/interview/start"
	PathEnd      = "/api/interview/end"
	PathTurn     = "/api/interview/turn"
	PathTTS      = "/api/tts"
	PathSTTToken = "/api/stt/token"
)

type StartRequest struct {
	Role string `json:"role,omitempty"`
}

type StartResponse struct {
	SessionID string      `json:"sessionId"`
	Question  string      `json:"question"`
	Stage     types.Stage `json:"stage"`
	Token     string      `json:"token"`
}

type EndRequest struct {
	SessionID string `json:"sessionId"`
}

// Client talks to the interview gateway. Token is set by Start and sent as
// a bearer token on every later call.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpc.NewClient(httpc.DefaultTimeout)}
}

func (c *Client) URL(path string) string { return c.BaseURL + path }

func (c *Client) Start(ctx context.Context, role string) (StartResponse, error) {
	var out StartResponse
	if err := c.post(ctx, PathStart, StartRequest{Role: role}, &out); err != nil {
		return StartResponse{}, fmt.Errorf("interview: start: %w", err)
	}
	if out.SessionID == "" {
		return StartResponse{}, fmt.Errorf("interview: start: empty session id")
	}
	c.Token = out.Token
	return out, nil
}

func (c *Client) End(ctx context.Context, sessionID string) error {
	if err := c.post(ctx, PathEnd, EndRequest{SessionID: sessionID}, nil); err != nil {
		return fmt.Errorf("interview: end: %w", err)
	}
	return nil
}

// STTToken fetches an ephemeral recognizer token.
func (c *Client) STTToken(ctx context.Context) (stt.Token, error) {
	var out stt.Token
	if err := c.post(ctx, PathSTTToken, struct{}{}, &out); err != nil {
		return stt.Token{}, fmt.Errorf("interview: stt token: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := httpc.Check(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
