package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"intervue/voice/internal/httpc"
)

var (
	ErrNoAPIKey   = errors.New("stt: api key required")
	errEmptyToken = errors.New("stt: provider returned an empty token")
)

const (
	assemblyAITokenURL = "https://streaming.assemblyai.com/v3/token"
	deepgramGrantURL   = "https://api.deepgram.com/v1/auth/grant"

	maxAssemblyAITTL = 600
)

// Token is an ephemeral recognizer credential handed to a client.
type Token struct {
	Value     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// Minter exchanges the server's provider key for short-lived client tokens.
type Minter struct {
	Provider string
	APIKey   string
	TTL      time.Duration
	BaseURL  string // overrides the provider token endpoint
	Client   *http.Client
}

func (m *Minter) Mint(ctx context.Context) (Token, error) {
	if m.APIKey == "" {
		return Token{}, ErrNoAPIKey
	}
	provider := strings.ToLower(orDefault(m.Provider, ProviderAssemblyAI))
	ctx, span := tracer.Start(ctx, "stt.mint_token")
	defer span.End()
	span.SetAttributes(attribute.String("stt.provider", provider))

	var (
		tok Token
		err error
	)
	switch provider {
	case ProviderDeepgram:
		tok, err = m.mintDeepgram(ctx)
	case ProviderAssemblyAI:
		tok, err = m.mintAssemblyAI(ctx)
	default:
		err = fmt.Errorf("stt: unknown provider %q", m.Provider)
	}
	if err != nil {
		metricTokens.WithLabelValues(provider, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "mint failed")
		return Token{}, err
	}
	metricTokens.WithLabelValues(provider, "ok").Inc()
	return tok, nil
}

func (m *Minter) ttlSeconds() int {
	s := int(m.TTL / time.Second)
	if s <= 0 {
		s = 60
	}
	return s
}

func (m *Minter) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return httpc.NewClient(10 * time.Second)
}

func (m *Minter) mintAssemblyAI(ctx context.Context) (Token, error) {
	ttl := m.ttlSeconds()
	if ttl > maxAssemblyAITTL {
		ttl = maxAssemblyAITTL
	}
	u, err := url.Parse(orDefault(m.BaseURL, assemblyAITokenURL))
	if err != nil {
		return Token{}, err
	}
	q := u.Query()
	q.Set("expires_in_seconds", strconv.Itoa(ttl))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Authorization", m.APIKey)

	var body struct {
		Token string `json:"token"`
	}
	if err := m.do(req, &body); err != nil {
		return Token{}, err
	}
	if body.Token == "" {
		return Token{}, errEmptyToken
	}
	return Token{Value: body.Token, ExpiresIn: ttl}, nil
}

func (m *Minter) mintDeepgram(ctx context.Context) (Token, error) {
	payload, _ := json.Marshal(map[string]int{"ttl_seconds": m.ttlSeconds()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, orDefault(m.BaseURL, deepgramGrantURL), bytes.NewReader(payload))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Authorization", "Token "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := m.do(req, &body); err != nil {
		return Token{}, err
	}
	if body.AccessToken == "" {
		return Token{}, errEmptyToken
	}
	exp := int(body.ExpiresIn)
	if exp <= 0 {
		exp = m.ttlSeconds()
	}
	return Token{Value: body.AccessToken, ExpiresIn: exp}, nil
}

func (m *Minter) do(req *http.Request, out any) error {
	resp, err := m.client().Do(req)
	if err != nil {
		return fmt.Errorf("stt: token request: %w", err)
	}
	defer resp.Body.Close()
	if err := httpc.Check(resp); err != nil {
		return fmt.Errorf("stt: token request: %w", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stt: decode token: %w", err)
	}
	return nil
}
