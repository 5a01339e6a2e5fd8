// Package health probes the upstream providers the gateway depends on.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"intervue/voice/internal/config"
	"intervue/voice/internal/httpc"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			fmt.Fprintf(&b, " - %s", c.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Checker runs the readiness checks. The base URLs default to the public
// provider APIs.
type Checker struct {
	Cfg           config.Config
	ElevenBaseURL string
	Client        *http.Client
}

func NewChecker(cfg config.Config) *Checker {
	return &Checker{Cfg: cfg, ElevenBaseURL: "https://api.elevenlabs.io", Client: httpc.NewClient(5 * time.Second)}
}

// CheckAll runs every check concurrently and returns the combined status.
func (c *Checker) CheckAll(ctx context.Context) HealthStatus {
	fns := []func(context.Context) CheckResult{c.checkElevenLabs, c.checkLLM, c.checkSTT}
	checks := make([]CheckResult, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func(context.Context) CheckResult) {
			defer wg.Done()
			checks[i] = fn(ctx)
		}(i, fn)
	}
	wg.Wait()

	allOK := true
	for _, ch := range checks {
		if !ch.OK {
			allOK = false
		}
	}
	return HealthStatus{OK: allOK, Checks: checks, CheckedAt: time.Now().UTC()}
}

func (c *Checker) checkElevenLabs(ctx context.Context) CheckResult {
	if c.Cfg.Eleven.APIKey == "" {
		return CheckResult{Name: "elevenlabs", Error: "ELEVENLABS_API_KEY not set"}
	}
	if c.Cfg.Eleven.VoiceID == "" {
		return CheckResult{Name: "elevenlabs", Error: "ELEVENLABS_VOICE_ID not set"}
	}
	// voice lookup works with TTS-only keys that lack user_read
	url := fmt.Sprintf("%s/v1/voices/%s", strings.TrimRight(c.ElevenBaseURL, "/"), c.Cfg.Eleven.VoiceID)
	return c.probe(ctx, "elevenlabs", url, func(r *http.Request) {
		r.Header.Set("xi-api-key", c.Cfg.Eleven.APIKey)
	})
}

func (c *Checker) checkLLM(ctx context.Context) CheckResult {
	if c.Cfg.LLM.APIKey == "" {
		return CheckResult{Name: "llm", Error: "LLM_API_KEY not set"}
	}
	return c.probe(ctx, "llm", strings.TrimRight(c.Cfg.LLM.BaseURL, "/")+"/models", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+c.Cfg.LLM.APIKey)
	})
}

// checkSTT only validates configuration; minting a token per probe would
// burn provider quota.
func (c *Checker) checkSTT(ctx context.Context) CheckResult {
	res := CheckResult{Name: "stt"}
	switch {
	case c.Cfg.STT.APIKey == "":
		res.Error = "STT_API_KEY not set"
	case c.Cfg.STT.Provider != "assemblyai" && c.Cfg.STT.Provider != "deepgram":
		res.Error = fmt.Sprintf("unknown provider %q", c.Cfg.STT.Provider)
	default:
		res.OK = true
	}
	return res
}

func (c *Checker) probe(ctx context.Context, name, url string, auth func(*http.Request)) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	auth(req)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		result.Error = "invalid API key (401)"
	case resp.StatusCode == http.StatusNotFound && name == "elevenlabs":
		result.Error = fmt.Sprintf("voice ID %q not found", c.Cfg.Eleven.VoiceID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		result.OK = true
	}
	return result
}
