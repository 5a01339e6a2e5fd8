package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	for _, k := range []string{"PORT", "LOG_LEVEL", "DUPLEX_PROFILE", "DUPLEX_IDLE_MS", "DUPLEX_MAX_WORDS", "DUPLEX_MAX_QUEUE", "DUPLEX_JOIN_MODE", "STT_PROVIDER", "CONFIG_FILE"} {
		os.Unsetenv(k)
	}

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Duplex.Profile != ProfileDuplex || c.Duplex.IdleMs != 240 || c.Duplex.MaxWords != 14 {
		t.Fatalf("expected duplex preset 240ms/14 words, got %s %d/%d", c.Duplex.Profile, c.Duplex.IdleMs, c.Duplex.MaxWords)
	}
	if c.Duplex.MaxQueue != 3 {
		t.Fatalf("expected default queue depth 3, got %d", c.Duplex.MaxQueue)
	}
	// the gateway relays raw token deltas
	if c.Duplex.JoinMode != "tokens" {
		t.Fatalf("expected default join mode tokens, got %q", c.Duplex.JoinMode)
	}
	if c.STT.Provider != "assemblyai" {
		t.Fatalf("expected default stt provider assemblyai, got %q", c.STT.Provider)
	}
	if got := c.FrameBytes(); got != 3200 {
		t.Fatalf("expected 3200 byte frames for 100ms at 16kHz, got %d", got)
	}
}

func TestLoadLivePresetWithOverride(t *testing.T) {
	t.Setenv("DUPLEX_PROFILE", "live")
	t.Setenv("DUPLEX_MAX_WORDS", "18")
	os.Unsetenv("DUPLEX_IDLE_MS")

	c := Load()

	if c.Duplex.IdleMs != 320 {
		t.Fatalf("expected live preset idle 320ms, got %d", c.Duplex.IdleMs)
	}
	if c.Duplex.MaxWords != 18 {
		t.Fatalf("expected explicit max words override 18, got %d", c.Duplex.MaxWords)
	}
}

func TestLoadUnknownProfileFallsBack(t *testing.T) {
	t.Setenv("DUPLEX_PROFILE", "karaoke")

	c := Load()

	if c.Duplex.Profile != ProfileDuplex || c.Duplex.IdleMs != 240 {
		t.Fatalf("expected fallback to duplex preset, got %s %d", c.Duplex.Profile, c.Duplex.IdleMs)
	}
}
