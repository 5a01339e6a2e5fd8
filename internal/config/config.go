package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"intervue/voice/internal/log"
)

// Profile presets for the phrase aggregator. "live" favours longer phrases,
// "duplex" favours latency.
const (
	ProfileLive   = "live"
	ProfileDuplex = "duplex"
)

type Config struct {
	Server struct {
		Port      string
		LogLevel  string
		LogFormat string
	}
	Duplex struct {
		Profile         string
		APIBase         string
		IdleMs          int
		MaxWords        int
		JoinMode        string
		MaxQueue        int
		BargeInMinChars int
		FrameMs         int
		SampleRate      int
	}
	STT struct {
		Provider string
		URL      string
		APIKey   string
		TokenTTL int
		Model    string
		Language string
	}
	LLM struct {
		BaseURL      string
		APIKey       string
		Model        string
		SystemPrompt string
		Temperature  float64
	}
	Eleven struct {
		APIKey       string
		VoiceID      string
		ModelID      string
		OutputFormat string
	}
	Auth struct {
		TokenSecret   string
		TokenSkewSecs int
		TokenTTLMin   int
	}
	Audio struct {
		CaptureCmd    string
		CaptureFormat string
		PlaybackCmd   string
	}
	Interview struct {
		Role          string
		WarmupCount   int
		CoreCount     int
		FollowupCount int
	}
}

type preset struct {
	idleMs   int
	maxWords int
}

var presets = map[string]preset{
	ProfileLive:   {idleMs: 320, maxWords: 22},
	ProfileDuplex: {idleMs: 240, maxWords: 14},
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")

	v.SetDefault("duplex.profile", ProfileDuplex)
	v.SetDefault("duplex.api_base", "http://localhost:8080")
	v.SetDefault("duplex.join_mode", "tokens")
	v.SetDefault("duplex.max_queue", 3)
	v.SetDefault("duplex.barge_in_min_chars", 1)
	v.SetDefault("duplex.frame_ms", 100)
	v.SetDefault("duplex.sample_rate", 16000)

	v.SetDefault("stt.provider", "assemblyai")
	v.SetDefault("stt.token_ttl", 60)
	v.SetDefault("stt.model", "nova-2")
	v.SetDefault("stt.language", "en-US")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.6)

	v.SetDefault("elevenlabs.model_id", "eleven_turbo_v2_5")
	v.SetDefault("elevenlabs.output_format", "mp3_44100_128")

	v.SetDefault("auth.token_skew_secs", 30)
	v.SetDefault("auth.token_ttl_min", 120)

	v.SetDefault("audio.capture_format", "s16le")

	v.SetDefault("interview.role", "software engineer")
	v.SetDefault("interview.warmup_count", 1)
	v.SetDefault("interview.core_count", 3)
	v.SetDefault("interview.followup_count", 1)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_format", "LOG_FORMAT")

	v.BindEnv("duplex.profile", "DUPLEX_PROFILE")
	v.BindEnv("duplex.api_base", "DUPLEX_API_BASE")
	v.BindEnv("duplex.idle_ms", "DUPLEX_IDLE_MS")
	v.BindEnv("duplex.max_words", "DUPLEX_MAX_WORDS")
	v.BindEnv("duplex.join_mode", "DUPLEX_JOIN_MODE")
	v.BindEnv("duplex.max_queue", "DUPLEX_MAX_QUEUE")
	v.BindEnv("duplex.barge_in_min_chars", "DUPLEX_BARGE_IN_MIN_CHARS")
	v.BindEnv("duplex.frame_ms", "DUPLEX_FRAME_MS")
	v.BindEnv("duplex.sample_rate", "DUPLEX_SAMPLE_RATE")

	v.BindEnv("stt.provider", "STT_PROVIDER")
	v.BindEnv("stt.url", "STT_WS_URL")
	v.BindEnv("stt.api_key", "STT_API_KEY", "ASSEMBLYAI_API_KEY", "DEEPGRAM_API_KEY")
	v.BindEnv("stt.token_ttl", "STT_TOKEN_TTL_S")
	v.BindEnv("stt.model", "DEEPGRAM_MODEL")
	v.BindEnv("stt.language", "DEEPGRAM_LANGUAGE")

	v.BindEnv("llm.base_url", "LLM_BASE_URL")
	v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.system_prompt", "LLM_SYSTEM_PROMPT")
	v.BindEnv("llm.temperature", "LLM_TEMPERATURE")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")
	v.BindEnv("elevenlabs.output_format", "ELEVENLABS_OUTPUT_FORMAT")

	v.BindEnv("auth.token_secret", "AUTH_TOKEN_SECRET")
	v.BindEnv("auth.token_skew_secs", "AUTH_TOKEN_SKEW_SECS")
	v.BindEnv("auth.token_ttl_min", "AUTH_TOKEN_TTL_MIN")

	v.BindEnv("audio.capture_cmd", "AUDIO_CAPTURE_CMD")
	v.BindEnv("audio.capture_format", "AUDIO_CAPTURE_FORMAT")
	v.BindEnv("audio.playback_cmd", "AUDIO_PLAYBACK_CMD")

	v.BindEnv("interview.role", "INTERVIEW_ROLE")
	v.BindEnv("interview.warmup_count", "INTERVIEW_WARMUP_COUNT")
	v.BindEnv("interview.core_count", "INTERVIEW_CORE_COUNT")
	v.BindEnv("interview.followup_count", "INTERVIEW_FOLLOWUP_COUNT")

	// Optional file; environment still wins.
	v.BindEnv("config_file", "CONFIG_FILE")
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("config file not loaded", "path", path, "error", err)
		}
	}

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = v.GetString("server.log_format")

	c.Duplex.Profile = v.GetString("duplex.profile")
	c.Duplex.APIBase = strings.TrimRight(v.GetString("duplex.api_base"), "/")
	c.Duplex.JoinMode = v.GetString("duplex.join_mode")
	c.Duplex.MaxQueue = v.GetInt("duplex.max_queue")
	c.Duplex.BargeInMinChars = v.GetInt("duplex.barge_in_min_chars")
	c.Duplex.FrameMs = v.GetInt("duplex.frame_ms")
	c.Duplex.SampleRate = v.GetInt("duplex.sample_rate")
	p, ok := presets[c.Duplex.Profile]
	if !ok {
		log.Warn("unknown duplex profile, using duplex", "profile", c.Duplex.Profile)
		c.Duplex.Profile = ProfileDuplex
		p = presets[ProfileDuplex]
	}
	c.Duplex.IdleMs = p.idleMs
	c.Duplex.MaxWords = p.maxWords
	if v.IsSet("duplex.idle_ms") {
		c.Duplex.IdleMs = v.GetInt("duplex.idle_ms")
	}
	if v.IsSet("duplex.max_words") {
		c.Duplex.MaxWords = v.GetInt("duplex.max_words")
	}

	c.STT.Provider = strings.ToLower(v.GetString("stt.provider"))
	c.STT.URL = v.GetString("stt.url")
	c.STT.APIKey = v.GetString("stt.api_key")
	c.STT.TokenTTL = v.GetInt("stt.token_ttl")
	c.STT.Model = v.GetString("stt.model")
	c.STT.Language = v.GetString("stt.language")

	c.LLM.BaseURL = strings.TrimRight(v.GetString("llm.base_url"), "/")
	c.LLM.APIKey = v.GetString("llm.api_key")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.SystemPrompt = v.GetString("llm.system_prompt")
	c.LLM.Temperature = v.GetFloat64("llm.temperature")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")
	c.Eleven.OutputFormat = v.GetString("elevenlabs.output_format")

	c.Auth.TokenSecret = v.GetString("auth.token_secret")
	c.Auth.TokenSkewSecs = v.GetInt("auth.token_skew_secs")
	c.Auth.TokenTTLMin = v.GetInt("auth.token_ttl_min")

	c.Audio.CaptureCmd = v.GetString("audio.capture_cmd")
	c.Audio.CaptureFormat = v.GetString("audio.capture_format")
	c.Audio.PlaybackCmd = v.GetString("audio.playback_cmd")

	c.Interview.Role = v.GetString("interview.role")
	c.Interview.WarmupCount = v.GetInt("interview.warmup_count")
	c.Interview.CoreCount = v.GetInt("interview.core_count")
	c.Interview.FollowupCount = v.GetInt("interview.followup_count")

	log.Debug("config loaded", "port", c.Server.Port, "profile", c.Duplex.Profile, "stt_provider", c.STT.Provider)
	return c
}

// FrameBytes is the size of one PCM16 mono frame at the configured rate.
func (c Config) FrameBytes() int {
	return c.Duplex.SampleRate / 1000 * c.Duplex.FrameMs * 2
}

func toString(v any) string { return fmt.Sprint(v) }
