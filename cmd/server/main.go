package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"intervue/voice/internal/api"
	"intervue/voice/internal/auth"
	"intervue/voice/internal/config"
	"intervue/voice/internal/health"
	"intervue/voice/internal/httpc"
	"intervue/voice/internal/interview"
	"intervue/voice/internal/llm"
	"intervue/voice/internal/log"
	"intervue/voice/internal/store"
	"intervue/voice/internal/stt"
	"intervue/voice/internal/tts"
	"intervue/voice/internal/types"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		logger.Warn("AUTH_TOKEN_SECRET not set; using a random secret, tokens will not survive a restart")
		secret = auth.RandomSecret()
	}

	st := store.New()
	h := api.NewHandlers(st, api.Deps{
		Engine: interview.NewEngine(types.Plan{
			Warmup:   cfg.Interview.WarmupCount,
			Core:     cfg.Interview.CoreCount,
			Followup: cfg.Interview.FollowupCount,
		}, cfg.Interview.Role, cfg.LLM.SystemPrompt),
		Signer: auth.NewSigner(secret,
			time.Duration(cfg.Auth.TokenTTLMin)*time.Minute,
			time.Duration(cfg.Auth.TokenSkewSecs)*time.Second),
		Chat: &llm.ChatClient{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   300,
			Client:      httpc.NewStreamingClient(),
		},
		TTS: tts.NewElevenLabs(cfg.Eleven.APIKey, cfg.Eleven.VoiceID, cfg.Eleven.ModelID, cfg.Eleven.OutputFormat),
		STT: &stt.Minter{
			Provider: cfg.STT.Provider,
			APIKey:   cfg.STT.APIKey,
			TTL:      time.Duration(cfg.STT.TokenTTL) * time.Second,
		},
		Health: health.NewChecker(cfg),
		Logger: log.Component("api"),
	})

	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(api.LogMiddleware(log.Component("http"), mux), "gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info("shutdown signal received; stopping server", "sessions", len(st.ListSessionIDs()))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("server starting", "addr", addr, "stt_provider", cfg.STT.Provider, "llm_model", cfg.LLM.Model)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
