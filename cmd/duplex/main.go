// Command duplex runs a voice interview from the terminal: microphone in,
// synthesized interviewer out, with barge-in. Typed lines on stdin are sent
// as answers too, which makes it usable without a microphone.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intervue/voice/internal/audio"
	"intervue/voice/internal/config"
	"intervue/voice/internal/duplex"
	"intervue/voice/internal/interview"
	"intervue/voice/internal/llm"
	"intervue/voice/internal/log"
	"intervue/voice/internal/phrase"
	"intervue/voice/internal/speaker"
	"intervue/voice/internal/stt"
)

type sayFlags []string

func (s *sayFlags) String() string     { return strings.Join(*s, "|") }
func (s *sayFlags) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	_ = godotenv.Load()

	var (
		says        sayFlags
		role        = flag.String("role", "", "role to interview for (defaults to the server's)")
		noMic       = flag.Bool("no-mic", false, "do not capture audio; answer by typing")
		outDir      = flag.String("out-dir", "", "write synthesized clips here instead of playing them")
		metricsAddr = flag.String("metrics-addr", "", "serve /metrics on this address")
	)
	flag.Var(&says, "say", "answer to inject after start (repeatable)")
	flag.Parse()

	cfg := config.Load()
	logger := log.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := interview.NewClient(cfg.Duplex.APIBase)
	sess, err := client.Start(ctx, *role)
	if err != nil {
		logger.Error("could not start interview", "api", cfg.Duplex.APIBase, "error", err)
		os.Exit(1)
	}
	logger.Info("interview started", "session_id", sess.SessionID, "stage", sess.Stage.String())

	var player speaker.Player
	if *outDir != "" {
		player = &audio.DirPlayer{Dir: *outDir}
	} else {
		p, err := audio.NewExecPlayer(cfg.Audio.PlaybackCmd)
		if err != nil {
			logger.Error("no audio playback", "error", err)
			os.Exit(1)
		}
		player = p
	}
	spk := speaker.New(
		speaker.NewHTTPSynthesizer(client.URL(interview.PathTTS), sess.Token),
		player,
		speaker.Options{MaxQueue: cfg.Duplex.MaxQueue},
	)

	ended := make(chan struct{})
	opts := duplex.Options{
		Dial: func(ctx context.Context, token string) (duplex.Recognizer, error) {
			conn, err := stt.Dial(ctx, stt.Config{
				Provider:   cfg.STT.Provider,
				URL:        cfg.STT.URL,
				SampleRate: cfg.Duplex.SampleRate,
				Token:      token,
				Model:      cfg.STT.Model,
				Language:   cfg.STT.Language,
			})
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Token: func(ctx context.Context) (string, error) {
			tok, err := client.STTToken(ctx)
			return tok.Value, err
		},
		CaptureFormat: cfg.Audio.CaptureFormat,
		FrameBytes:    cfg.FrameBytes(),
		Turns:         llm.NewTurnClient(client.URL(interview.PathTurn), sess.Token),
		Speaker:       spk,
		Aggregator: phrase.Options{
			Idle:               time.Duration(cfg.Duplex.IdleMs) * time.Millisecond,
			MaxWords:           cfg.Duplex.MaxWords,
			Join:               phrase.ParseJoinMode(cfg.Duplex.JoinMode),
			GuardAbbreviations: true,
		},
		BargeInMinChars: cfg.Duplex.BargeInMinChars,
		SpeakQuestion:   true,
		OnEvent:         printer(ended),
	}
	if !*noMic {
		opts.OpenCapture = func() (audio.Source, error) {
			src, err := audio.OpenCapture(cfg.Audio.CaptureCmd, cfg.Duplex.SampleRate)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	}

	ctrl := duplex.New(opts)
	err = ctrl.Start(ctx, duplex.SessionState{
		SessionID:       sess.SessionID,
		Stage:           sess.Stage,
		CurrentQuestion: sess.Question,
	})
	if err != nil {
		logger.Error("could not start voice session", "error", err)
		endSession(client, sess.SessionID)
		os.Exit(1)
	}

	for _, s := range says {
		if err := ctrl.InjectFinal(s); err != nil {
			logger.Warn("inject failed", "error", err)
		}
	}
	go readAnswers(ctrl)

	select {
	case <-ctx.Done():
		logger.Info("interrupted")
	case <-ended:
		waitForPlayback(ctx, spk)
	}
	ctrl.Stop()
	endSession(client, sess.SessionID)
}

func readAnswers(ctrl *duplex.Controller) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := ctrl.InjectFinal(line); err != nil {
			fmt.Fprintln(os.Stderr, "not listening:", err)
			return
		}
	}
}

// waitForPlayback lets the closing answer finish before exiting.
func waitForPlayback(ctx context.Context, spk *speaker.Queue) {
	deadline := time.After(30 * time.Second)
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for spk.IsSpeaking() {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-t.C:
		}
	}
}

func endSession(client *interview.Client, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.End(ctx, id); err != nil {
		log.Warn("end interview failed", "session_id", id, "error", err)
	}
}

func printer(ended chan<- struct{}) func(duplex.Event) {
	var once sync.Once
	return func(ev duplex.Event) {
		switch ev.Type {
		case duplex.EventListening:
			fmt.Printf("[%s] listening\n", ev.Stage)
		case duplex.EventPartial:
			fmt.Printf("\r  you: %s", ev.Text)
		case duplex.EventTurn:
			if ev.Turn.Role == duplex.RoleUser {
				fmt.Printf("\r  you> %s\n", ev.Text)
			} else {
				fmt.Printf("  ai> %s\n", ev.Text)
			}
		case duplex.EventBargeIn:
			fmt.Println("\n  (interrupted)")
		case duplex.EventStage:
			fmt.Printf("[%s] %s\n", ev.Stage, ev.Question)
		case duplex.EventLog:
			fmt.Fprintf(os.Stderr, "  %s %s\n", ev.Level, ev.Text)
		case duplex.EventEnded:
			fmt.Printf("[ended] %s\n", ev.Text)
			once.Do(func() { close(ended) })
		}
	}
}
