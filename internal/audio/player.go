package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"intervue/voice/internal/speaker"
)

// DefaultPlaybackCommand reads one compressed clip from stdin and exits
// when it has been played.
const DefaultPlaybackCommand = "ffplay -nodisp -autoexit -loglevel error -i pipe:0"

// ExecPlayer plays each clip by piping it into a fresh playback process.
type ExecPlayer struct {
	cmdline []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewExecPlayer(cmdline string) (*ExecPlayer, error) {
	if strings.TrimSpace(cmdline) == "" {
		cmdline = DefaultPlaybackCommand
	}
	parts := strings.Fields(cmdline)
	if _, err := exec.LookPath(parts[0]); err != nil {
		return nil, fmt.Errorf("audio: %s is required for playback: %w", parts[0], err)
	}
	return &ExecPlayer{cmdline: parts}, nil
}

func (p *ExecPlayer) Play(ctx context.Context, clip speaker.Clip) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	cmd := exec.CommandContext(ctx, p.cmdline[0], p.cmdline[1:]...)
	cmd.Stdin = bytes.NewReader(clip.Audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: playback: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Stop kills the current playback process, if any.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// DirPlayer "plays" clips by writing them into a directory, in order. It
// suits headless runs where the audio is inspected afterwards.
type DirPlayer struct {
	Dir string

	mu sync.Mutex
	n  int
}

func (p *DirPlayer) Play(ctx context.Context, clip speaker.Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Dir == "" {
		return errors.New("audio: no output directory")
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}
	p.mu.Lock()
	p.n++
	name := filepath.Join(p.Dir, fmt.Sprintf("%04d%s", p.n, extension(clip.ContentType)))
	p.mu.Unlock()
	return os.WriteFile(name, clip.Audio, 0o644)
}

func (p *DirPlayer) Stop() {}

func extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	default:
		return ".bin"
	}
}
