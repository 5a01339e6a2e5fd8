// Package audio captures microphone PCM and plays synthesized clips using
// external commands (ffmpeg/arecord for capture, ffplay/mpg123 for playback).
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrMicrophone marks failures to open the capture device.
var ErrMicrophone = errors.New("audio: microphone unavailable")

const stopGrace = 3 * time.Second

// Source is a stream of raw little-endian PCM.
type Source interface {
	io.Reader
	Close() error
}

// ExecSource reads PCM from a capture process's stdout.
type ExecSource struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser

	once sync.Once
	done chan struct{}
}

// DefaultCaptureCommand returns an ffmpeg invocation producing mono s16le at
// the given rate from the platform's default input.
func DefaultCaptureCommand(goos string, sampleRate int) (string, error) {
	rate := strconv.Itoa(sampleRate)
	switch goos {
	case "darwin":
		return "ffmpeg -hide_banner -loglevel error -f avfoundation -i :0 -ac 1 -ar " + rate + " -f s16le -", nil
	case "linux":
		return "ffmpeg -hide_banner -loglevel error -f pulse -i default -ac 1 -ar " + rate + " -f s16le -", nil
	default:
		return "", fmt.Errorf("%w: no default capture command for %s", ErrMicrophone, goos)
	}
}

// OpenCapture starts cmdline (or the platform default when empty).
func OpenCapture(cmdline string, sampleRate int) (*ExecSource, error) {
	if strings.TrimSpace(cmdline) == "" {
		def, err := DefaultCaptureCommand(runtime.GOOS, sampleRate)
		if err != nil {
			return nil, err
		}
		cmdline = def
	}
	parts := strings.Fields(cmdline)
	if _, err := exec.LookPath(parts[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrMicrophone, parts[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrMicrophone, err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrMicrophone, err)
	}
	s := &ExecSource{cmd: cmd, cancel: cancel, stdout: stdout, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

func (s *ExecSource) Read(p []byte) (int, error) { return s.stdout.Read(p) }

// Close cancels the capture process and kills it if it outlives the grace
// period. Safe to call more than once.
func (s *ExecSource) Close() error {
	s.once.Do(func() {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(stopGrace):
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
		}
	})
	return nil
}

// ReaderSource adapts any reader (a file of raw PCM, a pipe) into a Source.
type ReaderSource struct {
	r io.Reader
}

func NewReaderSource(r io.Reader) *ReaderSource { return &ReaderSource{r: r} }

func (s *ReaderSource) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
