package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MaxLineBytes caps a single SSE line. Longer lines fail with ErrLineTooLong.
const MaxLineBytes = 1 << 20

var ErrLineTooLong = errors.New("sse: line too long")

// Decoder reads server-sent events.
type Decoder struct {
	r   *bufio.Reader
	max int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), max: MaxLineBytes}
}

// readLine is ReadBytes('\n') with the line length bounded by d.max.
func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := d.r.ReadSlice('\n')
		if len(line)+len(frag) > d.max {
			return nil, ErrLineTooLong
		}
		line = append(line, frag...)
		if err != bufio.ErrBufferFull {
			return line, err
		}
	}
}

// Next returns (event, data, error). Event is empty for plain "data:" frames.
// Multiple data lines are joined with "\n"; comment lines are skipped. A
// frame cut off by EOF is still returned before io.EOF.
func (d *Decoder) Next() (string, []byte, error) {
	var event string
	var data []byte
	seen := false
	for {
		line, err := d.readLine()
		if err != nil && len(line) == 0 {
			if err == io.EOF && seen {
				return event, data, nil
			}
			return "", nil, err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 { // dispatch
			if !seen {
				continue
			}
			return event, data, nil
		}
		switch {
		case line[0] == ':':
		case bytes.HasPrefix(line, []byte("event:")):
			event = strings.TrimSpace(string(line[len("event:"):]))
			seen = true
		case bytes.HasPrefix(line, []byte("data:")):
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, bytes.TrimSpace(line[len("data:"):])...)
			seen = true
		}
		if err != nil {
			if seen {
				return event, data, nil
			}
			return "", nil, err
		}
	}
}

// Writer emits server-sent events on a flushing ResponseWriter.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: f}, nil
}

// Data writes an unnamed event with a JSON payload.
func (sw *Writer) Data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sw.write("", string(b))
}

// Ping writes the heartbeat frame clients are expected to ignore.
func (sw *Writer) Ping() error { return sw.write("ping", "{}") }

func (sw *Writer) Done() error { return sw.write("", "[DONE]") }

func (sw *Writer) write(event, data string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if event != "" {
		if _, err := fmt.Fprintf(sw.w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
