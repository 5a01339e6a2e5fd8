package llm

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecoderFrames(t *testing.T) {
	stream := ": keepalive\n\n" +
		"event: ping\ndata: {}\n\n" +
		"data: {\"text\":\"a\"}\n\n" +
		"data: line one\r\ndata: line two\r\n\r\n" +
		"data: [DONE]"
	d := NewDecoder(strings.NewReader(stream))

	want := []struct{ event, data string }{
		{"ping", "{}"},
		{"", `{"text":"a"}`},
		{"", "line one\nline two"},
		{"", "[DONE]"},
	}
	for i, w := range want {
		ev, data, err := d.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error %v", i, err)
		}
		if ev != w.event || string(data) != w.data {
			t.Fatalf("frame %d: expected (%q, %q), got (%q, %q)", i, w.event, w.data, ev, data)
		}
	}
	if _, _, err := d.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestDecoderLongLines(t *testing.T) {
	// longer than bufio's default buffer but under the cap
	big := strings.Repeat("x", 10000)
	d := NewDecoder(strings.NewReader("data: " + big + "\n\n"))
	_, data, err := d.Next()
	if err != nil || string(data) != big {
		t.Fatalf("expected the %d-byte frame, got %d bytes, err %v", len(big), len(data), err)
	}

	d = NewDecoder(strings.NewReader("data: " + big + "\n\ndata: ok\n\n"))
	d.max = 64
	if _, _, err := d.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func TestWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	w.Ping()
	w.Data(Delta{Text: "hi"})
	w.Done()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := "event: ping\ndata: {}\n\n" +
		"data: {\"text\":\"hi\",\"final\":false}\n\n" +
		"data: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}

	// and it round-trips through the decoder
	d := NewDecoder(strings.NewReader(rec.Body.String()))
	n := 0
	for {
		if _, _, err := d.Next(); err != nil {
			break
		}
		n++
	}
	if n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
}
