package stt

import "strings"

type Kind int

const (
	KindPartial Kind = iota
	KindFinal
	KindError
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

// Event is one normalized recognizer message.
type Event struct {
	Kind Kind
	Text string
	// Type is the provider's message type, e.g. "Turn" or "Results".
	Type string
}

// dialect turns provider frames into events. Implementations may keep
// per-connection state and are only called from the reader goroutine.
type dialect interface {
	parse(m map[string]any) []Event
	terminate() []byte
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

// providerError extracts an error frame, shared by both dialects.
func providerError(typ string, m map[string]any) (Event, bool) {
	if !strings.EqualFold(typ, "Error") && m["error"] == nil {
		return Event{}, false
	}
	msg := toString(m["error"])
	if msg == "" {
		msg = toString(m["message"])
	}
	if msg == "" {
		msg = toString(m["description"])
	}
	if msg == "" {
		msg = "provider_error"
	}
	return Event{Kind: KindError, Text: msg, Type: typ}, true
}
