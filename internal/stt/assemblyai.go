package stt

import (
	"strings"
)

// assemblyAI parses both the streaming v3 shape ({"type":"Turn",
// "transcript":..., "end_of_turn":...}) and the older realtime shape
// ({"message_type":"PartialTranscript"|"FinalTranscript", "text":...}).
type assemblyAI struct {
	// formatted: only the formatted copy of a finished turn is final
	formatted bool
}

func (a *assemblyAI) parse(m map[string]any) []Event {
	typ := toString(m["type"])
	if typ == "" {
		typ = toString(m["message_type"])
	}
	if ev, ok := providerError(typ, m); ok {
		return []Event{ev}
	}

	text := toString(m["transcript"])
	if text == "" {
		text = toString(m["text"])
	}
	text = strings.TrimSpace(text)

	switch typ {
	case "Turn":
		if !toBool(m["end_of_turn"]) {
			return partial(text, typ)
		}
		if a.formatted && !toBool(m["turn_is_formatted"]) {
			// the formatted copy of this turn follows
			return nil
		}
		return final(text, typ, "provider")
	case "PartialTranscript":
		return partial(text, typ)
	case "Transcript", "FinalTranscript":
		if _, ok := m["end_of_turn"]; ok && !toBool(m["end_of_turn"]) {
			return partial(text, typ)
		}
		return final(text, typ, "provider")
	case "Begin", "SessionBegins", "Termination", "SessionTerminated":
		return []Event{{Kind: KindInfo, Type: typ}}
	}
	return nil
}

func (a *assemblyAI) terminate() []byte { return []byte(`{"type":"Terminate"}`) }

func partial(text, typ string) []Event {
	if text == "" {
		return nil
	}
	return []Event{{Kind: KindPartial, Text: text, Type: typ}}
}

func final(text, typ, source string) []Event {
	if text == "" {
		metricEmptyFinalSkipped.Inc()
		return nil
	}
	metricFinalEmitted.WithLabelValues(source).Inc()
	return []Event{{Kind: KindFinal, Text: text, Type: typ}}
}
