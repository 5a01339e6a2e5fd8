package stt

import (
	"strings"
)

// deepgram parses the listen API's Results/UtteranceEnd frames. Finalized
// segments (is_final) accumulate until speech_final or UtteranceEnd closes
// the utterance; partials carry the accumulated text plus the live interim.
type deepgram struct {
	segments    []string
	lastInterim string
}

func (d *deepgram) parse(m map[string]any) []Event {
	typ := toString(m["type"]) // may be "Results", "UtteranceEnd", "Metadata", "SpeechStarted", "Error"
	if ev, ok := providerError(typ, m); ok {
		return []Event{ev}
	}

	switch {
	case strings.EqualFold(typ, "Metadata"):
		// Connection confirmation
		return []Event{{Kind: KindInfo, Type: typ}}
	case strings.EqualFold(typ, "SpeechStarted"):
		return []Event{{Kind: KindInfo, Type: typ}}
	case strings.EqualFold(typ, "UtteranceEnd"):
		return d.utteranceEnd(typ)
	case strings.EqualFold(typ, "Results") || m["channel"] != nil:
		return d.results(typ, m)
	}
	return nil
}

func (d *deepgram) results(typ string, m map[string]any) []Event {
	// Deepgram puts alternatives under "channel", not "results"
	text := ""
	if channel, ok := m["channel"].(map[string]any); ok {
		if alts, ok := channel["alternatives"].([]any); ok && len(alts) > 0 {
			if a0, ok := alts[0].(map[string]any); ok {
				text = strings.TrimSpace(toString(a0["transcript"]))
			}
		}
	}

	if !toBool(m["is_final"]) && !toBool(m["speech_final"]) {
		d.lastInterim = text
		return partial(d.join(text), typ)
	}

	if text != "" {
		d.segments = append(d.segments, text)
	}
	d.lastInterim = ""
	if toBool(m["speech_final"]) {
		out := d.join("")
		d.reset()
		return final(out, typ, "provider")
	}
	return partial(d.join(""), typ)
}

// utteranceEnd closes the utterance when speech_final never arrived.
func (d *deepgram) utteranceEnd(typ string) []Event {
	text, source := d.join(""), "utterance_end"
	if text == "" {
		text, source = d.lastInterim, "interim_fallback"
	}
	d.reset()
	return final(text, typ, source)
}

func (d *deepgram) join(live string) string {
	parts := d.segments
	if live != "" {
		parts = append(append([]string(nil), parts...), live)
	}
	return strings.Join(parts, " ")
}

func (d *deepgram) reset() {
	d.segments = nil
	d.lastInterim = ""
}

func (d *deepgram) terminate() []byte { return []byte(`{"type":"CloseStream"}`) }
