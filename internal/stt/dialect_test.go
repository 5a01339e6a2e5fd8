package stt

import (
	"encoding/json"
	"testing"
)

func frames(t *testing.T, d dialect, raw ...string) []Event {
	t.Helper()
	var out []Event
	for _, r := range raw {
		var m map[string]any
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			t.Fatalf("bad fixture %s: %v", r, err)
		}
		out = append(out, d.parse(m)...)
	}
	return out
}

func TestAssemblyAITurns(t *testing.T) {
	got := frames(t, &assemblyAI{},
		`{"type":"Begin","id":"abc"}`,
		`{"type":"Turn","transcript":"tell me","end_of_turn":false}`,
		`{"type":"Turn","transcript":"tell me about it","end_of_turn":true}`,
		`{"type":"Turn","transcript":"","end_of_turn":false}`,
	)
	want := []Event{
		{Kind: KindInfo, Type: "Begin"},
		{Kind: KindPartial, Text: "tell me", Type: "Turn"},
		{Kind: KindFinal, Text: "tell me about it", Type: "Turn"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestAssemblyAIFormattedTurnsOnlyFinalOnce(t *testing.T) {
	got := frames(t, &assemblyAI{formatted: true},
		`{"type":"Turn","transcript":"i led a team","end_of_turn":true,"turn_is_formatted":false}`,
		`{"type":"Turn","transcript":"I led a team.","end_of_turn":true,"turn_is_formatted":true}`,
	)
	if len(got) != 1 || got[0].Kind != KindFinal || got[0].Text != "I led a team." {
		t.Fatalf("expected only the formatted final, got %+v", got)
	}
}

func TestAssemblyAILegacyShapes(t *testing.T) {
	got := frames(t, &assemblyAI{},
		`{"message_type":"PartialTranscript","text":"hello"}`,
		`{"message_type":"FinalTranscript","text":"hello there."}`,
		`{"type":"PartialTranscript","transcript":"again"}`,
		`{"type":"Transcript","transcript":"again and again","end_of_turn":true}`,
		`{"type":"Transcript","transcript":"not yet","end_of_turn":false}`,
	)
	kinds := []Kind{KindPartial, KindFinal, KindPartial, KindFinal, KindPartial}
	if len(got) != len(kinds) {
		t.Fatalf("expected %d events, got %+v", len(kinds), got)
	}
	for i, k := range kinds {
		if got[i].Kind != k {
			t.Fatalf("event %d: expected %v, got %+v", i, k, got[i])
		}
	}
}

func TestProviderErrorFrames(t *testing.T) {
	for _, d := range []dialect{&assemblyAI{}, &deepgram{}} {
		got := frames(t, d, `{"type":"Error","message":"bad auth"}`, `{"error":"quota"}`)
		if len(got) != 2 || got[0].Kind != KindError || got[0].Text != "bad auth" || got[1].Text != "quota" {
			t.Fatalf("%T: unexpected error events %+v", d, got)
		}
	}
}

func dgResult(text string, isFinal, speechFinal bool) string {
	b, _ := json.Marshal(map[string]any{
		"type":         "Results",
		"is_final":     isFinal,
		"speech_final": speechFinal,
		"channel": map[string]any{
			"alternatives": []any{map[string]any{"transcript": text}},
		},
	})
	return string(b)
}

func TestDeepgramAccumulatesSegments(t *testing.T) {
	got := frames(t, &deepgram{},
		`{"type":"Metadata","request_id":"r1"}`,
		dgResult("I led", false, false),
		dgResult("I led a team", true, false),
		dgResult("of five", false, false),
		dgResult("of five people", true, true),
	)
	want := []Event{
		{Kind: KindInfo, Type: "Metadata"},
		{Kind: KindPartial, Text: "I led", Type: "Results"},
		{Kind: KindPartial, Text: "I led a team", Type: "Results"},
		{Kind: KindPartial, Text: "I led a team of five", Type: "Results"},
		{Kind: KindFinal, Text: "I led a team of five people", Type: "Results"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDeepgramUtteranceEndFallbacks(t *testing.T) {
	d := &deepgram{}
	got := frames(t, d,
		dgResult("first part", true, false),
		`{"type":"UtteranceEnd","last_word_end":2.1}`,
		dgResult("only interim", false, false),
		`{"type":"UtteranceEnd"}`,
		`{"type":"UtteranceEnd"}`,
	)
	finals := []string{}
	for _, e := range got {
		if e.Kind == KindFinal {
			finals = append(finals, e.Text)
		}
	}
	if len(finals) != 2 || finals[0] != "first part" || finals[1] != "only interim" {
		t.Fatalf("unexpected finals %v", finals)
	}
}

func TestTerminateFrames(t *testing.T) {
	if string((&assemblyAI{}).terminate()) != `{"type":"Terminate"}` {
		t.Fatalf("unexpected assemblyai terminate frame")
	}
	if string((&deepgram{}).terminate()) != `{"type":"CloseStream"}` {
		t.Fatalf("unexpected deepgram terminate frame")
	}
}
