package types

import (
	"encoding/json"
	"testing"
)

func TestParseStageRoundTrip(t *testing.T) {
	for _, s := range []Stage{StageIntro, StageWarmup, StageCore, StageFollowup, StageWrap, StageEnded} {
		got, ok := ParseStage(s.String())
		if !ok || got != s {
			t.Fatalf("ParseStage(%q) = %v, %v", s.String(), got, ok)
		}
	}
	if _, ok := ParseStage("lunch"); ok {
		t.Fatalf("unknown stage should not parse")
	}
}

func TestStageJSON(t *testing.T) {
	var v struct {
		Stage Stage `json:"stage"`
	}
	if err := json.Unmarshal([]byte(`{"stage":"followup"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Stage != StageFollowup {
		t.Fatalf("expected followup, got %v", v.Stage)
	}
	if err := json.Unmarshal([]byte(`{"stage":"nap"}`), &v); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
	b, _ := json.Marshal(v)
	if string(b) != `{"stage":"followup"}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestNextWalksThePlan(t *testing.T) {
	p := Plan{Warmup: 1, Core: 2, Followup: 1}
	steps := []struct {
		from     Stage
		answered int
		want     Stage
	}{
		{StageIntro, 0, StageIntro},
		{StageIntro, 1, StageWarmup},
		{StageWarmup, 1, StageCore},
		{StageCore, 1, StageCore},
		{StageCore, 2, StageFollowup},
		{StageFollowup, 1, StageWrap},
		{StageWrap, 1, StageEnded},
		{StageEnded, 5, StageEnded},
	}
	for _, s := range steps {
		if got := Next(s.from, s.answered, p); got != s.want {
			t.Errorf("Next(%v, %d) = %v, want %v", s.from, s.answered, got, s.want)
		}
	}
}

func TestNextSkipsEmptyStages(t *testing.T) {
	p := Plan{Warmup: 0, Core: 1, Followup: 0}
	if got := Next(StageIntro, 1, p); got != StageCore {
		t.Fatalf("expected warmup to be skipped, got %v", got)
	}
	if got := Next(StageCore, 1, p); got != StageWrap {
		t.Fatalf("expected followup to be skipped, got %v", got)
	}
}
