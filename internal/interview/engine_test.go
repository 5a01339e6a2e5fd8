package interview

import (
	"errors"
	"strings"
	"testing"

	"intervue/voice/internal/types"
)

func TestEngineWalksThePlan(t *testing.T) {
	e := NewEngine(types.Plan{Warmup: 1, Core: 2, Followup: 1}, "backend engineer", "")
	var s types.Session
	e.Begin(&s)
	if s.Stage != types.StageIntro || s.CurrentQuestion == "" || s.Status != StatusActive {
		t.Fatalf("unexpected start: %+v", s)
	}

	want := []types.Stage{types.StageWarmup, types.StageCore, types.StageCore, types.StageFollowup, types.StageWrap, types.StageEnded}
	for i, st := range want {
		step, msgs, err := e.Answer(&s, "answer")
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if step.Stage != st {
			t.Fatalf("answer %d: expected %v, got %v", i, st, step.Stage)
		}
		if msgs[0].Role != "system" || msgs[len(msgs)-1].Content != "answer" {
			t.Fatalf("answer %d: unexpected prompt %+v", i, msgs)
		}
		e.Reply(&s, "ok")
	}
	if s.Status != StatusEnded || s.EndedAt == nil {
		t.Fatalf("session should be ended: %+v", s)
	}
	if _, _, err := e.Answer(&s, "one more"); !errors.Is(err, ErrEnded) {
		t.Fatalf("expected ErrEnded, got %v", err)
	}
}

func TestCoreQuestionsAdvanceWithinStage(t *testing.T) {
	e := NewEngine(types.Plan{Core: 3}, "", "")
	var s types.Session
	e.Begin(&s)

	step, _, _ := e.Answer(&s, "intro")
	if step.Stage != types.StageCore || step.Question != DefaultBank[types.StageCore][0] {
		t.Fatalf("expected first core question, got %+v", step)
	}
	step, _, _ = e.Answer(&s, "first")
	if step.Question != DefaultBank[types.StageCore][1] {
		t.Fatalf("expected second core question, got %q", step.Question)
	}
	if s.CurrentQuestion != step.Question {
		t.Fatalf("session question not updated")
	}
}

func TestPromptMentionsRoleAndNextQuestion(t *testing.T) {
	e := NewEngine(types.Plan{Warmup: 1}, "data engineer", "Be concise.")
	var s types.Session
	e.Begin(&s)
	step, msgs, _ := e.Answer(&s, "I build pipelines")

	sys := msgs[0].Content
	if !strings.HasPrefix(sys, "Be concise.") || !strings.Contains(sys, "data engineer") || !strings.Contains(sys, step.Question) {
		t.Fatalf("unexpected system prompt %q", sys)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	e := NewEngine(types.Plan{}, "", "")
	var s types.Session
	e.Begin(&s)
	e.End(&s)
	first := *s.EndedAt
	e.End(&s)
	if !s.EndedAt.Equal(first) || s.Stage != types.StageEnded {
		t.Fatalf("second End should not change the session: %+v", s)
	}
}
