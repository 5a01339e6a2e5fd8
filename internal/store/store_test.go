package store

import (
	"errors"
	"testing"
	"time"

	"intervue/voice/internal/types"
)

func TestCreateAndGetSession(t *testing.T) {
	st := New()
	s := &types.Session{ID: "abc123", CreatedAt: time.Now(), Stage: types.StageIntro}
	if err := st.CreateSession(s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := st.CreateSession(s); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	got := st.GetSession("abc123")
	if got == nil || got.ID != s.ID {
		t.Fatalf("expected session %q, got %#v", s.ID, got)
	}
	if st.GetSession("nope") != nil {
		t.Fatalf("unknown session should be nil")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	st := New()
	_ = st.CreateSession(&types.Session{ID: "s", History: []types.Message{{Role: "user", Content: "hi"}}})

	got := st.GetSession("s")
	got.Stage = types.StageWrap
	got.History[0].Content = "changed"

	again := st.GetSession("s")
	if again.Stage != types.StageIntro || again.History[0].Content != "hi" {
		t.Fatalf("caller mutation leaked into the store: %+v", again)
	}
}

func TestUpdate(t *testing.T) {
	st := New()
	_ = st.CreateSession(&types.Session{ID: "s"})

	err := st.Update("s", func(sess *types.Session) error {
		sess.AnsweredInStage++
		sess.Stage = types.StageCore
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := st.GetSession("s"); got.Stage != types.StageCore || got.AnsweredInStage != 1 {
		t.Fatalf("update not applied: %+v", got)
	}
	if err := st.Update("missing", func(*types.Session) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEventLogIsCapped(t *testing.T) {
	st := New()
	_ = st.CreateSession(&types.Session{ID: "s"})
	for i := 0; i < maxEvents+10; i++ {
		st.AppendEvent("s", "turn", map[string]any{"i": i})
	}
	evs := st.ListEvents("s")
	if len(evs) != maxEvents {
		t.Fatalf("expected %d events, got %d", maxEvents, len(evs))
	}
	last := evs[len(evs)-1]
	if last.Type != "events_truncated" {
		t.Fatalf("expected truncation marker last, got %q", last.Type)
	}
	if first := evs[0].Payload["i"]; first != 11 {
		t.Fatalf("expected oldest kept event to be 11, got %v", first)
	}
}
