package floor

import "testing"

func TestBargeInTriggersStop(t *testing.T) {
	f := New(1)
	f.OnLLMStarted()
	d := f.OnPartial("wait", true)
	if !d.ShouldStop || d.Reason != "barge_in" {
		t.Fatalf("expected stop on barge-in, got %+v", d)
	}
	if f.Busy() {
		t.Fatalf("floor should return to the user after barge-in")
	}
}

func TestPartialWhileIdleDoesNothing(t *testing.T) {
	f := New(1)
	d := f.OnPartial("hello", false)
	if d.ShouldStop {
		t.Fatalf("should not stop when idle")
	}
}

func TestPartialWhileGeneratingButSilentDoesNothing(t *testing.T) {
	f := New(1)
	f.OnLLMStarted()
	if d := f.OnPartial("uh", false); d.ShouldStop {
		t.Fatalf("nothing is playing, got %+v", d)
	}
	if !f.Busy() {
		t.Fatalf("answer should still be in flight")
	}
}

func TestMinCharsFiltersBlips(t *testing.T) {
	f := New(4)
	if d := f.OnPartial(" um ", true); d.ShouldStop {
		t.Fatalf("short partial should not barge in, got %+v", d)
	}
	if d := f.OnPartial("actually", true); !d.ShouldStop {
		t.Fatalf("long partial should barge in")
	}
}

func TestEmptyPartialNeverBargesIn(t *testing.T) {
	f := New(0)
	if d := f.OnPartial("   ", true); d.ShouldStop {
		t.Fatalf("blank partial must not barge in")
	}
}

func TestFinalSupersedesInflightAnswer(t *testing.T) {
	f := New(1)
	f.OnLLMStarted()
	if d := f.OnFinal(false); !d.ShouldStop || d.Reason != "new_turn" {
		t.Fatalf("expected new_turn stop, got %+v", d)
	}
	if d := f.OnFinal(false); d.ShouldStop {
		t.Fatalf("nothing in flight, got %+v", d)
	}
	if d := f.OnFinal(true); !d.ShouldStop {
		t.Fatalf("a final over playback should stop it, got %+v", d)
	}
}
