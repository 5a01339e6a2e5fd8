package phrase

import (
	"sync"
	"testing"
	"time"
)

type sink struct {
	mu  sync.Mutex
	out []string
}

func (s *sink) flush(text string) {
	s.mu.Lock()
	s.out = append(s.out, text)
	s.mu.Unlock()
}

func (s *sink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.out...)
}

func TestFlushOnSentencePunctuation(t *testing.T) {
	inputs := []string{
		"That went well.",
		"Did it?",
		"Absolutely!",
		"Let me think…",
		`He said "ship it."`,
		"(Quietly, of course.)",
		"It was 'done!'",
	}
	for _, in := range inputs {
		a := New(Options{Idle: time.Hour, MaxWords: 50})
		var s sink
		a.Push(in, s.flush)
		got := s.got()
		if len(got) != 1 || got[0] != in {
			t.Errorf("Push(%q): expected synchronous flush of the input, got %v", in, got)
		}
		if p := a.Pending(); p != "" {
			t.Errorf("Push(%q): expected empty buffer after flush, got %q", in, p)
		}
	}
}

func TestTokenModeNeedsTrailingWhitespace(t *testing.T) {
	a := New(Options{Idle: time.Hour, MaxWords: 50, Join: JoinTokens})
	var s sink

	a.Push("I led", s.flush)
	a.Push(" a team.", s.flush)
	if len(s.got()) != 0 {
		t.Fatalf("token mode should wait for whitespace after the period, got %v", s.got())
	}
	a.Push(" ", s.flush)
	got := s.got()
	if len(got) != 1 || got[0] != "I led a team." {
		t.Fatalf("expected one phrase after whitespace, got %v", got)
	}
}

func TestFlushOnClause(t *testing.T) {
	a := New(Options{Idle: time.Hour, MaxWords: 50})
	var s sink

	a.Push("Well", s.flush)
	a.Push("first of all,", s.flush)
	got := s.got()
	if len(got) != 1 || got[0] != "Well first of all," {
		t.Fatalf("expected clause flush, got %v", got)
	}

	a.Push("note this;", s.flush)
	a.Push("and this:", s.flush)
	if got := s.got(); len(got) != 3 {
		t.Fatalf("expected semicolon and colon flushes, got %v", got)
	}
}

func TestFlushOnWordCap(t *testing.T) {
	a := New(Options{Idle: time.Hour, MaxWords: 5})
	var s sink

	for _, w := range []string{"one", "two", "three", "four"} {
		a.Push(w, s.flush)
	}
	if len(s.got()) != 0 {
		t.Fatalf("should not flush before the cap, got %v", s.got())
	}
	a.Push("five", s.flush)
	got := s.got()
	if len(got) != 1 || got[0] != "one two three four five" {
		t.Fatalf("expected flush at 5 words, got %v", got)
	}
}

func TestIdleFlushExactlyOnce(t *testing.T) {
	a := New(Options{Idle: 30 * time.Millisecond, MaxWords: 50})
	var s sink

	a.Push("so the thing", s.flush)
	a.Push("is", s.flush)
	time.Sleep(150 * time.Millisecond)

	got := s.got()
	if len(got) != 1 || got[0] != "so the thing is" {
		t.Fatalf("expected exactly one idle flush of the full buffer, got %v", got)
	}
	if a.Pending() != "" {
		t.Fatalf("buffer should be empty after idle flush")
	}
}

func TestNoDoubleFlushAfterSyncFlush(t *testing.T) {
	a := New(Options{Idle: 30 * time.Millisecond, MaxWords: 50})
	var s sink

	a.Push("pending words", s.flush) // arms the timer
	a.Push("done.", s.flush)         // sync flush cancels it
	time.Sleep(120 * time.Millisecond)

	got := s.got()
	if len(got) != 1 || got[0] != "pending words done." {
		t.Fatalf("expected a single flush, got %v", got)
	}
}

func TestExplicitFlushCancelsTimer(t *testing.T) {
	a := New(Options{Idle: 30 * time.Millisecond, MaxWords: 50})
	var s sink

	a.Push("trailing bit", s.flush)
	a.Flush(s.flush)
	a.Flush(s.flush) // empty buffer: no-op
	time.Sleep(120 * time.Millisecond)

	got := s.got()
	if len(got) != 1 || got[0] != "trailing bit" {
		t.Fatalf("expected one explicit flush, got %v", got)
	}
}

func TestResetDropsBuffer(t *testing.T) {
	a := New(Options{Idle: 30 * time.Millisecond, MaxWords: 50})
	var s sink

	a.Push("stale answer", s.flush)
	a.Reset()
	time.Sleep(120 * time.Millisecond)

	if len(s.got()) != 0 {
		t.Fatalf("reset should drop the buffer silently, got %v", s.got())
	}
}

func TestEmptyChunksAreNoOps(t *testing.T) {
	a := New(Options{Idle: 20 * time.Millisecond, MaxWords: 50})
	var s sink

	a.Push("", s.flush)
	a.Push("   ", s.flush)
	time.Sleep(80 * time.Millisecond)
	if len(s.got()) != 0 || a.Pending() != "" {
		t.Fatalf("empty chunks must not buffer or flush")
	}
}

func TestBoundaryEdgeCases(t *testing.T) {
	cases := []struct {
		name   string
		opts   Options
		chunks []string
		want   []string
	}{
		{
			name:   "abbreviation guarded",
			opts:   Options{GuardAbbreviations: true},
			chunks: []string{"I met Dr.", "Smith today."},
			want:   []string{"I met Dr. Smith today."},
		},
		{
			name:   "initial guarded",
			opts:   Options{GuardAbbreviations: true},
			chunks: []string{"Ask J.", "Doe."},
			want:   []string{"Ask J. Doe."},
		},
		{
			name:   "abbreviation unguarded still flushes",
			opts:   Options{},
			chunks: []string{"I met Dr.", "Smith today."},
			want:   []string{"I met Dr.", "Smith today."},
		},
		{
			name:   "decimal in token stream",
			opts:   Options{Join: JoinTokens},
			chunks: []string{"It grew 3", ".5", "x last year. "},
			want:   []string{"It grew 3.5x last year."},
		},
		{
			name:   "thousands separator in token stream",
			opts:   Options{Join: JoinTokens},
			chunks: []string{"We had 1,", "200 users. "},
			want:   []string{"We had 1,200 users."},
		},
		{
			name:   "quoted dialogue",
			opts:   Options{Join: JoinTokens},
			chunks: []string{`She asked, `, `"why?" `, `and left.`},
			want:   []string{"She asked,", `"why?"`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.Idle = time.Hour
			tc.opts.MaxWords = 50
			a := New(tc.opts)
			var s sink
			for _, c := range tc.chunks {
				a.Push(c, s.flush)
			}
			got := s.got()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("phrase %d: expected %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestParseJoinMode(t *testing.T) {
	if ParseJoinMode("tokens") != JoinTokens || ParseJoinMode("TOKENS ") != JoinTokens {
		t.Fatalf("expected tokens mode")
	}
	if ParseJoinMode("") != JoinWords || ParseJoinMode("words") != JoinWords {
		t.Fatalf("expected words mode")
	}
}
