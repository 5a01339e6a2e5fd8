package types

import (
	"strings"
	"time"
)

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Stage is the server-held interview stage.
type Stage int

const (
	StageIntro Stage = iota
	StageWarmup
	StageCore
	StageFollowup
	StageWrap
	StageEnded
)

var stageNames = [...]string{"intro", "warmup", "core", "followup", "wrap", "ended"}

func (s Stage) String() string {
	if s < StageIntro || s > StageEnded {
		return "unknown"
	}
	return stageNames[s]
}

// ParseStage accepts the lowercase wire names.
func ParseStage(s string) (Stage, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range stageNames {
		if n == s {
			return Stage(i), true
		}
	}
	return StageIntro, false
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	st, ok := ParseStage(string(b))
	if !ok {
		return &StageError{Value: string(b)}
	}
	*s = st
	return nil
}

type StageError struct{ Value string }

func (e *StageError) Error() string { return "unknown interview stage " + `"` + e.Value + `"` }

// Plan is how many answers each stage takes before advancing.
type Plan struct {
	Warmup   int
	Core     int
	Followup int
}

// Quota returns the number of answers the stage expects. Intro and wrap
// always take exactly one; zero-quota stages are skipped.
func (p Plan) Quota(s Stage) int {
	switch s {
	case StageIntro, StageWrap:
		return 1
	case StageWarmup:
		return p.Warmup
	case StageCore:
		return p.Core
	case StageFollowup:
		return p.Followup
	default:
		return 0
	}
}

// Next is the stage transition function: given the current stage and the
// number of answers already given in it, it returns the stage the next
// question belongs to.
func Next(s Stage, answeredInStage int, p Plan) Stage {
	if s == StageEnded {
		return StageEnded
	}
	if answeredInStage < p.Quota(s) {
		return s
	}
	for n := s + 1; n < StageEnded; n++ {
		if p.Quota(n) > 0 {
			return n
		}
	}
	return StageEnded
}

type Session struct {
	ID              string    `json:"session_id"`
	UserID          string    `json:"user_id,omitempty"`
	Role            string    `json:"role"`
	Stage           Stage     `json:"stage"`
	AnsweredInStage int       `json:"answered_in_stage"`
	CurrentQuestion string    `json:"current_question"`
	CreatedAt       time.Time `json:"created_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Status          string    `json:"status"`

	History []Message `json:"history,omitempty"`
}

// Message is one chat message kept for prompting the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
