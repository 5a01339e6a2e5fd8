package duplex

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"intervue/voice/internal/types"
)

// State is the controller lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// To validates a transition. Ended is terminal.
func (s State) To(next State) (State, error) {
	switch {
	case s == StateIdle && (next == StateActive || next == StateEnded):
	case s == StateActive && next == StateEnded:
	default:
		return s, fmt.Errorf("duplex: invalid transition %s -> %s", s, next)
	}
	metricTransitions.WithLabelValues(s.String(), next.String()).Inc()
	return next, nil
}

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Turn is one committed transcript entry. Turns are never mutated.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func newTurn(role Role, text string) Turn {
	return Turn{ID: uuid.NewString(), Role: role, Text: text, Timestamp: time.Now()}
}

// SessionState mirrors what the server last told us.
type SessionState struct {
	SessionID       string
	Stage           types.Stage
	CurrentQuestion string
}

// Snapshot is a point-in-time copy of the controller.
type Snapshot struct {
	State     State
	Session   SessionState
	Turns     []Turn
	LiveUser  string
	LiveAI    string
	Speaking  bool
	Listening bool

	// held resources
	HasRecognizer bool
	HasCapture    bool
	HasLLMRequest bool
}
