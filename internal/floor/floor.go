package floor

import "strings"

// Decision represents the action the floor manager wants to take.
type Decision struct {
	ShouldStop bool
	Reason     string // e.g., "barge_in"
}

// Manager tracks who holds the floor. While the assistant is speaking, user
// speech of at least MinChars takes the floor back. Whether playback is
// running is always the caller's view (the playback queue); the manager only
// tracks the assistant's in-flight answer.
type Manager struct {
	MinChars int

	aiBusy bool
}

func New(minChars int) *Manager {
	if minChars < 1 {
		minChars = 1
	}
	return &Manager{MinChars: minChars}
}

func (m *Manager) OnLLMStarted() { m.aiBusy = true }

func (m *Manager) OnLLMFinished() { m.aiBusy = false }

// OnPartial is called for every partial transcript.
func (m *Manager) OnPartial(text string, speaking bool) Decision {
	if !speaking {
		return Decision{}
	}
	if len([]rune(strings.TrimSpace(text))) < m.MinChars {
		return Decision{}
	}
	m.aiBusy = false
	return Decision{ShouldStop: true, Reason: "barge_in"}
}

// OnFinal is a new user turn: any in-flight answer or playback is superseded.
func (m *Manager) OnFinal(speaking bool) Decision {
	if m.aiBusy || speaking {
		m.aiBusy = false
		return Decision{ShouldStop: true, Reason: "new_turn"}
	}
	return Decision{}
}

// Busy reports whether an assistant answer is being generated.
func (m *Manager) Busy() bool { return m.aiBusy }
