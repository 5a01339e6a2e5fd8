// Package interview holds the interview flow on both sides of the wire: the
// gateway's Engine, which walks a session through its stages and builds the
// model prompt for each turn, and the Client the voice core uses to start and
// end sessions.
package interview

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"intervue/voice/internal/types"
)

var ErrEnded = errors.New("interview: session has ended")

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Bank lists the planned questions per stage. Questions are used in order and
// the last one repeats when a stage asks for more answers than it has.
type Bank map[types.Stage][]string

// DefaultBank is a generic behavioural and technical interview.
var DefaultBank = Bank{
	types.StageIntro: {
		"Hi, thanks for joining. To start, could you tell me a little about yourself?",
	},
	types.StageWarmup: {
		"What drew you to this kind of role?",
		"What are you most comfortable working on day to day?",
	},
	types.StageCore: {
		"Tell me about a recent project you are proud of and your part in it.",
		"Describe a time you disagreed with a teammate. How did you resolve it?",
		"Walk me through how you would debug a service that became slow overnight.",
		"How do you decide when a piece of work is good enough to ship?",
	},
	types.StageFollowup: {
		"Looking back on that project, what would you do differently?",
		"What did you learn from the hardest bug you have chased?",
	},
	types.StageWrap: {
		"That covers what I wanted to ask. Do you have any questions for me?",
	},
}

const defaultSystemPrompt = "You are a friendly but rigorous interviewer running a spoken mock interview. " +
	"Answers are short because they are read aloud: two or three sentences, no lists, no markdown."

// Engine runs the stage plan.
type Engine struct {
	Plan         types.Plan
	Role         string
	SystemPrompt string
	Bank         Bank
	now          func() time.Time
}

func NewEngine(plan types.Plan, role, systemPrompt string) *Engine {
	return &Engine{Plan: plan, Role: role, SystemPrompt: systemPrompt, Bank: DefaultBank, now: time.Now}
}

// Step is the outcome of one answer: where the interview goes next.
type Step struct {
	Stage    types.Stage
	Question string
	Ended    bool
}

// Begin puts a new session on its first question.
func (e *Engine) Begin(sess *types.Session) {
	sess.Stage = types.StageIntro
	sess.AnsweredInStage = 0
	sess.Status = StatusActive
	if sess.Role == "" {
		sess.Role = e.Role
	}
	sess.CurrentQuestion = e.question(types.StageIntro, 0)
	sess.History = []types.Message{{Role: "assistant", Content: sess.CurrentQuestion}}
}

// Answer records lastUser as the answer to the current question, advances
// the session and returns the chat messages for the model's reply.
func (e *Engine) Answer(sess *types.Session, lastUser string) (Step, []types.Message, error) {
	if sess.Status == StatusEnded || sess.Stage == types.StageEnded {
		return Step{}, nil, ErrEnded
	}
	sess.History = append(sess.History, types.Message{Role: "user", Content: lastUser})
	sess.AnsweredInStage++

	next := types.Next(sess.Stage, sess.AnsweredInStage, e.Plan)
	if next != sess.Stage {
		sess.Stage = next
		sess.AnsweredInStage = 0
	}
	step := Step{Stage: sess.Stage}
	if sess.Stage == types.StageEnded {
		step.Ended = true
		e.end(sess)
	} else {
		step.Question = e.question(sess.Stage, sess.AnsweredInStage)
		sess.CurrentQuestion = step.Question
	}
	return step, e.prompt(sess, step), nil
}

// Reply appends the model's finished answer to the history.
func (e *Engine) Reply(sess *types.Session, text string) {
	if text = strings.TrimSpace(text); text != "" {
		sess.History = append(sess.History, types.Message{Role: "assistant", Content: text})
	}
}

// End closes the session. Ending twice is a no-op.
func (e *Engine) End(sess *types.Session) {
	if sess.Status == StatusEnded {
		return
	}
	sess.Stage = types.StageEnded
	e.end(sess)
}

func (e *Engine) end(sess *types.Session) {
	now := e.now().UTC()
	sess.Status = StatusEnded
	sess.EndedAt = &now
	sess.CurrentQuestion = ""
}

func (e *Engine) question(st types.Stage, idx int) string {
	qs := e.Bank[st]
	if len(qs) == 0 {
		return ""
	}
	if idx >= len(qs) {
		idx = len(qs) - 1
	}
	return qs[idx]
}

func (e *Engine) prompt(sess *types.Session, step Step) []types.Message {
	var sys strings.Builder
	sys.WriteString(orDefault(e.SystemPrompt, defaultSystemPrompt))
	if sess.Role != "" {
		fmt.Fprintf(&sys, "\nThe candidate is interviewing for a %s role.", sess.Role)
	}
	if step.Ended {
		sys.WriteString("\nThe interview is over. Briefly acknowledge the last answer, thank the candidate and say goodbye. Do not ask anything else.")
	} else {
		fmt.Fprintf(&sys, "\nCurrent stage: %s. Briefly acknowledge the last answer, then ask exactly this next question: %q", step.Stage, step.Question)
	}

	msgs := make([]types.Message, 0, len(sess.History)+1)
	msgs = append(msgs, types.Message{Role: "system", Content: sys.String()})
	msgs = append(msgs, sess.History...)
	return msgs
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
