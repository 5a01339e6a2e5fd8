package duplex

import (
	"log/slog"
	"sync"
	"time"

	"intervue/voice/internal/types"
)

type EventType string

const (
	EventListening EventType = "listening"
	EventPartial   EventType = "partial"
	EventTurn      EventType = "turn"
	EventAIDelta   EventType = "ai_delta"
	EventPhrase    EventType = "phrase"
	EventBargeIn   EventType = "barge_in"
	EventStage     EventType = "stage"
	EventEnded     EventType = "ended"
	EventLog       EventType = "log"
)

type Event struct {
	Type     EventType
	Time     time.Time
	Text     string
	Turn     *Turn
	Stage    types.Stage
	Question string
	Level    slog.Level
}

// emitter delivers events to the callback from its own goroutine, in order,
// so callbacks never run under the controller's locks.
type emitter struct {
	ch   chan Event
	quit chan struct{}
	once sync.Once
}

func newEmitter(fn func(Event)) *emitter {
	if fn == nil {
		return nil
	}
	e := &emitter{ch: make(chan Event, 256), quit: make(chan struct{})}
	go func() {
		for {
			select {
			case ev := <-e.ch:
				fn(ev)
			case <-e.quit:
				for {
					select {
					case ev := <-e.ch:
						fn(ev)
					default:
						return
					}
				}
			}
		}
	}()
	return e
}

// send never blocks; when the consumer is hopelessly behind the event is
// dropped and counted.
func (e *emitter) send(ev Event) {
	if e == nil {
		return
	}
	select {
	case <-e.quit:
		return
	default:
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case e.ch <- ev:
	default:
		metricEventDrops.Inc()
	}
}

// close lets the dispatcher drain what is queued and exit.
func (e *emitter) close() {
	if e == nil {
		return
	}
	e.once.Do(func() { close(e.quit) })
}
