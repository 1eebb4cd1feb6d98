package chat

import (
	"ai-tutor/internal/render"
	"ai-tutor/internal/scale"
	"ai-tutor/internal/store"
)

type EventKind string

const (
	EventAssistantDelta EventKind = "assistantDelta"
	EventLevelObserved  EventKind = "levelObserved"
	EventFeedback       EventKind = "feedback"
	EventTurnFinalized  EventKind = "turnFinalized"
	EventHistory        EventKind = "history"
	EventAssessment     EventKind = "assessment"
	EventError          EventKind = "error"
)

// Event is one server-to-client message on the channel. Fields are
// populated per kind; unused fields are omitted on the wire.
type Event struct {
	Kind     EventKind        `json:"kind"`
	Text     string           `json:"text,omitempty"`
	Format   render.Format    `json:"format,omitempty"`
	Levels   []scale.Level    `json:"levels,omitempty"`
	TurnID   int64            `json:"turnId,omitempty"`
	Turns    []store.Turn     `json:"turns,omitempty"`
	Feedback []store.Feedback `json:"feedback,omitempty"`
}

// Emitter delivers events to one connected client. A failed emit means
// the client is gone; the controller logs it and finishes the exchange
// so the store is never left half-written.
type Emitter interface {
	Emit(ev Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev Event) error

func (f EmitterFunc) Emit(ev Event) error { return f(ev) }
