package plugin

import (
	"time"
)

// EventType identifies a lifecycle event category.
type EventType string

const (
	// EventRegister fires when a plugin is stored in the registry.
	EventRegister EventType = "register"
	// EventInit fires when a plugin completes its init phase.
	EventInit EventType = "init"
	// EventStart fires when a plugin completes its start phase.
	EventStart EventType = "start"
	// EventStop fires when a plugin completes its stop phase.
	EventStop EventType = "stop"
	// EventError fires when any lifecycle phase fails.
	EventError EventType = "error"
)

// EventTypes lists all lifecycle event categories.
var EventTypes = []EventType{EventRegister, EventInit, EventStart, EventStop, EventError}

// Event is a structured observability record emitted at lifecycle phase
// boundaries. Events are fire-and-observe: the core forwards them to
// collectors and observer plugins but never persists them itself.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	Plugin    string                 `json:"plugin"`
	Version   string                 `json:"version"`
	Kind      Kind                   `json:"kind"`
	Status    Status                 `json:"status"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
