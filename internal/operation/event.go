package operation

import (
	"encoding/json"
	"fmt"
)

// EventType tags the messages sent back to the client.
type EventType string

const (
	EventStart    EventType = "start"
	EventOutput   EventType = "output"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message in an operation's lifetime. Which fields are
// meaningful depends on Type; MarshalJSON emits only those.
type Event struct {
	Type    EventType
	Message string
	Data    string
	Success bool
}

// Started is the first event of every session that reaches a process.
func Started(message string) Event {
	return Event{Type: EventStart, Message: message}
}

// Output carries one raw chunk of process output.
func Output(chunk []byte) Event {
	return Event{Type: EventOutput, Data: string(chunk)}
}

// Completed is the terminal event for a process that ran to exit.
func Completed(success bool, message string) Event {
	return Event{Type: EventComplete, Success: success, Message: message}
}

// Failed is the terminal event for a session that could not run its process.
func Failed(message string) Event {
	return Event{Type: EventError, Message: message}
}

// Terminal reports whether no further events may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

type messageWire struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

type outputWire struct {
	Type EventType `json:"type"`
	Data string    `json:"data"`
}

type completeWire struct {
	Type    EventType `json:"type"`
	Success bool      `json:"success"`
	Message string    `json:"message"`
}

// MarshalJSON writes the wire shape for the event's type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStart, EventError:
		return json.Marshal(messageWire{Type: e.Type, Message: e.Message})
	case EventOutput:
		return json.Marshal(outputWire{Type: e.Type, Data: e.Data})
	case EventComplete:
		return json.Marshal(completeWire{Type: e.Type, Success: e.Success, Message: e.Message})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// UnmarshalJSON reads any of the wire shapes.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type    EventType `json:"type"`
		Message string    `json:"message"`
		Data    string    `json:"data"`
		Success bool      `json:"success"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Type {
	case EventStart, EventOutput, EventComplete, EventError:
	default:
		return fmt.Errorf("unknown event type %q", wire.Type)
	}

	*e = Event{Type: wire.Type, Message: wire.Message, Data: wire.Data, Success: wire.Success}
	return nil
}

// Emitter receives a session's events in order. Emit is never called
// concurrently for the same session and must not block.
type Emitter interface {
	Emit(Event)
}
