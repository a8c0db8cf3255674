package embedkit

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind is the backend-assigned type of a chat stream frame. The set is
// backend-defined and open-ended; unknown kinds are treated as pass-through
// text by MessageAccumulator.
type EventKind string

const (
	EventTextChunk      EventKind = "textResponseChunk"
	EventTextResponse   EventKind = "textResponse"
	EventAbort          EventKind = "abort"
	EventSourcesOnly    EventKind = "sourcesOnly"
	EventFinalize       EventKind = "finalizeResponseStream"
	EventStopGeneration EventKind = "stopGeneration"
)

// Source is one citation record attached to an assistant response.
type Source struct {
	ID    string  `json:"id,omitempty"`
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
	Chunk string  `json:"chunk,omitempty"`
	Text  string  `json:"text,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// ChatEvent is one parsed increment of assistant output delivered over the
// chat stream. Events are ephemeral; callers fold a sequence of them into a
// single growing message record (see MessageAccumulator).
//
// Once an event with Close set arrives, no further events are delivered for
// that stream.
type ChatEvent struct {
	ID           string     `json:"id,omitempty"`
	UUID         string     `json:"uuid,omitempty"`
	Kind         EventKind  `json:"type,omitempty"`
	TextResponse string     `json:"textResponse,omitempty"`
	Sources      []Source   `json:"sources,omitempty"`
	Close        bool       `json:"close,omitempty"`
	Error        EventError `json:"error,omitempty"`
}

// EventError is the error field of a wire frame. Backends emit it as a
// string, null, or the literal false; anything non-string decodes to the
// empty string so a quirky frame does not get dropped as malformed.
type EventError string

func (e *EventError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = EventError(s)
		return nil
	}
	*e = ""
	return nil
}

func (e EventError) String() string { return string(e) }

// newAbortEvent synthesizes the terminal event the consumer delivers when
// the backend reported an HTTP error with an unparseable body, or when the
// transport failed mid-stream.
func newAbortEvent(message string) ChatEvent {
	return ChatEvent{
		ID:    uuid.NewString(),
		Kind:  EventAbort,
		Close: true,
		Error: EventError(message),
	}
}

func statusAbortMessage(status int) string {
	return fmt.Sprintf("An error occurred while streaming response. Code %d", status)
}
