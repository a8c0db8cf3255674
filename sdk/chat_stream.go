package embedkit

import (
	"context"
	"strings"
	"sync/atomic"
)

// AssistantMessage is the folded result of one stream-chat exchange.
type AssistantMessage struct {
	ID      string
	Text    string
	Sources []Source
	Error   string
	Closed  bool
}

// MessageAccumulator folds a sequence of ChatEvents into a single growing
// assistant message. Unknown event kinds are treated as pass-through text.
type MessageAccumulator struct {
	id      string
	text    strings.Builder
	sources []Source
	errMsg  string
	closed  bool
}

// Fold applies one event. Events arriving after a close are ignored.
func (a *MessageAccumulator) Fold(event ChatEvent) {
	if a.closed {
		return
	}
	if a.id == "" {
		if event.UUID != "" {
			a.id = event.UUID
		} else {
			a.id = event.ID
		}
	}

	switch event.Kind {
	case EventAbort, EventStopGeneration:
		// Terminal; no text to apply.
	case EventSourcesOnly:
		a.sources = append(a.sources, event.Sources...)
	default:
		a.text.WriteString(event.TextResponse)
		a.sources = append(a.sources, event.Sources...)
	}

	if event.Error != "" {
		a.errMsg = event.Error.String()
	}
	if event.Close {
		a.closed = true
	}
}

// Message returns the message folded so far.
func (a *MessageAccumulator) Message() AssistantMessage {
	return AssistantMessage{
		ID:      a.id,
		Text:    a.text.String(),
		Sources: a.sources,
		Error:   a.errMsg,
		Closed:  a.closed,
	}
}

// ChatStream wraps one stream-chat exchange in channel form for callers who
// prefer ranging over events to registering a callback. It folds the frames
// into the final AssistantMessage as they pass through.
type ChatStream struct {
	events chan ChatEvent
	done   chan struct{}

	message AssistantMessage
	err     error
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// OpenStream starts the exchange and returns immediately. The stream's
// goroutine owns the connection; Close abandons it.
func (s *ChatService) OpenStream(ctx context.Context, sessionID, message string) *ChatStream {
	sctx, cancel := context.WithCancel(ctx)
	st := &ChatStream{
		events: make(chan ChatEvent),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(st.done)
		defer close(st.events)
		defer cancel()

		var acc MessageAccumulator
		st.err = s.Stream(sctx, sessionID, message, func(event ChatEvent) {
			acc.Fold(event)
			if st.closed.Load() {
				return
			}
			select {
			case st.events <- event:
			case <-sctx.Done():
			}
		})
		st.message = acc.Message()
	}()

	return st
}

// Events returns the channel of stream events. It is closed when the
// exchange ends.
func (st *ChatStream) Events() <-chan ChatEvent {
	return st.events
}

// Message blocks until the exchange ends and returns the folded message.
func (st *ChatStream) Message() AssistantMessage {
	<-st.done
	return st.message
}

// Err blocks until the exchange ends and returns its terminal error, if any.
func (st *ChatStream) Err() error {
	<-st.done
	return st.err
}

// Close abandons the exchange and releases the connection.
func (st *ChatStream) Close() {
	if st.closed.CompareAndSwap(false, true) {
		st.cancel()
	}
}
