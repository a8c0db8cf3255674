package embedkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChatService streams chat exchanges with the embed backend.
type ChatService struct {
	client *Client
}

// ErrEmptyInput is returned when sessionID or message is empty.
var ErrEmptyInput = errors.New("embedkit: sessionID and message must be non-empty")

// streamChatRequest is the stream-chat body. The overrides are always
// present, null when unset, exactly as the embed configures them.
type streamChatRequest struct {
	Message     string   `json:"message"`
	SessionID   string   `json:"sessionId"`
	Username    string   `json:"username,omitempty"`
	Prompt      *string  `json:"prompt"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
}

// Stream submits one message and delivers the backend's response frames to
// onEvent, one ChatEvent per frame, in arrival order, never concurrently.
//
// Error handling follows the widget contract: an HTTP error status yields a
// single terminal ChatEvent (the backend's own JSON error when parseable,
// otherwise a synthesized abort carrying the status code); a transport
// failure mid-stream yields a synthesized abort with the underlying message.
// In every case the terminal event is delivered before Stream returns, and
// the returned error is the typed taxonomy error for programmatic callers.
// Frames that fail to parse as JSON are dropped silently. Nothing is
// retried.
//
// Cancelling ctx closes the connection and suppresses further delivery
// without synthesizing an event; Stream then returns ctx.Err().
func (s *ChatService) Stream(ctx context.Context, sessionID, message string, onEvent func(ChatEvent)) error {
	if sessionID == "" || message == "" {
		return ErrEmptyInput
	}
	if onEvent == nil {
		onEvent = func(ChatEvent) {}
	}

	settings := s.client.settings
	body := streamChatRequest{
		Message:     message,
		SessionID:   sessionID,
		Username:    settings.Username,
		Prompt:      settings.Prompt,
		Model:       settings.Model,
		Temperature: settings.Temperature,
	}

	endpoint := s.client.embedURL("stream-chat")
	resp, err := s.client.openStream(ctx, endpoint, body, "text/event-stream")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onEvent(newAbortEvent("An error occurred while streaming response. " + err.Error()))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return s.consumeErrorResponse(resp, onEvent)
	}

	parser := newSSEParser(resp.Body)
	for {
		frame, err := parser.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			onEvent(newAbortEvent("An error occurred while streaming response. " + err.Error()))
			return &TransportError{Op: http.MethodPost, URL: endpoint, Err: err}
		}

		if len(frame.Data) == 0 {
			continue
		}

		var event ChatEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			// Malformed frame, not a stream failure.
			s.client.logger.Debug("dropping malformed chat frame", "error", err)
			continue
		}

		onEvent(event)
		if event.Close {
			// Stream terminated; stop listening and release the connection
			// even if more frames physically arrive.
			return nil
		}
	}
}

// consumeErrorResponse turns a non-success stream-chat response into the
// single terminal ChatEvent the UI layer renders, mirroring the open
// handshake of the widget: a parseable JSON body is forwarded verbatim, an
// unparseable one becomes a synthesized abort with the status code.
func (s *ChatService) consumeErrorResponse(resp *http.Response, onEvent func(ChatEvent)) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= http.StatusBadRequest {
		var event ChatEvent
		if err := json.Unmarshal(raw, &event); err == nil {
			onEvent(event)
			return &ServerError{Status: resp.StatusCode, Message: event.Error.String()}
		}
		onEvent(newAbortEvent(statusAbortMessage(resp.StatusCode)))
		return &ServerError{Status: resp.StatusCode}
	}

	// Not OK but not an error status either (a redirect the transport did
	// not follow, for instance). Nothing useful in the body.
	onEvent(newAbortEvent("An error occurred while streaming response. Unknown Error."))
	return &ServerError{Status: resp.StatusCode}
}

// StreamSession is one in-flight stream-chat exchange. Its cancellation
// token is owned exclusively by the session; see StreamSlot for the
// one-live-session-per-submit rule.
type StreamSession struct {
	ID        string
	SessionID string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the context governing the exchange.
func (s *StreamSession) Context() context.Context { return s.ctx }

// Cancel aborts the exchange, closing the transport and suppressing further
// event delivery.
func (s *StreamSession) Cancel() { s.cancel() }

// Done is closed once the session has been cancelled or superseded.
func (s *StreamSession) Done() <-chan struct{} { return s.ctx.Done() }

// StreamSlot enforces the single-in-flight-stream invariant: at most one
// StreamSession is live per chat submission. Begin cancels any prior
// session before installing the new one, so a resubmission never leaks the
// previous connection.
type StreamSlot struct {
	mu      sync.Mutex
	current *StreamSession
}

// Begin replaces the live session. The prior session, if any, is cancelled
// first.
func (sl *StreamSlot) Begin(ctx context.Context, sessionID string) *StreamSession {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.current != nil {
		sl.current.cancel()
	}

	sctx, cancel := context.WithCancel(ctx)
	sl.current = &StreamSession{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		StartedAt: time.Now(),
		ctx:       sctx,
		cancel:    cancel,
	}
	return sl.current
}

// Cancel aborts the live session, if any. Used when the chat window closes.
func (sl *StreamSlot) Cancel() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.current != nil {
		sl.current.cancel()
		sl.current = nil
	}
}

// Current returns the live session, or nil.
func (sl *StreamSlot) Current() *StreamSession {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.current
}
