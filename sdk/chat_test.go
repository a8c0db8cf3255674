package embedkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func streamChatPath() string {
	return "/api/embed/" + testEmbedID + "/stream-chat"
}

func TestChatStream_DeliversFramesInOrderAndStopsAtClose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "Hel"})
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "lo"})
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventFinalize, Close: true})
		// Physically arrives, must never be delivered.
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "ghost"})
	})
	client, _ := newTestClient(t, mux)

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	require.Equal(t, "Hel", got[0].TextResponse)
	require.Equal(t, "lo", got[1].TextResponse)
	require.True(t, got[2].Close)
}

func TestChatStream_ServerErrorWithJSONBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})
	client, _ := newTestClient(t, mux)

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})

	require.Len(t, got, 1)
	require.Equal(t, "boom", got[0].Error.String())

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	require.Equal(t, http.StatusInternalServerError, srvErr.Status)
	require.Equal(t, "boom", srvErr.Message)
}

func TestChatStream_ServerErrorWithUnparseableBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	})
	client, _ := newTestClient(t, mux)

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})

	require.Len(t, got, 1)
	require.Equal(t, EventAbort, got[0].Kind)
	require.True(t, got[0].Close)
	require.Contains(t, got[0].Error.String(), "500")

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	require.Equal(t, http.StatusInternalServerError, srvErr.Status)
}

func TestChatStream_MalformedFramesAreDropped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeRawSSE(t, w, "this is not json")
		writeSSE(t, w, ChatEvent{Kind: EventTextChunk, TextResponse: "ok"})
		writeSSE(t, w, ChatEvent{Kind: EventFinalize, Close: true})
	})
	client, _ := newTestClient(t, mux)

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "ok", got[0].TextResponse)
}

func TestChatStream_NaturalEOFWithoutClose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, ChatEvent{Kind: EventTextChunk, TextResponse: "partial"})
	})
	client, _ := newTestClient(t, mux)

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestChatStream_TransportErrorSynthesizesAbort(t *testing.T) {
	client, srv := newTestClient(t, http.NewServeMux())
	srv.Close()

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})

	require.Len(t, got, 1)
	require.Equal(t, EventAbort, got[0].Kind)
	require.True(t, got[0].Close)
	require.Contains(t, got[0].Error.String(), "An error occurred while streaming response.")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestChatStream_CancelSuppressesDelivery(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, ChatEvent{Kind: EventTextChunk, TextResponse: "one"})
		<-release
	})
	client, _ := newTestClient(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan ChatEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Chat.Stream(ctx, "session-1", "hi", func(e ChatEvent) {
			events <- e
		})
	}()

	<-events
	cancel()

	err := <-done
	close(release)
	require.ErrorIs(t, err, context.Canceled)
	// No synthesized abort after cancellation.
	require.Empty(t, events)
}

func TestChatStream_RequestBodyCarriesOverridesVerbatim(t *testing.T) {
	prompt := "be brief"
	temp := 0.2

	var received map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, ChatEvent{Close: true})
	})

	client := newTestClientFor(t, mux, EmbedSettings{
		EmbedID:     testEmbedID,
		Username:    "visitor",
		Prompt:      &prompt,
		Temperature: &temp,
	})

	err := client.Chat.Stream(context.Background(), "session-1", "hello", nil)
	require.NoError(t, err)

	require.JSONEq(t, `"hello"`, string(received["message"]))
	require.JSONEq(t, `"session-1"`, string(received["sessionId"]))
	require.JSONEq(t, `"be brief"`, string(received["prompt"]))
	require.JSONEq(t, `0.2`, string(received["temperature"]))
	// Unset overrides still travel as explicit nulls.
	require.JSONEq(t, `null`, string(received["model"]))
}

func TestChatStream_EmptyInputsRejected(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	err := client.Chat.Stream(context.Background(), "", "hi", nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	err = client.Chat.Stream(context.Background(), "session-1", "", nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestStreamSlot_BeginCancelsPriorSession(t *testing.T) {
	var slot StreamSlot

	first := slot.Begin(context.Background(), "session-1")
	second := slot.Begin(context.Background(), "session-1")

	require.ErrorIs(t, first.Context().Err(), context.Canceled)
	require.NoError(t, second.Context().Err())
	require.NotEqual(t, first.ID, second.ID)
	require.Same(t, second, slot.Current())
}

func TestStreamSlot_CancelReleasesCurrent(t *testing.T) {
	var slot StreamSlot

	sess := slot.Begin(context.Background(), "session-1")
	slot.Cancel()

	require.ErrorIs(t, sess.Context().Err(), context.Canceled)
	require.Nil(t, slot.Current())

	select {
	case <-sess.Done():
	default:
		t.Fatal("expected Done to be closed after Cancel")
	}
}

func TestChatStream_UnknownStatusSynthesizesUnknownAbort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	client, _ := newTestClient(t, mux)

	var got []ChatEvent
	err := client.Chat.Stream(context.Background(), "session-1", "hi", func(e ChatEvent) {
		got = append(got, e)
	})
	require.Error(t, err)
	require.Len(t, got, 1)
	require.Equal(t, EventAbort, got[0].Kind)
	require.True(t, errors.As(err, new(*ServerError)))
}
