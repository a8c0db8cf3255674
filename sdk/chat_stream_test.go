package embedkit

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageAccumulator_FoldsChunksAndSources(t *testing.T) {
	var acc MessageAccumulator
	acc.Fold(ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "The answer "})
	acc.Fold(ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "is 42."})
	acc.Fold(ChatEvent{UUID: "m1", Kind: EventSourcesOnly, Sources: []Source{{Title: "Guide"}}})
	acc.Fold(ChatEvent{UUID: "m1", Kind: EventFinalize, Close: true})

	msg := acc.Message()
	require.Equal(t, "m1", msg.ID)
	require.Equal(t, "The answer is 42.", msg.Text)
	require.Len(t, msg.Sources, 1)
	require.True(t, msg.Closed)
	require.Empty(t, msg.Error)
}

func TestMessageAccumulator_IgnoresEventsAfterClose(t *testing.T) {
	var acc MessageAccumulator
	acc.Fold(ChatEvent{Kind: EventTextChunk, TextResponse: "done"})
	acc.Fold(ChatEvent{Kind: EventFinalize, Close: true})
	acc.Fold(ChatEvent{Kind: EventTextChunk, TextResponse: " extra"})

	require.Equal(t, "done", acc.Message().Text)
}

func TestMessageAccumulator_AbortCarriesErrorNotText(t *testing.T) {
	var acc MessageAccumulator
	acc.Fold(ChatEvent{Kind: EventTextChunk, TextResponse: "partial"})
	acc.Fold(ChatEvent{Kind: EventAbort, TextResponse: "should not render", Error: "boom", Close: true})

	msg := acc.Message()
	require.Equal(t, "partial", msg.Text)
	require.Equal(t, "boom", msg.Error)
	require.True(t, msg.Closed)
}

func TestMessageAccumulator_UnknownKindPassesThrough(t *testing.T) {
	var acc MessageAccumulator
	acc.Fold(ChatEvent{Kind: "futureKind", TextResponse: "text"})
	require.Equal(t, "text", acc.Message().Text)
}

func TestOpenStream_RangesAndFolds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "Hi "})
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventTextChunk, TextResponse: "there"})
		writeSSE(t, w, ChatEvent{UUID: "m1", Kind: EventFinalize, Close: true})
	})
	client, _ := newTestClient(t, mux)

	st := client.Chat.OpenStream(context.Background(), "session-1", "hi")

	var kinds []EventKind
	for event := range st.Events() {
		kinds = append(kinds, event.Kind)
	}

	require.NoError(t, st.Err())
	require.Equal(t, []EventKind{EventTextChunk, EventTextChunk, EventFinalize}, kinds)

	msg := st.Message()
	require.Equal(t, "Hi there", msg.Text)
	require.True(t, msg.Closed)
}

func TestOpenStream_CloseAbandonsExchange(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc(streamChatPath(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, ChatEvent{Kind: EventTextChunk, TextResponse: "one"})
		<-release
	})
	client, _ := newTestClient(t, mux)

	st := client.Chat.OpenStream(context.Background(), "session-1", "hi")
	<-st.Events()
	st.Close()

	err := st.Err()
	close(release)
	require.ErrorIs(t, err, context.Canceled)
}
