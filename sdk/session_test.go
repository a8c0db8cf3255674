package embedkit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func embedRoute(parts ...string) string {
	path := "/api/embed/" + testEmbedID
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

func TestSessionEnabled(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"explicitly enabled", `{"enabled":true}`, true},
		{"explicitly disabled", `{"enabled":false}`, false},
		{"field absent", `{}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(embedRoute("status"), func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			client, _ := newTestClient(t, mux)
			require.Equal(t, tc.want, client.Sessions.Enabled(context.Background()))
		})
	}
}

func TestSessionEnabled_BackendErrorMeansEnabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(embedRoute("status"), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	client, _ := newTestClient(t, mux)
	require.True(t, client.Sessions.Enabled(context.Background()))
}

func TestSessionHistory_MapsRolesToSenders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(embedRoute("session-1"), func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"history": []map[string]any{
				{"role": "user", "content": "hello", "sentAt": 1700000000},
				{"role": "assistant", "content": "hi there", "sentAt": 1700000001},
			},
		})
	})
	client, _ := newTestClient(t, mux)

	history, err := client.Sessions.History(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	require.Equal(t, "user", history[0].Sender)
	require.Equal(t, "system", history[1].Sender)
	require.Equal(t, "hi there", history[1].Content)
	require.Equal(t, "hi there", history[1].TextResponse)
	require.NotEmpty(t, history[0].ID)
	require.NotEqual(t, history[0].ID, history[1].ID)
}

// A reset wipes the stored conversation: a history fetch right after must
// come back empty even though the session id is unchanged.
func TestSessionReset_ClearsHistory(t *testing.T) {
	var mu sync.Mutex
	turns := []map[string]any{{"role": "user", "content": "hello"}}

	mux := http.NewServeMux()
	mux.HandleFunc(embedRoute("session-1"), func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodDelete:
			turns = nil
			w.WriteHeader(http.StatusOK)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"history": turns})
		}
	})
	client, _ := newTestClient(t, mux)

	before, err := client.Sessions.History(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, before, 1)

	require.True(t, client.Sessions.Reset(context.Background(), "session-1"))

	after, err := client.Sessions.History(context.Background(), "session-1")
	require.NoError(t, err)
	require.Empty(t, after)
}

func TestSessionReset_FailureReportsFalse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(embedRoute("session-1"), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, mux)
	require.False(t, client.Sessions.Reset(context.Background(), "session-1"))
}

func TestResolveSessionID_StableAcrossCalls(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())
	store := NewMemorySessionStore()

	first := client.Sessions.ResolveSessionID(store)
	second := client.Sessions.ResolveSessionID(store)
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}

func TestResolveSessionID_NilStoreStillMints(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())
	require.NotEmpty(t, client.Sessions.ResolveSessionID(nil))
}

func TestFileSessionStore_RoundTrip(t *testing.T) {
	store := &FileSessionStore{Dir: t.TempDir()}

	_, ok := store.Load("embedkit_embed-1_session_id")
	require.False(t, ok)

	require.NoError(t, store.Save("embedkit_embed-1_session_id", "abc"))
	got, ok := store.Load("embedkit_embed-1_session_id")
	require.True(t, ok)
	require.Equal(t, "abc", got)
}

func TestSanitizeStoreKey(t *testing.T) {
	require.Equal(t, "a_b_c-1.txt", sanitizeStoreKey("a/b c-1.txt"))
}
