package embedkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const testEmbedID = "embed-1"

// newTestClient builds a client against an httptest backend. The base URL
// gets the /api/embed suffix real deployments use so route derivation is
// exercised too.
func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(EmbedSettings{
		BaseAPIURL: srv.URL + "/api/embed",
		EmbedID:    testEmbedID,
		Username:   "visitor",
	}, opts...)
	require.NoError(t, err)
	return client, srv
}

// newTestClientFor is newTestClient with caller-supplied settings; the
// BaseAPIURL is filled in from the test server.
func newTestClientFor(t *testing.T, handler http.Handler, settings EmbedSettings) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	settings.BaseAPIURL = srv.URL + "/api/embed"
	client, err := NewClient(settings)
	require.NoError(t, err)
	return client
}

// writeSSE writes one event-stream frame carrying v as JSON.
func writeSSE(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	require.NoError(t, err)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// writeRawSSE writes an event-stream frame verbatim.
func writeRawSSE(t *testing.T, w http.ResponseWriter, raw string) {
	t.Helper()

	_, err := fmt.Fprintf(w, "data: %s\n\n", raw)
	require.NoError(t, err)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
