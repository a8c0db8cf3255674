// Package embedkit is a Go client for embeddable-chat backends: it speaks
// the embed HTTP surface (status, history, reset, stream-chat, audio) and
// provides the streaming-response and progressive text-to-speech pipelines
// a chat widget is built from.
//
// The package has no opinion about rendering. It produces ordered ChatEvents
// and feeds audio bytes into an AudioSink; what the host does with either is
// its own business.
package embedkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Client is the main entry point for the SDK.
type Client struct {
	Chat     *ChatService
	Sessions *SessionService
	Audio    *AudioService

	settings   EmbedSettings
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a client for one embed. Settings must carry at least
// BaseAPIURL and EmbedID.
func NewClient(settings EmbedSettings, opts ...ClientOption) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings.BaseAPIURL = strings.TrimRight(settings.BaseAPIURL, "/")

	c := &Client{
		settings: settings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}

	c.Chat = &ChatService{client: c}
	c.Sessions = &SessionService{client: c}
	c.Audio = &AudioService{client: c}
	return c, nil
}

// Settings returns a copy of the embed settings the client was built with.
func (c *Client) Settings() EmbedSettings {
	return c.settings
}

// embedURL joins path segments under {base}/{embedId}.
func (c *Client) embedURL(parts ...string) string {
	segments := append([]string{c.settings.BaseAPIURL, c.settings.EmbedID}, parts...)
	return strings.Join(segments, "/")
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}
	return resp, nil
}

// getJSON performs a GET and decodes a JSON body. Non-2xx responses become
// *ServerError; no retries, per the widget contract.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: http.MethodGet, URL: url, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return serverErrorFromBody(resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// openStream POSTs a JSON body and hands back the raw response for streaming
// consumption. The caller owns resp.Body on a nil error.
func (c *Client) openStream(ctx context.Context, url string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.do(req)
}

func serverErrorFromBody(status int, body []byte) *ServerError {
	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Error != "" {
			return &ServerError{Status: status, Message: decoded.Error}
		}
		if decoded.Message != "" {
			return &ServerError{Status: status, Message: decoded.Message}
		}
	}
	return &ServerError{Status: status}
}
