package embedkit

import (
	"errors"
	"fmt"
	"net/url"
)

// TransportError represents HTTP transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, etc.) while talking to the embed backend.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from server errors (*ServerError).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ServerError is a non-success HTTP response from the embed backend.
// Message carries the backend's own error text when the body was parseable
// JSON; otherwise it is empty and only the status code is known.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}

// ErrSynthesisFailed is returned when every text-to-speech path, streaming
// and whole-file alike, has failed.
var ErrSynthesisFailed = errors.New("embedkit: all synthesis paths failed")

// errNoAudioContent marks a synthesis response that succeeded but carried no
// audio (204 or an empty body). It triggers the whole-file fallback.
var errNoAudioContent = errors.New("embedkit: no audio content")

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
