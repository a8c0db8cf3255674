package embedkit

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SessionService covers the per-session routes: embed status, history and
// reset, plus the client-side session identity the widget keeps per embed.
type SessionService struct {
	client *Client
}

// Enabled reports whether the embed is enabled. A missing endpoint or any
// error is treated as enabled, so an old backend never hides the widget.
func (s *SessionService) Enabled(ctx context.Context) bool {
	var status struct {
		Enabled *bool `json:"enabled"`
	}
	if err := s.client.getJSON(ctx, s.client.embedURL("status"), &status); err != nil {
		s.client.logger.Debug("embed status check failed, assuming enabled", "error", err)
		return true
	}
	return status.Enabled == nil || *status.Enabled
}

// HistoryMessage is one prior turn of the conversation, mapped the way the
// widget consumes it: a fresh ID, the role folded to a sender side, and the
// content mirrored into TextResponse.
type HistoryMessage struct {
	ID           string  `json:"id"`
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	Sender       string  `json:"sender"`
	TextResponse string  `json:"textResponse"`
	SentAt       float64 `json:"sentAt,omitempty"`
}

// History fetches the stored conversation for sessionID.
func (s *SessionService) History(ctx context.Context, sessionID string) ([]HistoryMessage, error) {
	var payload struct {
		History []struct {
			Role    string  `json:"role"`
			Content string  `json:"content"`
			SentAt  float64 `json:"sentAt"`
		} `json:"history"`
	}
	if err := s.client.getJSON(ctx, s.client.embedURL(sessionID), &payload); err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, 0, len(payload.History))
	for _, msg := range payload.History {
		sender := "system"
		if msg.Role == "user" {
			sender = "user"
		}
		messages = append(messages, HistoryMessage{
			ID:           uuid.NewString(),
			Role:         msg.Role,
			Content:      msg.Content,
			Sender:       sender,
			TextResponse: msg.Content,
			SentAt:       msg.SentAt,
		})
	}
	return messages, nil
}

// Reset deletes the stored conversation for sessionID. It reports success
// the way the widget does: true on a 2xx, false on anything else.
func (s *SessionService) Reset(ctx context.Context, sessionID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.embedURL(sessionID), nil)
	if err != nil {
		return false
	}
	resp, err := s.client.do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

// SessionStore persists the widget's session identity between visits.
type SessionStore interface {
	Load(key string) (string, bool)
	Save(key, value string) error
}

// ResolveSessionID returns the stable session id for this embed, minting and
// persisting a fresh uuid on first use. A store error falls back to an
// unpersisted id rather than failing the chat.
func (s *SessionService) ResolveSessionID(store SessionStore) string {
	key := "embedkit_" + s.client.settings.EmbedID + "_session_id"
	if store != nil {
		if id, ok := store.Load(key); ok && id != "" {
			return id
		}
	}
	id := uuid.NewString()
	if store != nil {
		if err := store.Save(key, id); err != nil {
			s.client.logger.Debug("session id not persisted", "error", err)
		}
	}
	return id
}

// MemorySessionStore keeps session ids for the lifetime of the process.
type MemorySessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{values: make(map[string]string)}
}

func (m *MemorySessionStore) Load(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemorySessionStore) Save(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileSessionStore keeps session ids in one file per key under dir, the
// closest Go analogue to the widget's origin-scoped local storage.
type FileSessionStore struct {
	Dir string
}

func (f *FileSessionStore) Load(key string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(f.Dir, sanitizeStoreKey(key)))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (f *FileSessionStore) Save(key, value string) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.Dir, sanitizeStoreKey(key)), []byte(value), 0o600)
}

func sanitizeStoreKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
