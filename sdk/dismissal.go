package embedkit

import (
	"encoding/json"
	"sync"
)

const dismissalKeyPrefix = "embedkit-bubbles-dismissed"

// DismissalState is the client-local flag recording why the invitation
// bubbles are hidden: the visitor closed them, or they opened the chat. It
// is the only state the widget persists beyond the session id.
type DismissalState struct {
	ManuallyDismissed bool `json:"manuallyDismissed"`
	ChatOpened        bool `json:"chatOpened"`
}

// StateStore is the persistence the dismissal flag rides on. Hosts map it
// to whatever local storage they have.
type StateStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// BubbleDismissal tracks bubble visibility for one embed on one origin.
type BubbleDismissal struct {
	store   StateStore
	origin  string
	embedID string
}

// NewBubbleDismissal scopes dismissal state by origin and embed id so two
// embeds on the same page never share a flag.
func NewBubbleDismissal(store StateStore, origin, embedID string) *BubbleDismissal {
	if embedID == "" {
		embedID = "default"
	}
	return &BubbleDismissal{store: store, origin: origin, embedID: embedID}
}

func (b *BubbleDismissal) key() string {
	return dismissalKeyPrefix + "-" + b.origin + "-" + b.embedID
}

// State reads the stored flag. A missing or unreadable entry reads as not
// dismissed; the legacy bare "true" format maps to a manual dismissal.
func (b *BubbleDismissal) State() DismissalState {
	if b.store == nil {
		return DismissalState{}
	}
	raw, ok := b.store.Get(b.key())
	if !ok {
		return DismissalState{}
	}
	if raw == "true" {
		return DismissalState{ManuallyDismissed: true}
	}
	var state DismissalState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return DismissalState{}
	}
	return state
}

// Visible reports whether the bubbles should show.
func (b *BubbleDismissal) Visible() bool {
	state := b.State()
	return !state.ManuallyDismissed && !state.ChatOpened
}

// Dismiss records a manual dismissal.
func (b *BubbleDismissal) Dismiss() error {
	state := b.State()
	state.ManuallyDismissed = true
	return b.save(state)
}

// MarkChatOpened records that the visitor opened the chat.
func (b *BubbleDismissal) MarkChatOpened() error {
	state := b.State()
	state.ChatOpened = true
	return b.save(state)
}

func (b *BubbleDismissal) save(state DismissalState) error {
	if b.store == nil {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.store.Set(b.key(), string(raw))
}

// MemoryStateStore is a process-local StateStore.
type MemoryStateStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string]string)}
}

func (m *MemoryStateStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStateStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
