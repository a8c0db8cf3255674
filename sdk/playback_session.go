package embedkit

import (
	"context"
	"sync"
)

// PlaybackState is the lifecycle of one playback session.
type PlaybackState string

const (
	PlaybackIdle    PlaybackState = "idle"
	PlaybackLoading PlaybackState = "loading"
	PlaybackReady   PlaybackState = "ready"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackEnded   PlaybackState = "ended"
	PlaybackFailed  PlaybackState = "failed"
)

// BufferingMode is how a playback session received its audio.
type BufferingMode string

const (
	BufferingProgressive BufferingMode = "progressive"
	BufferingWholeFile   BufferingMode = "wholeFile"
)

// PlaybackSession is one text-to-speech attempt: the source text, the
// negotiated format, and the playback handle it exclusively owns. It stays
// around after Speak returns so the same message can be paused, resumed and
// replayed until another message takes the device.
type PlaybackSession struct {
	mu       sync.Mutex
	text     string
	format   AudioFormat
	mode     BufferingMode
	state    PlaybackState
	playback Playback
}

func newPlaybackSession(text string, format AudioFormat, mode BufferingMode) *PlaybackSession {
	return &PlaybackSession{
		text:   text,
		format: format,
		mode:   mode,
		state:  PlaybackLoading,
	}
}

// Text returns the source text the session speaks.
func (ps *PlaybackSession) Text() string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.text
}

// Format returns the negotiated audio format.
func (ps *PlaybackSession) Format() AudioFormat {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.format
}

// Mode returns the buffering mode the session used.
func (ps *PlaybackSession) Mode() BufferingMode {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.mode
}

// State returns the current lifecycle state.
func (ps *PlaybackSession) State() PlaybackState {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.state
}

func (ps *PlaybackSession) attach(playback Playback) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.playback = playback
	if ps.state == PlaybackLoading {
		ps.state = PlaybackReady
	}
}

func (ps *PlaybackSession) play(ctx context.Context) error {
	ps.mu.Lock()
	playback := ps.playback
	ps.mu.Unlock()
	if playback == nil {
		return ErrSynthesisFailed
	}
	if err := playback.Play(ctx); err != nil {
		ps.markFailed()
		return err
	}
	ps.mu.Lock()
	ps.state = PlaybackPlaying
	ps.mu.Unlock()
	return nil
}

// Pause stops output without terminating an in-flight download: the stream
// keeps buffering and the state reads paused, never failed.
func (ps *PlaybackSession) Pause() {
	ps.mu.Lock()
	playback := ps.playback
	if ps.state == PlaybackPlaying {
		ps.state = PlaybackPaused
	}
	ps.mu.Unlock()
	if playback != nil {
		playback.Pause()
	}
}

// CanReplay reports whether the session's audio can be played again without
// re-synthesizing.
func (ps *PlaybackSession) CanReplay() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.playback == nil {
		return false
	}
	switch ps.state {
	case PlaybackReady, PlaybackPaused, PlaybackEnded:
		return true
	default:
		return false
	}
}

func (ps *PlaybackSession) markFailed() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.state = PlaybackFailed
}

// MarkEnded records that the sink finished playing the session's audio.
// Sinks that track playback completion call this; the state machine does
// not depend on it.
func (ps *PlaybackSession) MarkEnded() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.state == PlaybackPlaying || ps.state == PlaybackPaused {
		ps.state = PlaybackEnded
	}
}

// release pauses and detaches the session when another one takes the
// device.
func (ps *PlaybackSession) release() {
	ps.Pause()
}

// PlaybackSlot enforces exclusive ownership of the output device: only one
// PlaybackSession holds it at a time, and installing a new session first
// releases (pauses/detaches) the previous holder.
type PlaybackSlot struct {
	mu      sync.Mutex
	current *PlaybackSession
}

// Acquire installs next as the device holder. The previous holder is
// released before the new one is installed.
func (s *PlaybackSlot) Acquire(next *PlaybackSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current != next {
		s.current.release()
	}
	s.current = next
}

// Current returns the session holding the device, or nil.
func (s *PlaybackSlot) Current() *PlaybackSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Pause pauses the current holder, if any.
func (s *PlaybackSlot) Pause() {
	if sess := s.Current(); sess != nil {
		sess.Pause()
	}
}
