package embedkit

import (
	"context"
	"errors"
	"sync"
)

// MediaBuffer is a progressive playback buffer, modelled on browser
// source-buffer semantics: an Append starts an asynchronous update, and the
// next Append must wait for the previous update's completion signal.
type MediaBuffer interface {
	// Append schedules one chunk for buffering. Calling it while a prior
	// append is still updating is a contract violation and returns an
	// error. The chunk slice is reused by the caller; implementations must
	// copy what they keep.
	Append(chunk []byte) error
	// Updating reports whether an append is still in flight.
	Updating() bool
	// UpdateEnd receives one signal per completed append.
	UpdateEnd() <-chan struct{}
	// Finalize closes the buffer for writing once the source stream ends.
	Finalize() error
}

// Playback is a handle on buffered audio. Exactly one Playback may hold the
// output device at a time; PlaybackSlot enforces that.
type Playback interface {
	// Play starts or resumes playback of whatever is buffered.
	Play(ctx context.Context) error
	// Pause stops output without discarding the buffer.
	Pause()
}

// AudioSink is where synthesized audio goes. Implementations range from a
// real audio device to MemorySink for tests and headless hosts.
type AudioSink interface {
	// OpenProgressive prepares a progressive pipeline for mimeType. Sinks
	// without progressive support return ErrProgressiveUnsupported, which
	// sends the player down the whole-file path.
	OpenProgressive(mimeType string) (MediaBuffer, Playback, error)
	// LoadClip prepares whole-file playback of a complete clip.
	LoadClip(clip *AudioClip) (Playback, error)
}

// ErrProgressiveUnsupported signals that a sink cannot buffer progressively.
var ErrProgressiveUnsupported = errors.New("embedkit: sink does not support progressive buffering")

// errBufferBusy is the MediaBuffer contract violation: an append was issued
// while the previous one was still updating.
var errBufferBusy = errors.New("embedkit: append while buffer is updating")

// MemorySink is an in-memory AudioSink. It records everything fed to it and
// honors the asynchronous update discipline of MediaBuffer, which makes it
// both the test double and a usable sink for hosts that only want the bytes.
type MemorySink struct {
	// Progressive controls whether OpenProgressive succeeds.
	Progressive bool

	mu      sync.Mutex
	buffers []*MemoryBuffer
	clips   []*AudioClip
	plays   int
	pauses  int
}

// NewMemorySink returns a progressive-capable MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{Progressive: true}
}

func (s *MemorySink) OpenProgressive(mimeType string) (MediaBuffer, Playback, error) {
	if !s.Progressive {
		return nil, nil, ErrProgressiveUnsupported
	}
	buffer := newMemoryBuffer(mimeType)
	s.mu.Lock()
	s.buffers = append(s.buffers, buffer)
	s.mu.Unlock()
	return buffer, &memoryPlayback{sink: s}, nil
}

func (s *MemorySink) LoadClip(clip *AudioClip) (Playback, error) {
	s.mu.Lock()
	s.clips = append(s.clips, clip)
	s.mu.Unlock()
	return &memoryPlayback{sink: s}, nil
}

// Buffers returns every progressive buffer the sink has opened.
func (s *MemorySink) Buffers() []*MemoryBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*MemoryBuffer(nil), s.buffers...)
}

// Clips returns every whole-file clip the sink has loaded.
func (s *MemorySink) Clips() []*AudioClip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*AudioClip(nil), s.clips...)
}

// Plays returns how many times playback was started or resumed.
func (s *MemorySink) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// Pauses returns how many times playback was paused.
func (s *MemorySink) Pauses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses
}

type memoryPlayback struct {
	sink *MemorySink
}

func (p *memoryPlayback) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.sink.mu.Lock()
	p.sink.plays++
	p.sink.mu.Unlock()
	return nil
}

func (p *memoryPlayback) Pause() {
	p.sink.mu.Lock()
	p.sink.pauses++
	p.sink.mu.Unlock()
}

// MemoryBuffer implements MediaBuffer with asynchronous update completion:
// each Append flips the buffer into the updating state and a background
// signal flips it back, so a caller that skips the wait is caught by
// errBufferBusy (and counted in Violations).
type MemoryBuffer struct {
	mimeType  string
	updateEnd chan struct{}

	mu         sync.Mutex
	chunks     [][]byte
	updating   bool
	finalized  bool
	violations int
}

func newMemoryBuffer(mimeType string) *MemoryBuffer {
	return &MemoryBuffer{
		mimeType:  mimeType,
		updateEnd: make(chan struct{}, 1),
	}
}

func (b *MemoryBuffer) Append(chunk []byte) error {
	b.mu.Lock()
	if b.finalized {
		b.mu.Unlock()
		return errors.New("embedkit: append after finalize")
	}
	if b.updating {
		b.violations++
		b.mu.Unlock()
		return errBufferBusy
	}
	b.updating = true
	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.mu.Unlock()

	go func() {
		b.mu.Lock()
		b.updating = false
		b.mu.Unlock()
		select {
		case b.updateEnd <- struct{}{}:
		default:
		}
	}()
	return nil
}

func (b *MemoryBuffer) Updating() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updating
}

func (b *MemoryBuffer) UpdateEnd() <-chan struct{} { return b.updateEnd }

func (b *MemoryBuffer) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updating {
		b.violations++
		return errBufferBusy
	}
	b.finalized = true
	return nil
}

// MIMEType returns the type the buffer was opened with.
func (b *MemoryBuffer) MIMEType() string { return b.mimeType }

// Chunks returns the appended chunks in order.
func (b *MemoryBuffer) Chunks() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.chunks...)
}

// Bytes returns the concatenated appended audio.
func (b *MemoryBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []byte
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Finalized reports whether the buffer was closed for writing.
func (b *MemoryBuffer) Finalized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalized
}

// Violations counts appends issued while an update was outstanding.
func (b *MemoryBuffer) Violations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.violations
}
