package embedkit

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

const defaultChunkSize = 8 << 10

// PlaybackCallbacks receive the outcome of one Speak invocation. Exactly one
// terminal callback fires per invocation: OnError, or OnComplete (preceded
// by OnStart). None fires more than once.
//
// OnComplete means the audio is fully buffered (the download finished) on
// every path, progressive and whole-file alike. It does not mean playback
// reached the end of the clip.
type PlaybackCallbacks struct {
	// OnStart fires once, when playback begins.
	OnStart func()
	// OnComplete fires once, when the audio is fully buffered.
	OnComplete func()
	// OnError fires once with a short human-readable message when no path
	// produced playable audio.
	OnError func(message string)
}

// SpeechPlayer drives the adaptive text-to-speech pipeline: negotiate a
// format, stream synthesized audio into a progressive buffer with strict
// backpressure, start playback on the first appended chunk, and degrade to
// whole-file playback when streaming is unsupported or fails.
type SpeechPlayer struct {
	audio     *AudioService
	sink      AudioSink
	caps      MediaCapabilities
	slot      PlaybackSlot
	chunkSize int
	logger    *slog.Logger
}

// NewSpeechPlayer builds a player for the client's audio routes, feeding
// sink under the constraints caps describes.
func NewSpeechPlayer(client *Client, sink AudioSink, caps MediaCapabilities) *SpeechPlayer {
	return &SpeechPlayer{
		audio:     client.Audio,
		sink:      sink,
		caps:      caps,
		chunkSize: defaultChunkSize,
		logger:    client.logger,
	}
}

// Speak synthesizes and plays text, which must already be plain (see
// PlainTextForSpeech). It reports true iff playback was initiated through
// any path: progressive, whole-file-from-stream, or the plain synthesis
// fallback.
//
// The streaming endpoint is always attempted first; the plain endpoint only
// after the streaming one failed, never concurrently. Repeat playback of
// the message currently holding the device reuses its buffered audio
// instead of re-synthesizing.
func (p *SpeechPlayer) Speak(ctx context.Context, text string, cb PlaybackCallbacks) bool {
	g := &outcomeGuard{cb: cb}

	if sess := p.slot.Current(); sess != nil && sess.Text() == text && sess.CanReplay() {
		if err := sess.play(ctx); err == nil {
			g.start()
			g.complete()
			return true
		}
	}

	format := DetectBestAudioFormat(p.caps)
	body, err := p.audio.OpenSpeechStream(ctx, text, format.Name)
	if err != nil {
		p.logger.Debug("speech stream unavailable, using whole-file synthesis", "error", err)
		return p.speakFallback(ctx, text, g)
	}
	defer body.Close()

	if format.CanStream && p.caps.TypeSupported(format.MIMEType) {
		buffer, playback, err := p.sink.OpenProgressive(format.MIMEType)
		if err == nil {
			started, perr := p.streamProgressive(ctx, text, format, body, buffer, playback, g)
			switch {
			case perr == nil:
				g.complete()
				return started
			case errors.Is(perr, errNoAudioContent):
				// A success status with an empty stream carries the same
				// meaning as a 204: no audio to stream.
				return p.speakFallback(ctx, text, g)
			default:
				p.logger.Debug("progressive playback failed", "error", perr)
				g.fail("TTS stream failed")
				return started
			}
		}
		p.logger.Debug("progressive buffering unavailable on sink", "error", err)
	}

	// Whole-file buffering from the streamed response: drain it, then play
	// it as a single clip.
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return p.speakFallback(ctx, text, g)
	}
	return p.playClip(ctx, text, format, &AudioClip{Data: data, MIMEType: format.MIMEType}, BufferingWholeFile, g)
}

// Pause pauses whichever session currently holds the device. An in-flight
// download keeps buffering; the session reads paused, not failed.
func (p *SpeechPlayer) Pause() {
	p.slot.Pause()
}

// Current returns the playback session holding the device, or nil.
func (p *SpeechPlayer) Current() *PlaybackSession {
	return p.slot.Current()
}

// streamProgressive feeds the response body into the media buffer one chunk
// at a time under strict backpressure: append N+1 never begins before the
// update-completion signal for append N. Playback starts, and OnStart
// fires, on the first appended chunk.
func (p *SpeechPlayer) streamProgressive(ctx context.Context, text string, format AudioFormat, body io.Reader, buffer MediaBuffer, playback Playback, g *outcomeGuard) (bool, error) {
	sess := newPlaybackSession(text, format, BufferingProgressive)
	started := false
	chunk := make([]byte, p.chunkSize)

	fail := func(err error) (bool, error) {
		sess.markFailed()
		return started, err
	}

	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			if err := awaitBufferIdle(ctx, buffer); err != nil {
				return fail(err)
			}
			if err := buffer.Append(chunk[:n]); err != nil {
				return fail(err)
			}
			if !started {
				sess.attach(playback)
				p.slot.Acquire(sess)
				if err := sess.play(ctx); err != nil {
					return fail(err)
				}
				started = true
				g.start()
			}
		}

		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF):
			if !started {
				return false, errNoAudioContent
			}
			if err := awaitBufferIdle(ctx, buffer); err != nil {
				return fail(err)
			}
			if err := buffer.Finalize(); err != nil {
				return fail(err)
			}
			return started, nil
		default:
			return fail(readErr)
		}
	}
}

// speakFallback is the strict-ordered second attempt: one whole-file
// synthesis request, played in full, after the streaming endpoint failed.
func (p *SpeechPlayer) speakFallback(ctx context.Context, text string, g *outcomeGuard) bool {
	clip, err := p.audio.Synthesize(ctx, text)
	if err != nil || clip == nil {
		g.fail("TTS failed")
		return false
	}
	format := AudioFormat{Name: FormatMP3, MIMEType: clip.MIMEType}
	return p.playClip(ctx, text, format, clip, BufferingWholeFile, g)
}

func (p *SpeechPlayer) playClip(ctx context.Context, text string, format AudioFormat, clip *AudioClip, mode BufferingMode, g *outcomeGuard) bool {
	playback, err := p.sink.LoadClip(clip)
	if err != nil {
		g.fail("TTS failed")
		return false
	}

	sess := newPlaybackSession(text, format, mode)
	sess.attach(playback)
	p.slot.Acquire(sess)
	if err := sess.play(ctx); err != nil {
		g.fail("TTS failed")
		return false
	}

	g.start()
	// The clip is fully buffered by construction.
	g.complete()
	return true
}

// awaitBufferIdle blocks until the buffer has no append in flight. The loop
// re-checks after every signal because a stale completion may be pending
// from an earlier append.
func awaitBufferIdle(ctx context.Context, buffer MediaBuffer) error {
	for buffer.Updating() {
		select {
		case <-buffer.UpdateEnd():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// outcomeGuard enforces the callback contract: OnStart at most once, then
// exactly one of OnComplete or OnError.
type outcomeGuard struct {
	cb       PlaybackCallbacks
	started  bool
	terminal bool
}

func (g *outcomeGuard) start() {
	if g.started || g.terminal {
		return
	}
	g.started = true
	if g.cb.OnStart != nil {
		g.cb.OnStart()
	}
}

func (g *outcomeGuard) complete() {
	if g.terminal {
		return
	}
	g.terminal = true
	if g.cb.OnComplete != nil {
		g.cb.OnComplete()
	}
}

func (g *outcomeGuard) fail(message string) {
	if g.terminal {
		return
	}
	g.terminal = true
	if g.cb.OnError != nil {
		g.cb.OnError(message)
	}
}
