package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/embedkit/embedkit/sdk"
)

// ffplaySink feeds synthesized audio into a local ffplay process, one
// process per playback. Progressive appends go straight to ffplay's stdin,
// so audio starts before the download finishes; pause and resume map to
// SIGSTOP and SIGCONT.
type ffplaySink struct {
	path   string
	volume int
	logger *slog.Logger

	mu      sync.Mutex
	current *ffplayProc
}

func newFFPlaySink(path string, volume int, logger *slog.Logger) *ffplaySink {
	if path == "" {
		path = "ffplay"
	}
	if volume <= 0 || volume > 100 {
		volume = 80
	}
	return &ffplaySink{path: path, volume: volume, logger: logger}
}

func (s *ffplaySink) OpenProgressive(mimeType string) (embedkit.MediaBuffer, embedkit.Playback, error) {
	proc, err := s.spawn()
	if err != nil {
		return nil, nil, embedkit.ErrProgressiveUnsupported
	}
	buffer := &ffplayBuffer{proc: proc, updateEnd: make(chan struct{}, 1)}
	return buffer, proc, nil
}

func (s *ffplaySink) LoadClip(clip *embedkit.AudioClip) (embedkit.Playback, error) {
	proc, err := s.spawn()
	if err != nil {
		return nil, err
	}
	proc.pending = clip.Data
	return proc, nil
}

// spawn starts a fresh ffplay, killing whichever one was playing before.
// The sink is the process-level analogue of the playback slot: one audio
// output at a time.
func (s *ffplaySink) spawn() (*ffplayProc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.kill()
		s.current = nil
	}

	cmd := exec.Command(s.path,
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-volume", fmt.Sprintf("%d", s.volume),
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, err
	}
	s.logger.Debug("ffplay started", "pid", cmd.Process.Pid)

	proc := &ffplayProc{cmd: cmd, stdin: stdin}
	go func(c *exec.Cmd) {
		_ = c.Wait()
	}(cmd)

	s.current = proc
	return proc, nil
}

// ffplayProc is one ffplay invocation: a Playback handle over its process.
type ffplayProc struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending []byte // whole clip, written on first Play
	playing bool
	dead    bool
}

func (p *ffplayProc) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return fmt.Errorf("ffplay is not running")
	}

	if p.pending != nil {
		data := p.pending
		p.pending = nil
		stdin := p.stdin
		go func() {
			_, _ = stdin.Write(data)
			_ = stdin.Close()
		}()
	}
	if p.playing {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return err
	}
	p.playing = true
	return nil
}

func (p *ffplayProc) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead || !p.playing {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGSTOP)
	p.playing = false
}

func (p *ffplayProc) write(chunk []byte) error {
	p.mu.Lock()
	stdin := p.stdin
	dead := p.dead
	p.mu.Unlock()
	if dead || stdin == nil {
		return fmt.Errorf("ffplay is not running")
	}
	_, err := stdin.Write(chunk)
	return err
}

func (p *ffplayProc) closeInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return nil
	}
	err := p.stdin.Close()
	p.stdin = nil
	return err
}

func (p *ffplayProc) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return
	}
	if p.stdin != nil {
		_ = p.stdin.Close()
		p.stdin = nil
	}
	if p.cmd.Process != nil {
		// A stopped process never sees SIGKILL until it is resumed.
		_ = p.cmd.Process.Signal(syscall.SIGCONT)
		_ = p.cmd.Process.Kill()
	}
	p.dead = true
}

// ffplayBuffer adapts ffplay's stdin to the progressive buffer contract:
// each append hands one chunk to a writer goroutine and the completion
// signal fires once the pipe accepted it.
type ffplayBuffer struct {
	proc      *ffplayProc
	updateEnd chan struct{}

	mu       sync.Mutex
	updating bool
	err      error
}

func (b *ffplayBuffer) Append(chunk []byte) error {
	b.mu.Lock()
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return err
	}
	if b.updating {
		b.mu.Unlock()
		return fmt.Errorf("append while ffplay write in flight")
	}
	b.updating = true
	b.mu.Unlock()

	owned := append([]byte(nil), chunk...)
	go func() {
		err := b.proc.write(owned)
		b.mu.Lock()
		b.updating = false
		if err != nil && b.err == nil {
			b.err = err
		}
		b.mu.Unlock()
		select {
		case b.updateEnd <- struct{}{}:
		default:
		}
	}()
	return nil
}

func (b *ffplayBuffer) Updating() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updating
}

func (b *ffplayBuffer) UpdateEnd() <-chan struct{} { return b.updateEnd }

func (b *ffplayBuffer) Finalize() error {
	b.mu.Lock()
	if err := b.err; err != nil {
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()
	return b.proc.closeInput()
}
