package local

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Player sinks synthesized audio on the local machine.
type Player interface {
	// Play writes one PCM16 chunk to the output device.
	Play(chunk []byte) error

	// Stop cancels the current playback immediately.
	Stop() error

	// Close releases the output device.
	Close() error
}

// ExecPlayer pipes raw PCM into a command line player process. The
// process is started lazily on the first chunk and killed on Stop, so
// an interrupt cuts audio already handed to the player's buffer.
type ExecPlayer struct {
	sampleRate int

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewExecPlayer creates a player for 16kHz mono PCM16 output.
func NewExecPlayer(sampleRate int) *ExecPlayer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &ExecPlayer{sampleRate: sampleRate}
}

// Play implements Player.
func (p *ExecPlayer) Play(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil {
		if err := p.start(); err != nil {
			return err
		}
	}

	if _, err := p.stdin.Write(chunk); err != nil {
		p.reset()
		return fmt.Errorf("local: play: %w", err)
	}
	return nil
}

// Stop implements Player. Killing the process discards audio already
// buffered inside it, which a graceful drain would keep playing.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.reset()
	return nil
}

// Close implements Player, draining the current playback.
func (p *ExecPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.cmd != nil {
		p.cmd.Wait()
	}
	p.reset()
	return nil
}

// start launches the first available player binary. Caller holds the
// mutex.
func (p *ExecPlayer) start() error {
	rate := strconv.Itoa(p.sampleRate)

	var cmd *exec.Cmd
	switch {
	case available("play"): // sox
		cmd = exec.Command("play", "-q", "-t", "raw", "-r", rate, "-e", "signed", "-b", "16", "-c", "1", "-")
	case available("aplay"):
		cmd = exec.Command("aplay", "-q", "-t", "raw", "-r", rate, "-f", "S16_LE", "-c", "1", "-")
	case available("ffplay"):
		cmd = exec.Command("ffplay", "-f", "s16le", "-ar", rate, "-ac", "1", "-nodisp", "-autoexit", "-loglevel", "quiet", "-")
	default:
		return fmt.Errorf("local: no audio player found (tried play, aplay, ffplay)")
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("local: player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("local: start player: %w", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	return nil
}

// reset clears process state. Caller holds the mutex.
func (p *ExecPlayer) reset() {
	p.cmd = nil
	p.stdin = nil
}

func available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// MockPlayer records playback for tests.
type MockPlayer struct {
	mu     sync.Mutex
	Chunks [][]byte
	Stops  int
}

// NewMockPlayer creates a recording player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play implements Player.
func (p *MockPlayer) Play(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	p.Chunks = append(p.Chunks, buf)
	return nil
}

// Stop implements Player.
func (p *MockPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stops++
	return nil
}

// Close implements Player.
func (p *MockPlayer) Close() error { return nil }

// ChunkCount returns how many chunks were played.
func (p *MockPlayer) ChunkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Chunks)
}

// StopCount returns how many times playback was cancelled.
func (p *MockPlayer) StopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Stops
}

// Verify implementations at compile time.
var (
	_ Player = (*ExecPlayer)(nil)
	_ Player = (*MockPlayer)(nil)
)
