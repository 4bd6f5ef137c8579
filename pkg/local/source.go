package local

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Source produces fixed-size frames of microphone audio.
type Source interface {
	// ReadFrame returns the next PCM16 frame, or io.EOF when the
	// source is exhausted.
	ReadFrame() ([]byte, error)

	// Close releases the capture device.
	Close() error
}

// ExecSource captures microphone audio through a command line
// recorder, mirroring how ExecPlayer sinks it.
type ExecSource struct {
	frameBytes int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewExecSource starts capturing 16kHz mono PCM16 in frames of
// frameBytes. Zero frameBytes uses 640 (one 20ms frame).
func NewExecSource(sampleRate, frameBytes int) (*ExecSource, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if frameBytes <= 0 {
		frameBytes = 640
	}
	rate := strconv.Itoa(sampleRate)

	var cmd *exec.Cmd
	switch {
	case available("arecord"):
		cmd = exec.Command("arecord", "-q", "-t", "raw", "-r", rate, "-f", "S16_LE", "-c", "1", "-")
	case available("rec"): // sox
		cmd = exec.Command("rec", "-q", "-t", "raw", "-r", rate, "-e", "signed", "-b", "16", "-c", "1", "-")
	default:
		return nil, fmt.Errorf("local: no audio recorder found (tried arecord, rec)")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("local: recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("local: start recorder: %w", err)
	}

	return &ExecSource{
		frameBytes: frameBytes,
		cmd:        cmd,
		stdout:     stdout,
	}, nil
}

// ReadFrame implements Source.
func (s *ExecSource) ReadFrame() ([]byte, error) {
	frame := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(s.stdout, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Close implements Source.
func (s *ExecSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

// MockSource replays scripted frames for tests.
type MockSource struct {
	mu     sync.Mutex
	frames [][]byte
}

// NewMockSource creates a source that yields the given frames then EOF.
func NewMockSource(frames ...[]byte) *MockSource {
	return &MockSource{frames: frames}
}

// ReadFrame implements Source.
func (s *MockSource) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

// Close implements Source.
func (s *MockSource) Close() error { return nil }

// Verify implementations at compile time.
var (
	_ Source = (*ExecSource)(nil)
	_ Source = (*MockSource)(nil)
)
