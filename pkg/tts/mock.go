package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is a mock TTS provider for testing.
// It records calls and returns configurable responses.
type Mock struct {
	mu sync.Mutex

	// SynthesizeFunc overrides the default Synthesize behavior.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// StreamFunc overrides the default Stream behavior.
	StreamFunc func(ctx context.Context, text string) (AudioStream, error)

	// HealthFunc overrides the default Health behavior.
	HealthFunc func(ctx context.Context) error

	// Calls records all synthesis requests.
	Calls []string

	// ChunkSize controls how many bytes each default stream chunk
	// carries. Zero means 320 (one 20ms PCM16 frame at 16kHz).
	ChunkSize int

	// ChunksPerCall controls how many chunks the default stream
	// yields. Zero means one chunk per 10 characters of text,
	// minimum one.
	ChunksPerCall int
}

// NewMock creates a new mock TTS provider.
func NewMock() *Mock {
	return &Mock{}
}

// Synthesize implements Provider.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record(text)

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}

	audio := make([]byte, m.chunkSize()*m.chunkCount(text))
	return &AudioResult{
		Audio:     audio,
		Format:    mockFormat(),
		CharCount: len(text),
		Duration:  pcmDuration(len(audio), 16000),
	}, nil
}

// Stream implements Provider.
func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.record(text)

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}

	return NewMockStream(m.chunkCount(text), m.chunkSize()), nil
}

// Health implements Provider.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	return nil
}

// CallCount returns the number of synthesis requests recorded.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// WithError returns a mock that always fails with the given error.
func (m *Mock) WithError(err error) *Mock {
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		return nil, err
	}
	m.StreamFunc = func(ctx context.Context, text string) (AudioStream, error) {
		return nil, err
	}
	m.HealthFunc = func(ctx context.Context) error {
		return err
	}
	return m
}

func (m *Mock) record(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, text)
}

func (m *Mock) chunkSize() int {
	if m.ChunkSize > 0 {
		return m.ChunkSize
	}
	return 320
}

func (m *Mock) chunkCount(text string) int {
	if m.ChunksPerCall > 0 {
		return m.ChunksPerCall
	}
	n := len(text) / 10
	if n < 1 {
		n = 1
	}
	return n
}

func mockFormat() AudioFormat {
	return AudioFormat{
		Encoding:   EncodingPCM16,
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

// MockStream is a mock audio stream yielding a fixed number of chunks.
type MockStream struct {
	chunks [][]byte
	index  int
	closed bool

	// Delay is an optional pause before each Read returns, useful for
	// exercising interrupt checkpoints mid-stream.
	Delay time.Duration
}

// NewMockStream creates a stream that yields count chunks of size bytes.
func NewMockStream(count, size int) *MockStream {
	chunks := make([][]byte, count)
	for i := range chunks {
		chunk := make([]byte, size)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		chunks[i] = chunk
	}
	return &MockStream{chunks: chunks}
}

// NewMockStreamChunks creates a stream from explicit chunks.
func NewMockStreamChunks(chunks [][]byte) *MockStream {
	return &MockStream{chunks: chunks}
}

// Read implements AudioStream.
func (s *MockStream) Read() ([]byte, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	if s.index >= len(s.chunks) {
		return nil, nil
	}
	chunk := s.chunks[s.index]
	s.index++
	return chunk, nil
}

// Close implements AudioStream.
func (s *MockStream) Close() error {
	s.closed = true
	return nil
}

// Format implements AudioStream.
func (s *MockStream) Format() AudioFormat {
	return mockFormat()
}

// Delivered returns how many chunks have been read so far.
func (s *MockStream) Delivered() int {
	return s.index
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
var _ AudioStream = (*MockStream)(nil)
