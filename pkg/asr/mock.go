package asr

import (
	"context"
	"sync"
)

// Mock is a mock ASR provider for testing.
// It records calls and returns configurable responses.
type Mock struct {
	mu sync.Mutex

	// TranscribeFunc overrides the default Transcribe behavior.
	TranscribeFunc func(ctx context.Context, audio []byte, sampleRate int) (*Result, error)

	// HealthFunc overrides the default Health behavior.
	HealthFunc func(ctx context.Context) error

	// Text is the transcript the default behavior returns.
	Text string

	// Confidence is the confidence the default behavior reports.
	Confidence float64

	// Calls records the byte length of each transcription request.
	Calls []int
}

// NewMock creates a mock that transcribes everything to the given text.
func NewMock(text string) *Mock {
	return &Mock{Text: text, Confidence: 0.95}
}

// Transcribe implements Provider.
func (m *Mock) Transcribe(ctx context.Context, audio []byte, sampleRate int) (*Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, len(audio))
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, sampleRate)
	}

	return &Result{
		Text:       m.Text,
		Confidence: m.Confidence,
		Provider:   "mock",
	}, nil
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

// CallCount returns the number of transcription requests recorded.
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
	m.TranscribeFunc = func(ctx context.Context, audio []byte, sampleRate int) (*Result, error) {
		return nil, err
	}
	m.HealthFunc = func(ctx context.Context) error {
		return err
	}
	return m
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
