// Package asr provides a unified interface for speech-to-text providers.
//
// The pipeline flushes buffered utterance audio, converts it to WAV,
// and hands it to a provider for transcription. Providers are
// interchangeable: a hosted Deepgram backend, a local whisper.cpp
// server for offline fallback, and a mock for tests. Chain composes
// providers with remote-first fallback.
package asr

import (
	"context"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts audio to text. The audio must be WAV-framed
	// PCM16 at the given sample rate.
	Transcribe(ctx context.Context, audio []byte, sampleRate int) (*Result, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Result represents a transcription result.
type Result struct {
	// Text is the transcribed speech.
	Text string

	// Confidence is the provider's confidence score in [0, 1].
	// Zero when the provider does not report one.
	Confidence float64

	// Provider identifies which backend produced the result.
	Provider string

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// Empty reports whether the transcription produced no usable text.
func (r *Result) Empty() bool {
	return r == nil || r.Text == ""
}
