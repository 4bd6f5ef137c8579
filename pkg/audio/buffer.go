// Package audio provides the per-session intake buffer, the pre-ASR
// quality gate, and the WAV transcode shim.
package audio

import (
	"sync"
)

// DefaultFlushBytes is ~1 second of 16kHz mono PCM16.
const DefaultFlushBytes = 32000

// Buffer accumulates audio fragments for one session until there is
// enough speech to transcribe. A flush returns the accumulated bytes
// and clears the buffer.
//
// Each buffer is owned by the pipeline instance serving its session;
// the mutex only guards against the transport appending while a flush
// is in progress.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	threshold int
}

// NewBuffer creates a buffer that flushes at the given byte threshold.
// A threshold of 0 uses DefaultFlushBytes.
func NewBuffer(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultFlushBytes
	}
	return &Buffer{threshold: threshold}
}

// Append adds a fragment and reports whether the buffer is ready to
// flush. The buffer is ready when the fragment is marked final, or
// when the audio already accumulated before this fragment had reached
// the threshold. Checking the pre-append length keeps an utterance
// that straddles the threshold in one flush instead of splitting its
// tail into a second transcription.
func (b *Buffer) Append(chunk []byte, final bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ready := final || len(b.data) >= b.threshold
	b.data = append(b.data, chunk...)
	return ready
}

// Flush returns the accumulated bytes and clears the buffer. It
// returns nil when the buffer is empty.
func (b *Buffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return nil
	}
	out := b.data
	b.data = nil
	return out
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
