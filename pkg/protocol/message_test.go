package protocol

import (
	"bytes"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
	}{
		{
			name:    "transcription message",
			msgType: TypeTranscription,
			data:    TranscriptionData{Text: "what's the weather", Confidence: 0.94},
		},
		{
			name:    "error message",
			msgType: TypeError,
			data:    ErrorData{ErrorType: "asr_processing_failed", Message: "no engine available"},
		},
		{
			name:    "nil data",
			msgType: TypeStartListening,
			data:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestAudioChunkRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	msg, err := NewAudioChunkMessage(pcm, "pcm16", true)
	if err != nil {
		t.Fatalf("NewAudioChunkMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeAudioChunk {
		t.Fatalf("parsed type = %v, want %v", parsed.Type, TypeAudioChunk)
	}

	chunk, err := parsed.GetAudioChunkData()
	if err != nil {
		t.Fatalf("GetAudioChunkData() error = %v", err)
	}
	if !chunk.IsFinal {
		t.Error("is_final flag lost in transit")
	}
	if chunk.Format != "pcm16" {
		t.Errorf("format = %q, want pcm16", chunk.Format)
	}

	decoded, err := chunk.DecodeAudio()
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Errorf("audio does not round-trip: %v", decoded)
	}
}

func TestTTSChunkMessage(t *testing.T) {
	msg, err := NewTTSChunkMessage([]byte{0xAA, 0xBB}, 3, "pcm16")
	if err != nil {
		t.Fatalf("NewTTSChunkMessage() error = %v", err)
	}

	data, err := msg.GetTTSChunkData()
	if err != nil {
		t.Fatalf("GetTTSChunkData() error = %v", err)
	}
	if data.ChunkIndex != 3 {
		t.Errorf("chunk index = %d, want 3", data.ChunkIndex)
	}

	audio, err := data.DecodeAudio()
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	if len(audio) != 2 {
		t.Errorf("decoded %d bytes, want 2", len(audio))
	}
}

func TestStreamingTerminators(t *testing.T) {
	complete, err := NewStreamingCompleteMessage(9)
	if err != nil {
		t.Fatalf("NewStreamingCompleteMessage() error = %v", err)
	}
	var done StreamingCompleteData
	if err := complete.ParseData(&done); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if done.TotalChunks != 9 {
		t.Errorf("total_chunks = %d, want 9", done.TotalChunks)
	}

	interrupted, err := NewStreamingInterruptedMessage(2)
	if err != nil {
		t.Fatalf("NewStreamingInterruptedMessage() error = %v", err)
	}
	var cut StreamingInterruptedData
	if err := interrupted.ParseData(&cut); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if cut.TotalChunks != 2 {
		t.Errorf("total_chunks = %d, want 2", cut.TotalChunks)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("expected parse error for malformed payload")
	}
}
