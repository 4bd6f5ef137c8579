// Package protocol defines the WebSocket message types for the voice
// pipeline. This package is shared between the gateway and any client
// driving a conversation over the wire.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeAudioChunk     MessageType = "audio_chunk"     // Microphone audio fragment
	TypeInterrupt      MessageType = "interrupt"       // Barge-in request
	TypeStartListening MessageType = "start_listening" // Begin accepting audio
	TypeStopListening  MessageType = "stop_listening"  // Stop accepting audio

	// Server → Client messages
	TypeConnected            MessageType = "connected"             // Session handshake
	TypeTranscription        MessageType = "transcription"         // What the user said
	TypeAgentResponseChunk   MessageType = "agent_response_chunk"  // Incremental response text
	TypeTTSChunk             MessageType = "tts_chunk"             // Synthesized audio fragment
	TypeStreamingComplete    MessageType = "streaming_complete"    // Response fully delivered
	TypeStreamingInterrupted MessageType = "streaming_interrupted" // Response cut short
	TypeVoiceInterrupted     MessageType = "voice_interrupted"     // Interrupt acknowledged
	TypeError                MessageType = "error"                 // Turn-level failure
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// AudioChunkData carries one fragment of microphone audio.
type AudioChunkData struct {
	Audio   string `json:"audio_chunk"` // base64 encoded
	Format  string `json:"format"`      // "pcm16", "webm", "ogg"
	IsFinal bool   `json:"is_final"`    // End of the utterance
}

// InterruptData requests cancellation of the in-flight response.
type InterruptData struct {
	Reason string `json:"reason"` // e.g. "user_speaking", "manual"
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ConnectedData is the handshake sent once a session is registered.
type ConnectedData struct {
	SessionID string `json:"session_id"`
}

// TranscriptionData carries the recognized user speech.
type TranscriptionData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ResponseChunkData carries one increment of the agent's text reply.
type ResponseChunkData struct {
	Text string `json:"text"`
}

// TTSChunkData carries one fragment of synthesized speech.
type TTSChunkData struct {
	Audio      string `json:"audio_chunk"` // base64 encoded
	ChunkIndex int    `json:"chunk_index"`
	Format     string `json:"format"` // e.g. "pcm16", "mp3"
}

// StreamingCompleteData marks a fully delivered response.
type StreamingCompleteData struct {
	TotalChunks int `json:"total_chunks"`
}

// StreamingInterruptedData marks a response cut short by an interrupt.
// TotalChunks counts only the chunks actually delivered.
type StreamingInterruptedData struct {
	TotalChunks int `json:"total_chunks"`
}

// VoiceInterruptedData acknowledges an interrupt request.
type VoiceInterruptedData struct {
	Reason string `json:"reason"`
}

// ErrorData reports a turn-level failure. The session stays open.
type ErrorData struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}
