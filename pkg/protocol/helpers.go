package protocol

import (
	"encoding/base64"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewAudioChunkMessage creates an inbound audio fragment message
func NewAudioChunkMessage(audio []byte, format string, isFinal bool) (*Message, error) {
	return NewMessage(TypeAudioChunk, AudioChunkData{
		Audio:   base64.StdEncoding.EncodeToString(audio),
		Format:  format,
		IsFinal: isFinal,
	})
}

// NewInterruptMessage creates a barge-in request message
func NewInterruptMessage(reason string) (*Message, error) {
	return NewMessage(TypeInterrupt, InterruptData{Reason: reason})
}

// NewConnectedMessage creates the session handshake message
func NewConnectedMessage(sessionID string) (*Message, error) {
	return NewMessage(TypeConnected, ConnectedData{SessionID: sessionID})
}

// NewTranscriptionMessage creates a transcription message
func NewTranscriptionMessage(text string, confidence float64) (*Message, error) {
	return NewMessage(TypeTranscription, TranscriptionData{
		Text:       text,
		Confidence: confidence,
	})
}

// NewResponseChunkMessage creates an incremental response text message
func NewResponseChunkMessage(text string) (*Message, error) {
	return NewMessage(TypeAgentResponseChunk, ResponseChunkData{Text: text})
}

// NewTTSChunkMessage creates a synthesized audio fragment message
func NewTTSChunkMessage(audio []byte, chunkIndex int, format string) (*Message, error) {
	return NewMessage(TypeTTSChunk, TTSChunkData{
		Audio:      base64.StdEncoding.EncodeToString(audio),
		ChunkIndex: chunkIndex,
		Format:     format,
	})
}

// NewStreamingCompleteMessage marks a fully delivered response
func NewStreamingCompleteMessage(totalChunks int) (*Message, error) {
	return NewMessage(TypeStreamingComplete, StreamingCompleteData{TotalChunks: totalChunks})
}

// NewStreamingInterruptedMessage marks a response cut short
func NewStreamingInterruptedMessage(totalChunks int) (*Message, error) {
	return NewMessage(TypeStreamingInterrupted, StreamingInterruptedData{TotalChunks: totalChunks})
}

// NewVoiceInterruptedMessage acknowledges an interrupt
func NewVoiceInterruptedMessage(reason string) (*Message, error) {
	return NewMessage(TypeVoiceInterrupted, VoiceInterruptedData{Reason: reason})
}

// NewErrorMessage reports a turn-level failure
func NewErrorMessage(errorType, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		ErrorType: errorType,
		Message:   message,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetAudioChunkData extracts audio chunk data from a message
func (m *Message) GetAudioChunkData() (*AudioChunkData, error) {
	var data AudioChunkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAudio decodes the base64 audio payload
func (a *AudioChunkData) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Audio)
}

// GetInterruptData extracts interrupt data from a message
func (m *Message) GetInterruptData() (*InterruptData, error) {
	var data InterruptData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConnectedData extracts handshake data from a message
func (m *Message) GetConnectedData() (*ConnectedData, error) {
	var data ConnectedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTranscriptionData extracts transcription data from a message
func (m *Message) GetTranscriptionData() (*TranscriptionData, error) {
	var data TranscriptionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTTSChunkData extracts TTS chunk data from a message
func (m *Message) GetTTSChunkData() (*TTSChunkData, error) {
	var data TTSChunkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAudio decodes the base64 audio payload
func (t *TTSChunkData) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(t.Audio)
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
