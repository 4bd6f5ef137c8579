package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	wsHandshakeTimeout  = 10 * time.Second
)

// ElevenLabsWS implements Provider over the ElevenLabs stream-input
// WebSocket API. Each Stream call opens a fresh session, sends the
// full segment text, and yields audio chunks as they arrive. The
// overhead of one handshake per segment is paid back by a lower time
// to first audio byte than the HTTP streaming endpoint.
type ElevenLabsWS struct {
	config *Config
	logger *slog.Logger
	dialer *websocket.Dialer
}

// NewElevenLabsWS creates a new WebSocket-based ElevenLabs TTS provider.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &ElevenLabsWS{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.elevenlabs_ws"),
		dialer: &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
	}, nil
}

// Stream opens a stream-input session for the given text and returns
// the resulting audio stream.
func (e *ElevenLabsWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	conn, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}

	// Begin-of-stream message initializes the voice session. The chunk
	// length schedule trades chunk size for latency on the first bytes.
	bos := map[string]interface{}{
		"text": " ",
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabs, fmt.Errorf("send session start: %w", err))
	}

	if err := conn.WriteJSON(map[string]interface{}{"text": text + " "}); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabs, fmt.Errorf("send text: %w", err))
	}

	// Empty text closes the input side; audio keeps arriving until the
	// server marks the stream final.
	if err := conn.WriteJSON(map[string]interface{}{"text": ""}); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabs, fmt.Errorf("send end of input: %w", err))
	}

	conn.SetReadDeadline(time.Now().Add(e.config.StreamTimeout))

	return &wsStream{
		conn:   conn,
		logger: e.logger,
		format: e.outputFormat(),
	}, nil
}

// Synthesize converts text to audio by draining a streaming session.
func (e *ElevenLabsWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := e.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var buf bytes.Buffer
	var latency int64
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		if latency == 0 {
			latency = time.Since(start).Milliseconds()
		}
		buf.Write(chunk)
	}

	format := stream.Format()
	return &AudioResult{
		Audio:     buf.Bytes(),
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  pcmDuration(buf.Len(), format.SampleRate),
	}, nil
}

// Health verifies that a session can be established.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	conn, err := e.dial(ctx)
	if err != nil {
		return err
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

// Close releases resources held by the provider.
func (e *ElevenLabsWS) Close() error {
	return nil
}

func (e *ElevenLabsWS) dial(ctx context.Context) (*websocket.Conn, error) {
	base := e.config.BaseURL
	if base == "" {
		base = elevenLabsWSBaseURL
	}
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		base, e.config.VoiceID, e.config.ModelID, e.config.OutputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	conn, resp, err := e.dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerElevenLabs,
			}
		}
		return nil, WrapError(providerElevenLabs, fmt.Errorf("websocket dial: %w", err))
	}
	return conn, nil
}

func (e *ElevenLabsWS) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}
}

// pcmDuration estimates PCM16 playback duration from byte count.
func pcmDuration(byteCount, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteCount / 2
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// wsStream reads audio chunks from a stream-input session.
type wsStream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	format AudioFormat
	done   bool
}

// Read returns the next audio chunk, or nil once the server marks the
// stream final.
func (s *wsStream) Read() ([]byte, error) {
	if s.done {
		return nil, nil
	}

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.done = true
				return nil, nil
			}
			return nil, WrapError(providerElevenLabs, fmt.Errorf("read audio: %w", err))
		}

		var resp struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			s.logger.Warn("unparseable stream message", "error", err)
			continue
		}

		if resp.IsFinal {
			s.done = true
			return nil, nil
		}
		if resp.Audio == "" {
			continue
		}

		chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
		if err != nil {
			s.logger.Warn("undecodable audio chunk", "error", err)
			continue
		}
		return chunk, nil
	}
}

// Close terminates the session.
func (s *wsStream) Close() error {
	s.done = true
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Format returns the audio format.
func (s *wsStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabsWS implements Provider at compile time.
var _ Provider = (*ElevenLabsWS)(nil)
