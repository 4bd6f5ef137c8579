package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
)

func TestNewElevenLabs(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		_, err := NewElevenLabs(WithVoice("voice-1"))
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("requires voice", func(t *testing.T) {
		_, err := NewElevenLabs(WithAPIKey("key"))
		if !errors.Is(err, ErrNoVoice) {
			t.Errorf("expected ErrNoVoice, got %v", err)
		}
	})

	t.Run("valid config", func(t *testing.T) {
		p, err := NewElevenLabs(WithAPIKey("key"), WithVoice("voice-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()
	})
}

func TestElevenLabsSynthesize(t *testing.T) {
	audio := bytes.Repeat([]byte{0x01, 0x02}, 1600)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		if !strings.Contains(r.URL.Path, "/text-to-speech/voice-1") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != string(EncodingPCM16) {
			t.Errorf("unexpected output_format: %s", got)
		}
		w.Write(audio)
	}))
	defer server.Close()

	p, err := NewElevenLabs(
		WithAPIKey("test-key"),
		WithVoice("voice-1"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	defer p.Close()

	result, err := p.Synthesize(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(result.Audio, audio) {
		t.Errorf("audio mismatch: got %d bytes, want %d", len(result.Audio), len(audio))
	}
	if result.CharCount != len("hello world") {
		t.Errorf("CharCount = %d, want %d", result.CharCount, len("hello world"))
	}
	if result.Format.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", result.Format.SampleRate)
	}
}

func TestElevenLabsStream(t *testing.T) {
	audio := bytes.Repeat([]byte{0xAB}, 10000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stream") {
			t.Errorf("expected stream path, got %s", r.URL.Path)
		}
		w.Write(audio)
	}))
	defer server.Close()

	p, err := NewElevenLabs(
		WithAPIKey("test-key"),
		WithVoice("voice-1"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	defer p.Close()

	stream, err := p.Stream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var got bytes.Buffer
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if chunk == nil {
			break
		}
		if len(chunk) > 4096 {
			t.Errorf("chunk exceeds buffer size: %d", len(chunk))
		}
		got.Write(chunk)
	}
	if got.Len() != len(audio) {
		t.Errorf("streamed %d bytes, want %d", got.Len(), len(audio))
	}
}

func TestElevenLabsErrors(t *testing.T) {
	t.Run("parses detail message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":{"message":"invalid api key","status":"invalid_api_key"}}`))
		}))
		defer server.Close()

		p, _ := NewElevenLabs(WithAPIKey("bad"), WithVoice("voice-1"), WithBaseURL(server.URL))
		defer p.Close()

		_, err := p.Synthesize(context.Background(), "hello")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
		}
		if apiErr.Message != "invalid api key" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("retries on 503", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("audio"))
		}))
		defer server.Close()

		p, _ := NewElevenLabs(WithAPIKey("key"), WithVoice("voice-1"), WithBaseURL(server.URL))
		defer p.Close()

		result, err := p.Synthesize(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if string(result.Audio) != "audio" {
			t.Errorf("unexpected audio: %q", result.Audio)
		}
		if got := atomic.LoadInt32(&attempts); got != 2 {
			t.Errorf("attempts = %d, want 2", got)
		}
	})
}

func TestElevenLabsWSStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	chunks := [][]byte{
		bytes.Repeat([]byte{0x01}, 640),
		bytes.Repeat([]byte{0x02}, 640),
		bytes.Repeat([]byte{0x03}, 320),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Drain BOS, text, and end-of-input messages
		for i := 0; i < 3; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.Errorf("server read %d: %v", i, err)
				return
			}
		}

		for _, chunk := range chunks {
			conn.WriteJSON(map[string]interface{}{
				"audio": base64.StdEncoding.EncodeToString(chunk),
			})
		}
		conn.WriteJSON(map[string]interface{}{"isFinal": true})
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	p, err := NewElevenLabsWS(
		WithAPIKey("test-key"),
		WithVoice("voice-1"),
		WithBaseURL(wsURL+"/text-to-speech"),
	)
	if err != nil {
		t.Fatalf("NewElevenLabsWS: %v", err)
	}
	defer p.Close()

	stream, err := p.Stream(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var got [][]byte
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if chunk == nil {
			break
		}
		got = append(got, chunk)
	}
	if len(got) != len(chunks) {
		t.Fatalf("received %d chunks, want %d", len(got), len(chunks))
	}
	for i := range chunks {
		if !bytes.Equal(got[i], chunks[i]) {
			t.Errorf("chunk %d mismatch", i)
		}
	}
}

func TestMock(t *testing.T) {
	t.Run("records calls", func(t *testing.T) {
		m := NewMock()
		m.Synthesize(context.Background(), "first")
		m.Stream(context.Background(), "second")

		if m.CallCount() != 2 {
			t.Errorf("CallCount = %d, want 2", m.CallCount())
		}
		if m.Calls[0] != "first" || m.Calls[1] != "second" {
			t.Errorf("Calls = %v", m.Calls)
		}

		m.Reset()
		if m.CallCount() != 0 {
			t.Errorf("CallCount after reset = %d", m.CallCount())
		}
	})

	t.Run("programmable chunk count", func(t *testing.T) {
		m := NewMock()
		m.ChunksPerCall = 9
		m.ChunkSize = 100

		stream, err := m.Stream(context.Background(), "anything")
		if err != nil {
			t.Fatalf("Stream: %v", err)
		}

		var count, total int
		for {
			chunk, err := stream.Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if chunk == nil {
				break
			}
			count++
			total += len(chunk)
		}
		if count != 9 {
			t.Errorf("chunks = %d, want 9", count)
		}
		if total != 900 {
			t.Errorf("bytes = %d, want 900", total)
		}
	})

	t.Run("partial read tracks delivery", func(t *testing.T) {
		stream := NewMockStream(9, 320)
		stream.Read()
		stream.Read()
		if stream.Delivered() != 2 {
			t.Errorf("Delivered = %d, want 2", stream.Delivered())
		}
		stream.Close()
		if _, err := stream.Read(); !errors.Is(err, ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	})

	t.Run("with error", func(t *testing.T) {
		m := NewMock().WithError(ErrProviderUnavailable)
		if _, err := m.Stream(context.Background(), "x"); !errors.Is(err, ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})
}
