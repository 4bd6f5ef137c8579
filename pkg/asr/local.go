package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/irisvoice/go-iris/internal/httpc"
)

const providerLocal = "local"

// Local implements Provider against a whisper.cpp server running on
// the same host. It is the offline fallback when the hosted backend
// is unreachable.
type Local struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewLocal creates a provider for a local whisper.cpp server.
// The default endpoint is http://127.0.0.1:8080.
func NewLocal(opts ...Option) (*Local, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}

	return &Local{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "asr.local"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Transcribe sends WAV audio to the local server's /inference endpoint.
func (l *Local) Transcribe(ctx context.Context, audio []byte, sampleRate int) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	start := time.Now()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, WrapError(providerLocal, err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, WrapError(providerLocal, err)
	}
	writer.WriteField("response_format", "json")
	writer.WriteField("language", l.config.Language)
	if err := writer.Close(); err != nil {
		return nil, WrapError(providerLocal, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/inference", &body)
	if err != nil {
		return nil, WrapError(providerLocal, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, WrapError(providerLocal, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(data),
			Provider:   providerLocal,
		}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, WrapError(providerLocal, fmt.Errorf("parse response: %w", err))
	}

	text := strings.TrimSpace(parsed.Text)
	l.logger.Debug("transcribed audio locally",
		"bytes", len(audio),
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{
		Text:      text,
		Provider:  providerLocal,
		LatencyMs: latency,
	}, nil
}

// Health checks that the local server is reachable.
func (l *Local) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.baseURL+"/health", nil)
	if err != nil {
		return WrapError(providerLocal, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return WrapError(providerLocal, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "health check failed",
			Provider:   providerLocal,
		}
	}
	return nil
}

// Close releases resources held by the provider.
func (l *Local) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

// Verify Local implements Provider at compile time.
var _ Provider = (*Local)(nil)
