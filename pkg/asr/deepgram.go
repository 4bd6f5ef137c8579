package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/irisvoice/go-iris/internal/httpc"
)

const (
	deepgramBaseURL  = "https://api.deepgram.com/v1"
	providerDeepgram = "deepgram"
)

// Deepgram implements Provider over the Deepgram pre-recorded API.
type Deepgram struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewDeepgram creates a new Deepgram transcription provider.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = deepgramBaseURL
	}

	return &Deepgram{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "asr.deepgram"),
		baseURL: baseURL,
	}, nil
}

// Transcribe sends WAV audio to Deepgram and returns the transcript.
func (d *Deepgram) Transcribe(ctx context.Context, audio []byte, sampleRate int) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	start := time.Now()

	url := fmt.Sprintf("%s/listen?model=%s&language=%s&smart_format=true&sample_rate=%d",
		d.baseURL, d.config.Model, d.config.Language, sampleRate)

	resp, err := d.post(ctx, url, audio)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, d.parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("read response: %w", err))
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("parse response: %w", err))
	}

	result := &Result{Provider: providerDeepgram, LatencyMs: latency}
	if len(parsed.Results.Channels) > 0 && len(parsed.Results.Channels[0].Alternatives) > 0 {
		alt := parsed.Results.Channels[0].Alternatives[0]
		result.Text = alt.Transcript
		result.Confidence = alt.Confidence
	}

	d.logger.Debug("transcribed audio",
		"bytes", len(audio),
		"chars", len(result.Text),
		"confidence", result.Confidence,
		"latency_ms", latency,
	)

	return result, nil
}

// Health checks API connectivity and API key validity.
func (d *Deepgram) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/projects", d.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return WrapError(providerDeepgram, err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return WrapError(providerDeepgram, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return d.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (d *Deepgram) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// post sends the audio payload with bounded retries.
func (d *Deepgram) post(ctx context.Context, url string, audio []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(audio))
		if err != nil {
			return nil, WrapError(providerDeepgram, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Token "+d.config.APIKey)
		req.Header.Set("Content-Type", "audio/wav")

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerDeepgram, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &APIError{
				StatusCode: resp.StatusCode,
				Message:    "retryable error",
				Provider:   providerDeepgram,
			}
			d.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}
	return nil, lastErr
}

// parseError reads and parses an error response.
func (d *Deepgram) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		ErrCode string `json:"err_code"`
		ErrMsg  string `json:"err_msg"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.ErrMsg != "" {
		message = errResp.ErrMsg
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerDeepgram,
	}
}

// Verify Deepgram implements Provider at compile time.
var _ Provider = (*Deepgram)(nil)
