// Package local is the two-unit transport adapter for running the
// assistant on one machine: a Listener unit that captures microphone
// audio and enqueues commands, and a Speaker unit that dequeues them
// and speaks the responses. Both share one pipeline's command queue
// and one session's state.
package local

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/audio"
	"github.com/irisvoice/go-iris/pkg/command"
	"github.com/irisvoice/go-iris/pkg/pipeline"
	"github.com/irisvoice/go-iris/pkg/protocol"
	"github.com/irisvoice/go-iris/pkg/session"
	"github.com/irisvoice/go-iris/pkg/store"
)

// silenceFrames ends an utterance: ~300ms of consecutive quiet 20ms
// frames.
const silenceFrames = 15

// minUtteranceBytes discards accidental blips shorter than ~200ms.
const minUtteranceBytes = 6400

// Runner drives the Listener and Speaker units.
type Runner struct {
	pipe       *pipeline.Pipeline
	asr        asr.Provider
	source     Source
	player     *playerConn
	sess       *session.Session
	gate       *audio.Gate
	logger     *slog.Logger
	sampleRate int
}

// NewRunner builds a local runner around an existing pipeline. The
// pipeline's providers answer; the runner owns capture and playback.
func NewRunner(pipe *pipeline.Pipeline, asrProvider asr.Provider, source Source, player Player, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn := &playerConn{player: player, logger: logger}
	registry := session.NewRegistry(store.NewNop(), 0, logger)
	sess, err := registry.Open(context.Background(), conn, "local")
	if err != nil {
		return nil, err
	}

	return &Runner{
		pipe:       pipe,
		asr:        asrProvider,
		source:     source,
		player:     conn,
		sess:       sess,
		gate:       audio.NewGate(),
		logger:     logger.With("component", "local"),
		sampleRate: config.DefaultSampleRate,
	}, nil
}

// Session returns the runner's single local session.
func (r *Runner) Session() *session.Session {
	return r.sess
}

// Run starts both units and blocks until the context ends or the
// audio source is exhausted.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	var listenErr error
	go func() {
		defer wg.Done()
		defer cancel() // source exhaustion stops the speaker too
		listenErr = r.listen(ctx)
	}()
	go func() {
		defer wg.Done()
		r.speak(ctx)
	}()

	wg.Wait()
	if errors.Is(listenErr, io.EOF) {
		return nil
	}
	return listenErr
}

// listen is the Listener unit: frame capture, voice gating, utterance
// assembly, transcription, classification, enqueue.
func (r *Runner) listen(ctx context.Context) error {
	var utterance []byte
	quiet := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame, err := r.source.ReadFrame()
		if err != nil {
			// Flush whatever was captured before the source ended.
			if len(utterance) >= minUtteranceBytes {
				r.finishUtterance(ctx, utterance)
			}
			return err
		}

		voiced := audio.RMS(frame) >= r.gate.MinEnergy
		switch {
		case voiced:
			utterance = append(utterance, frame...)
			quiet = 0
		case len(utterance) > 0:
			utterance = append(utterance, frame...)
			quiet++
			if quiet >= silenceFrames {
				if len(utterance) >= minUtteranceBytes {
					r.finishUtterance(ctx, utterance)
				}
				utterance = nil
				quiet = 0
			}
		}
	}
}

// finishUtterance turns captured audio into a queued command.
func (r *Runner) finishUtterance(ctx context.Context, pcm []byte) {
	wav, err := audio.ToWAV(ctx, pcm, "pcm16", r.sampleRate)
	if err != nil {
		r.logger.Error("utterance conversion failed", "error", err)
		return
	}

	result, err := r.asr.Transcribe(ctx, wav, r.sampleRate)
	if err != nil {
		r.logger.Error("utterance transcription failed", "error", err)
		return
	}
	if result.Empty() {
		return
	}

	cmd := command.Classify(result.Text)
	r.logger.Info("heard", "text", result.Text, "kind", cmd.Kind)

	// Interrupting speech cancels playback before the command even
	// reaches the queue, so the speaker falls silent immediately.
	if cmd.Interrupts() {
		r.sess.Interrupt()
		if err := r.player.player.Stop(); err != nil {
			r.logger.Warn("playback cancel failed", "error", err)
		}
	}
	r.pipe.Queue().Enqueue(cmd)
}

// speak is the Speaker unit: a bounded-poll dequeue loop driving the
// pipeline into the local player.
func (r *Runner) speak(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		cmd, ok := r.pipe.Queue().Dequeue(config.DefaultDequeuePoll)
		if !ok {
			continue
		}
		res := r.pipe.Execute(ctx, r.sess, cmd)
		if res.Err != nil {
			r.logger.Error("turn failed", "kind", cmd.Kind, "error", res.Err)
		}
	}
}

// playerConn adapts the pipeline's wire messages to local playback.
type playerConn struct {
	player Player
	logger *slog.Logger
}

// Send implements session.Conn.
func (c *playerConn) Send(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypeTTSChunk:
		data, err := msg.GetTTSChunkData()
		if err != nil {
			return err
		}
		chunk, err := data.DecodeAudio()
		if err != nil {
			return err
		}
		return c.player.Play(chunk)

	case protocol.TypeStreamingInterrupted:
		return c.player.Stop()

	case protocol.TypeAgentResponseChunk, protocol.TypeTranscription,
		protocol.TypeStreamingComplete, protocol.TypeConnected:
		// Text events have no local sink.
		return nil

	case protocol.TypeError:
		if data, err := msg.GetErrorData(); err == nil {
			c.logger.Warn("turn error", "error_type", data.ErrorType, "message", data.Message)
		}
		return nil

	default:
		return nil
	}
}
