// Package pipeline drives one conversation turn: buffered audio in,
// transcription, command classification and arbitration, streamed
// generation, and streamed synthesis out, with interrupt checkpoints
// between every streamed increment.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/audio"
	"github.com/irisvoice/go-iris/pkg/command"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/protocol"
	"github.com/irisvoice/go-iris/pkg/session"
	"github.com/irisvoice/go-iris/pkg/store"
	"github.com/irisvoice/go-iris/pkg/tts"
)

// State names the stage a turn is in.
type State int

const (
	StateIdle State = iota
	StateTranscribing
	StateClassifying
	StateDispatching
	StateGenerating
	StateSynthesizing
	StateInterrupted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTranscribing:
		return "transcribing"
	case StateClassifying:
		return "classifying"
	case StateDispatching:
		return "dispatching"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error event types surfaced to the client. Each aborts only the
// current turn.
const (
	ErrTypeConversion = "audio_conversion_failed"
	ErrTypeASR        = "asr_processing_failed"
	ErrTypeLLM        = "llm_generation_failed"
	ErrTypeTTS        = "tts_synthesis_failed"
)

// TurnResult summarizes one turn for telemetry.
type TurnResult struct {
	State          State // StateIdle or StateInterrupted
	Transcription  string
	ResponseText   string
	AudioChunks    int
	ProcessingTime time.Duration
	NoSpeech       bool
	Err            error
}

// Interrupted reports whether the turn ended at an interrupt checkpoint.
func (r *TurnResult) Interrupted() bool {
	return r.State == StateInterrupted
}

// Config wires the pipeline's collaborators.
type Config struct {
	ASR   asr.Provider
	LLM   llm.Provider
	TTS   tts.Provider
	Store store.Store

	// Gate rejects non-speech audio before transcription. Nil
	// disables the gate.
	Gate *audio.Gate

	// SampleRate of inbound PCM audio. Zero uses 16000.
	SampleRate int

	// SegmentLimit caps segment length in characters. Zero uses 100.
	SegmentLimit int

	// SystemPrompt overrides the default assistant persona.
	SystemPrompt string

	Logger *slog.Logger
}

// Pipeline orchestrates turns for one session's connection. The
// providers are shared; the queue is owned by this pipeline so
// commands never cross sessions.
type Pipeline struct {
	cfg     Config
	queue   *command.Queue
	metrics *Collector
	logger  *slog.Logger
}

// New creates a pipeline with its own command queue.
func New(cfg Config) *Pipeline {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = config.DefaultSampleRate
	}
	if cfg.SegmentLimit <= 0 {
		cfg.SegmentLimit = config.DefaultSegmentLimit
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Store == nil {
		cfg.Store = store.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		cfg:     cfg,
		queue:   command.NewQueue(),
		metrics: NewCollector(),
		logger:  cfg.Logger.With("component", "pipeline"),
	}
}

// Metrics returns the pipeline's latency collector.
func (p *Pipeline) Metrics() *Collector {
	return p.metrics
}

// Queue exposes the command queue for transports that enqueue
// directly (the local listener unit).
func (p *Pipeline) Queue() *command.Queue {
	return p.queue
}

// ProcessAudio runs a full turn from flushed utterance audio:
// transcribe, classify, dispatch, then execute every pending command
// in priority order. Returns the result of the last executed command.
func (p *Pipeline) ProcessAudio(ctx context.Context, sess *session.Session, pcm []byte, format string) *TurnResult {
	start := time.Now()

	ing := p.Ingest(ctx, sess, pcm, format)
	if ing.Err != nil || ing.NoSpeech {
		return ing
	}

	// Execute pending commands most-urgent first. Turns are strictly
	// sequential within a session.
	turn := &TurnResult{State: StateIdle, Transcription: ing.Transcription}
	for {
		next, ok := p.queue.Dequeue(config.DefaultDequeuePoll)
		if !ok {
			break
		}
		res := p.Execute(ctx, sess, next)
		res.Transcription = ing.Transcription
		turn = res
	}
	turn.ProcessingTime = time.Since(start)
	return turn
}

// Ingest turns flushed utterance audio into a queued command:
// gate, convert, transcribe, classify, Dispatch. It never executes a
// turn, so a transport can run it concurrently with an in-flight
// Execute and a spoken interrupting command sets the session flag the
// moment it is classified.
func (p *Pipeline) Ingest(ctx context.Context, sess *session.Session, pcm []byte, format string) *TurnResult {
	start := time.Now()
	p.metrics.MarkAudioReady()

	// Transcribing
	if p.cfg.Gate != nil && isRawPCM(format) && !p.cfg.Gate.Accept(pcm) {
		p.logger.Debug("audio rejected by quality gate", "session_id", sess.ID, "bytes", len(pcm))
		return &TurnResult{State: StateIdle, NoSpeech: true, ProcessingTime: time.Since(start)}
	}

	wav, err := audio.ToWAV(ctx, pcm, format, p.cfg.SampleRate)
	if err != nil {
		p.logger.Error("audio conversion failed", "session_id", sess.ID, "error", err)
		p.sendError(sess, ErrTypeConversion, "could not convert audio")
		return &TurnResult{State: StateIdle, Err: err, ProcessingTime: time.Since(start)}
	}

	result, err := p.cfg.ASR.Transcribe(ctx, wav, p.cfg.SampleRate)
	if err != nil {
		p.logger.Error("transcription failed", "session_id", sess.ID, "error", err)
		p.sendError(sess, ErrTypeASR, "could not transcribe audio")
		return &TurnResult{State: StateIdle, Err: err, ProcessingTime: time.Since(start)}
	}
	p.metrics.MarkTranscript()

	if result.Empty() {
		return &TurnResult{State: StateIdle, NoSpeech: true, ProcessingTime: time.Since(start)}
	}

	if msg, err := protocol.NewTranscriptionMessage(result.Text, result.Confidence); err == nil {
		p.send(sess, msg)
	}

	// Classifying and Dispatching
	cmd := command.Classify(result.Text)
	p.Dispatch(sess, cmd)

	if err := p.cfg.Store.AppendMessage(ctx, sess.ID, "user", result.Text); err != nil {
		p.logger.Warn("message persist failed", "session_id", sess.ID, "error", err)
	}

	return &TurnResult{
		State:          StateIdle,
		Transcription:  result.Text,
		ProcessingTime: time.Since(start),
	}
}

// Dispatch sets the interrupt flag for interrupting commands before
// enqueueing, so a previous turn's in-flight generation aborts even
// while the new command waits in the queue.
func (p *Pipeline) Dispatch(sess *session.Session, cmd command.Command) {
	if cmd.Interrupts() {
		sess.Interrupt()
	}
	p.queue.Enqueue(cmd)
	p.logger.Debug("command dispatched",
		"session_id", sess.ID,
		"kind", cmd.Kind,
		"priority", cmd.Priority.String(),
	)
}

// Execute runs one dequeued command as a turn.
func (p *Pipeline) Execute(ctx context.Context, sess *session.Session, cmd command.Command) *TurnResult {
	start := time.Now()
	sess.BeginTurn()

	plan := p.planFor(ctx, sess, cmd)
	if plan.silent {
		return &TurnResult{State: StateIdle, ProcessingTime: time.Since(start)}
	}

	var res *TurnResult
	if plan.canned != "" {
		res = p.respondCanned(ctx, sess, plan.canned)
	} else {
		res = p.respond(ctx, sess, plan.messages)
	}
	res.ProcessingTime = time.Since(start)
	p.metrics.MarkTurnDone(res.AudioChunks, 0)

	if res.ResponseText != "" {
		if err := p.cfg.Store.AppendMessage(ctx, sess.ID, "assistant", res.ResponseText); err != nil {
			p.logger.Warn("message persist failed", "session_id", sess.ID, "error", err)
		}
	}
	return res
}

// respond streams a generated answer, segmenting text and pipelining
// synthesis one segment deep.
func (p *Pipeline) respond(ctx context.Context, sess *session.Session, messages []llm.Message) *TurnResult {
	req := &llm.ChatRequest{Messages: messages}

	stream, err := p.cfg.LLM.Stream(ctx, req)
	if err != nil {
		p.logger.Error("generation failed to start", "session_id", sess.ID, "error", err)
		p.sendError(sess, ErrTypeLLM, "could not generate a response")
		return &TurnResult{State: StateIdle, Err: err}
	}
	defer stream.Close()

	// The synthesizer runs one segment behind generation. Channel
	// capacity 1 bounds the pipelining depth.
	segCh := make(chan string, 1)
	done := make(chan synthOutcome, 1)
	go p.synthesize(ctx, sess, segCh, done)

	seg := NewSegmenter(p.cfg.SegmentLimit)
	var full strings.Builder
	interrupted := false
	var genErr error

	// Generating
	for {
		if sess.Interrupted() {
			interrupted = true
			break
		}

		chunk, err := stream.Recv()
		if err != nil {
			genErr = err
			break
		}
		if chunk.Done {
			break
		}
		if chunk.Delta == "" {
			continue
		}

		p.metrics.MarkFirstToken()
		full.WriteString(chunk.Delta)
		if msg, err := protocol.NewResponseChunkMessage(chunk.Delta); err == nil {
			p.send(sess, msg)
		}
		for _, s := range seg.Add(chunk.Delta) {
			segCh <- s
		}
	}

	if !interrupted && genErr == nil {
		if rest := seg.Flush(); rest != "" {
			segCh <- rest
		}
	}
	close(segCh)
	outcome := <-done

	res := &TurnResult{
		State:        StateIdle,
		ResponseText: full.String(),
		AudioChunks:  outcome.chunks,
	}

	switch {
	case interrupted || outcome.interrupted:
		res.State = StateInterrupted
		if msg, err := protocol.NewStreamingInterruptedMessage(outcome.chunks); err == nil {
			p.send(sess, msg)
		}
	case genErr != nil:
		res.Err = genErr
		p.logger.Error("generation failed", "session_id", sess.ID, "error", genErr)
		p.sendError(sess, ErrTypeLLM, "response generation failed")
	case outcome.err != nil:
		res.Err = outcome.err
		p.logger.Error("synthesis failed", "session_id", sess.ID, "error", outcome.err)
		p.sendError(sess, ErrTypeTTS, "speech synthesis failed")
	default:
		if msg, err := protocol.NewStreamingCompleteMessage(outcome.chunks); err == nil {
			p.send(sess, msg)
		}
	}
	return res
}

// respondCanned speaks a fixed reply through the same synthesis path.
func (p *Pipeline) respondCanned(ctx context.Context, sess *session.Session, text string) *TurnResult {
	if msg, err := protocol.NewResponseChunkMessage(text); err == nil {
		p.send(sess, msg)
	}

	segCh := make(chan string, 1)
	done := make(chan synthOutcome, 1)
	go p.synthesize(ctx, sess, segCh, done)
	segCh <- text
	close(segCh)
	outcome := <-done

	res := &TurnResult{State: StateIdle, ResponseText: text, AudioChunks: outcome.chunks}
	switch {
	case outcome.interrupted:
		res.State = StateInterrupted
		if msg, err := protocol.NewStreamingInterruptedMessage(outcome.chunks); err == nil {
			p.send(sess, msg)
		}
	case outcome.err != nil:
		res.Err = outcome.err
		p.sendError(sess, ErrTypeTTS, "speech synthesis failed")
	default:
		if msg, err := protocol.NewStreamingCompleteMessage(outcome.chunks); err == nil {
			p.send(sess, msg)
		}
	}
	return res
}

type synthOutcome struct {
	chunks      int
	interrupted bool
	err         error
}

// synthesize consumes text segments and forwards audio chunks to the
// transport, checking the interrupt flag before every chunk.
func (p *Pipeline) synthesize(ctx context.Context, sess *session.Session, segCh <-chan string, done chan<- synthOutcome) {
	var out synthOutcome

	for segment := range segCh {
		if out.interrupted || out.err != nil {
			continue // keep draining so the producer never blocks
		}
		if sess.Interrupted() {
			out.interrupted = true
			continue
		}

		stream, err := p.cfg.TTS.Stream(ctx, segment)
		if err != nil {
			out.err = err
			continue
		}

		format := tts.WireName(stream.Format().Encoding)
		for {
			if sess.Interrupted() {
				out.interrupted = true
				break
			}
			chunk, err := stream.Read()
			if err != nil {
				out.err = err
				break
			}
			if chunk == nil {
				break
			}
			p.metrics.MarkFirstAudio()
			if msg, err := protocol.NewTTSChunkMessage(chunk, out.chunks, format); err == nil {
				p.send(sess, msg)
			}
			out.chunks++
		}
		stream.Close()
	}
	done <- out
}

func (p *Pipeline) send(sess *session.Session, msg *protocol.Message) {
	if err := sess.Send(msg); err != nil {
		p.logger.Debug("send failed", "session_id", sess.ID, "type", msg.Type, "error", err)
	}
}

func (p *Pipeline) sendError(sess *session.Session, errType, message string) {
	if msg, err := protocol.NewErrorMessage(errType, message); err == nil {
		p.send(sess, msg)
	}
}

func isRawPCM(format string) bool {
	return format == "" || format == "pcm" || format == "pcm16"
}
