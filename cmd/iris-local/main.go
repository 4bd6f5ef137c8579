// iris-local: the assistant on one machine.
// Captures the microphone, answers through the speakers, no gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/internal/log"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/audio"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/local"
	"github.com/irisvoice/go-iris/pkg/pipeline"
	"github.com/irisvoice/go-iris/pkg/tts"
)

var (
	debug = flag.Bool("debug", false, "Enable debug logging")
	voice = flag.String("voice", "", "Voice preset or ElevenLabs voice ID")
)

func main() {
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	fmt.Println()
	fmt.Println("🎙  Iris Local")
	fmt.Println("   Speak, and press Ctrl+C to quit")
	fmt.Println()

	speech, err := buildASR(logger)
	if err != nil {
		log.Error("speech-to-text setup failed", "error", err)
		os.Exit(1)
	}
	defer speech.Close()

	brain, err := llm.NewClient(
		llm.WithAPIKey(config.LLMKey()),
		llm.WithLogger(logger),
	)
	if err != nil {
		log.Error("language model setup failed", "error", err)
		os.Exit(1)
	}

	voiceID := config.TTSVoice()
	if *voice != "" {
		voiceID = *voice
	}
	if voiceID == "" {
		voiceID = tts.DefaultVoice
	}
	speaker, err := tts.NewElevenLabs(
		tts.WithAPIKey(config.TTSKey()),
		tts.WithVoice(tts.ResolveVoice(voiceID)),
		tts.WithLogger(logger),
	)
	if err != nil {
		log.Error("text-to-speech setup failed", "error", err)
		os.Exit(1)
	}

	source, err := local.NewExecSource(config.DefaultSampleRate, 0)
	if err != nil {
		log.Error("microphone setup failed", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	player := local.NewExecPlayer(config.DefaultSampleRate)
	defer player.Close()

	pipe := pipeline.New(pipeline.Config{
		ASR:    speech,
		LLM:    brain,
		TTS:    speaker,
		Gate:   audio.NewGate(),
		Logger: logger,
	})

	runner, err := local.NewRunner(pipe, speech, source, player, logger)
	if err != nil {
		log.Error("runner setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
	log.Info("👋 goodbye")
}

// buildASR assembles the transcription chain: remote engine first,
// local fallback when enabled. With only the local server configured
// (no key), offline use still works.
func buildASR(logger *slog.Logger) (asr.Provider, error) {
	return asr.BuildChain(config.ASRKey(), config.LocalASREnabled(), config.LocalASRURL(), logger)
}
