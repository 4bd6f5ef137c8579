// iris-server: voice assistant gateway.
// Accepts WebSocket client sessions and streams spoken responses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/internal/log"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/audio"
	"github.com/irisvoice/go-iris/pkg/gateway"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/store"
	"github.com/irisvoice/go-iris/pkg/tts"
)

var (
	version = "1.0.0"
	port    = flag.String("port", "", "HTTP server port (overrides IRIS_PORT)")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	voice   = flag.String("voice", "", "Voice preset or ElevenLabs voice ID")
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
	fmt.Println("🎙  Iris Gateway v" + version)
	fmt.Println("   Real-time voice assistant service")
	fmt.Println()

	listenPort := config.Port()
	if *port != "" {
		listenPort = *port
	}

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

	st, err := buildStore(logger)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	server := gateway.NewServer(gateway.Config{
		ASR:    speech,
		LLM:    brain,
		TTS:    speaker,
		Store:  st,
		Gate:   audio.NewGate(),
		Logger: logger,
	})

	go func() {
		log.Info("🚀 starting gateway",
			"ws", fmt.Sprintf("ws://localhost:%s/ws/voice", listenPort),
			"health", fmt.Sprintf("http://localhost:%s/healthz", listenPort))
		if err := server.Listen(listenPort); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("👋 shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// buildASR assembles the transcription chain: remote engine first,
// local fallback when enabled.
func buildASR(logger *slog.Logger) (asr.Provider, error) {
	return asr.BuildChain(config.ASRKey(), config.LocalASREnabled(), config.LocalASRURL(), logger)
}

// buildStore opens the Postgres session store, or a no-op store when
// persistence is not configured.
func buildStore(logger *slog.Logger) (store.Store, error) {
	url := config.DatabaseURL()
	if url == "" {
		log.Info("persistence disabled, sessions are in-memory only")
		return store.NewNop(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return store.NewPostgres(ctx, url, logger)
}
