// Command iris-check probes the configured providers end to end.
// Run it before deploying to verify credentials and measure round
// trips without starting the gateway.
//
// Usage:
//
//	go run ./cmd/iris-check
//	go run ./cmd/iris-check -text "Hello from Iris" -timeout 30s
//
// Environment variables:
//
//	DEEPGRAM_API_KEY    - speech-to-text
//	OPENAI_API_KEY      - language model
//	ELEVENLABS_API_KEY  - text-to-speech
//	ELEVENLABS_VOICE_ID - voice preset or ID (optional)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/tts"
)

func main() {
	text := flag.String("text", "This is a connectivity check.", "Sentence to synthesize")
	timeout := flag.Duration("timeout", 20*time.Second, "Per-probe timeout")
	flag.Parse()

	fmt.Println("🔍 Iris Provider Check")
	fmt.Println("======================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failures := 0
	failures += checkASR(ctx)
	failures += checkLLM(ctx)
	failures += checkTTS(ctx, *text)

	fmt.Println()
	if failures > 0 {
		fmt.Printf("❌ %d probe(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("✅ All probes passed")
}

func checkASR(ctx context.Context) int {
	key := config.ASRKey()
	if key == "" && !config.LocalASREnabled() {
		fmt.Println("⏭  ASR: skipped (DEEPGRAM_API_KEY not set, local disabled)")
		return 0
	}

	var (
		provider asr.Provider
		err      error
	)
	if key != "" {
		provider, err = asr.NewDeepgram(asr.WithAPIKey(key))
	} else {
		provider, err = asr.NewLocal(asr.WithBaseURL(config.LocalASRURL()))
	}
	if err != nil {
		fmt.Printf("❌ ASR: %v\n", err)
		return 1
	}
	defer provider.Close()

	start := time.Now()
	if err := provider.Health(ctx); err != nil {
		fmt.Printf("❌ ASR: health check failed: %v\n", err)
		return 1
	}
	fmt.Printf("✅ ASR: reachable in %s\n", time.Since(start).Round(time.Millisecond))
	return 0
}

func checkLLM(ctx context.Context) int {
	if config.LLMKey() == "" {
		fmt.Println("⏭  LLM: skipped (OPENAI_API_KEY not set)")
		return 0
	}

	client, err := llm.NewClient(llm.WithAPIKey(config.LLMKey()))
	if err != nil {
		fmt.Printf("❌ LLM: %v\n", err)
		return 1
	}
	defer client.Close()

	start := time.Now()
	resp, err := client.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			llm.NewSystemMessage("Reply with the single word OK."),
			llm.NewUserMessage("Ping"),
		},
		MaxTokens: 5,
	})
	if err != nil {
		fmt.Printf("❌ LLM: chat failed: %v\n", err)
		return 1
	}
	fmt.Printf("✅ LLM: %q in %s (model %s)\n",
		resp.Message.Content, time.Since(start).Round(time.Millisecond), resp.Model)
	return 0
}

func checkTTS(ctx context.Context, text string) int {
	if config.TTSKey() == "" {
		fmt.Println("⏭  TTS: skipped (ELEVENLABS_API_KEY not set)")
		return 0
	}

	voiceID := config.TTSVoice()
	if voiceID == "" {
		voiceID = tts.DefaultVoice
	}
	provider, err := tts.NewElevenLabs(
		tts.WithAPIKey(config.TTSKey()),
		tts.WithVoice(tts.ResolveVoice(voiceID)),
	)
	if err != nil {
		fmt.Printf("❌ TTS: %v\n", err)
		return 1
	}
	defer provider.Close()

	start := time.Now()
	result, err := provider.Synthesize(ctx, text)
	if err != nil {
		fmt.Printf("❌ TTS: synthesis failed: %v\n", err)
		return 1
	}
	fmt.Printf("✅ TTS: %d bytes (%s of audio) in %s\n",
		len(result.Audio), result.Duration.Round(100*time.Millisecond),
		time.Since(start).Round(time.Millisecond))
	return 0
}
