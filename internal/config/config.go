// Package config provides configuration helpers for go-iris commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults shared by the server and local commands.
const (
	DefaultPort          = "8090"
	DefaultSampleRate    = 16000
	DefaultFlushBytes    = 32000 // ~1s of 16kHz mono PCM16
	DefaultDequeuePoll   = 10 * time.Millisecond
	DefaultSegmentLimit  = 100
	DefaultHandshakeTry  = 3
	DefaultHandshakeWait = 50 * time.Millisecond
)

// Env returns the environment variable or the provided default.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns the environment variable parsed as int, or the default.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// EnvBool returns true when the env var is "1", "true" or "yes".
func EnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

// Port returns the gateway listen port from IRIS_PORT.
func Port() string {
	return Env("IRIS_PORT", DefaultPort)
}

// LogLevel returns the log level from IRIS_LOG_LEVEL.
func LogLevel() string {
	return Env("IRIS_LOG_LEVEL", "info")
}

// ASRKey returns the remote speech-to-text API key.
func ASRKey() string {
	return os.Getenv("DEEPGRAM_API_KEY")
}

// LLMKey returns the language-model API key.
func LLMKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// TTSKey returns the text-to-speech API key.
func TTSKey() string {
	return os.Getenv("ELEVENLABS_API_KEY")
}

// LocalASREnabled reports whether the local transcription fallback
// should be attempted when the remote engine fails.
func LocalASREnabled() bool {
	return EnvBool("IRIS_LOCAL_ASR", false)
}

// LocalASRURL returns the base URL of the local transcription server.
func LocalASRURL() string {
	return Env("IRIS_LOCAL_ASR_URL", "http://127.0.0.1:8080")
}

// TTSVoice returns the speech voice from ELEVENLABS_VOICE_ID, either
// a preset name or a raw voice ID.
func TTSVoice() string {
	return os.Getenv("ELEVENLABS_VOICE_ID")
}

// DatabaseURL returns the Postgres connection string for the session
// store, empty when persistence is disabled.
func DatabaseURL() string {
	return os.Getenv("IRIS_DATABASE_URL")
}
