package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ConversionError is returned when the external transcoder fails.
// Diagnostics carries the tool's stderr output.
type ConversionError struct {
	Format      string
	Diagnostics string
	Err         error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Diagnostics != "" {
		return fmt.Sprintf("audio: conversion from %s failed: %v: %s", e.Format, e.Err, e.Diagnostics)
	}
	return fmt.Sprintf("audio: conversion from %s failed: %v", e.Format, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ffmpegPath is a variable so tests can stub the binary.
var ffmpegPath = "ffmpeg"

// ToWAV converts compressed audio (webm, ogg, mp3, ...) to 16kHz mono
// PCM16 WAV using ffmpeg. Raw PCM input is wrapped without shelling
// out.
func ToWAV(ctx context.Context, data []byte, format string, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	if format == "" || format == "pcm16" || format == "pcm" {
		return wrapPCM(data, sampleRate), nil
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", format,
		"-i", "pipe:0",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-f", "wav",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ConversionError{
			Format:      format,
			Diagnostics: strings.TrimSpace(stderr.String()),
			Err:         err,
		}
	}

	return stdout.Bytes(), nil
}

// wrapPCM prepends a canonical 44-byte WAV header to raw PCM16 mono
// samples.
func wrapPCM(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 0, 44+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = appendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = appendUint32(buf, 16)
	buf = appendUint16(buf, 1) // PCM
	buf = appendUint16(buf, channels)
	buf = appendUint32(buf, uint32(sampleRate))
	buf = appendUint32(buf, uint32(byteRate))
	buf = appendUint16(buf, uint16(blockAlign))
	buf = appendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = appendUint32(buf, uint32(len(pcm)))
	return append(buf, pcm...)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}
