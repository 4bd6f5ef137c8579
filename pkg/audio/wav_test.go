package audio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/irisvoice/go-iris/pkg/audio"
)

func TestToWAVWrapsRawPCM(t *testing.T) {
	pcm := pcmTone(1600, 2000)

	wav, err := audio.ToWAV(context.Background(), pcm, "pcm16", 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Error("missing RIFF magic")
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("missing WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != len(pcm) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload does not round-trip")
	}
}

func TestConversionError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &audio.ConversionError{
		Format:      "webm",
		Diagnostics: "Invalid data found when processing input",
		Err:         inner,
	}

	if !errors.Is(err, inner) {
		t.Error("ConversionError does not unwrap")
	}
	msg := err.Error()
	if msg == "" || !bytes.Contains([]byte(msg), []byte("webm")) {
		t.Errorf("error message missing format: %q", msg)
	}
	if !bytes.Contains([]byte(msg), []byte("Invalid data")) {
		t.Errorf("error message missing tool diagnostics: %q", msg)
	}
}
