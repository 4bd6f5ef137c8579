package audio_test

import (
	"bytes"
	"testing"

	"github.com/irisvoice/go-iris/pkg/audio"
)

func TestBufferThresholdFlush(t *testing.T) {
	b := audio.NewBuffer(100)

	if ready := b.Append(make([]byte, 60), false); ready {
		t.Error("60 bytes should not be ready at threshold 100")
	}
	if ready := b.Append(make([]byte, 60), false); ready {
		t.Error("not ready yet: pre-append length was 60")
	}
	if ready := b.Append(make([]byte, 10), false); !ready {
		t.Error("accumulated audio reached threshold, next chunk must flush")
	}

	flushed := b.Flush()
	if len(flushed) != 130 {
		t.Errorf("flush returned %d bytes, want 130", len(flushed))
	}
	if b.Len() != 0 {
		t.Errorf("buffer not cleared, len = %d", b.Len())
	}
}

func TestBufferFinalFlag(t *testing.T) {
	// Three sub-threshold chunks, then a small final one: exactly one
	// flush of everything, triggered by the final flag.
	b := audio.NewBuffer(32000)

	for i := 0; i < 3; i++ {
		if ready := b.Append(make([]byte, 12000), false); ready {
			t.Fatalf("premature flush signal at %d bytes", b.Len())
		}
	}

	if ready := b.Append(make([]byte, 500), true); !ready {
		t.Fatal("final chunk must trigger a flush")
	}

	flushed := b.Flush()
	if len(flushed) != 36500 {
		t.Errorf("flush returned %d bytes, want 36500", len(flushed))
	}
}

func TestBufferContentOrder(t *testing.T) {
	b := audio.NewBuffer(10)
	b.Append([]byte("abc"), false)
	b.Append([]byte("def"), true)

	if got := b.Flush(); !bytes.Equal(got, []byte("abcdef")) {
		t.Errorf("flush returned %q, want %q", got, "abcdef")
	}
}

func TestBufferEmptyFlush(t *testing.T) {
	b := audio.NewBuffer(0)
	if got := b.Flush(); got != nil {
		t.Errorf("empty flush returned %d bytes, want nil", len(got))
	}
}
