package audio

import (
	"encoding/binary"
	"math"
)

// Gate defaults tuned for 16kHz mono PCM16 speech.
const (
	// DefaultMinEnergy is the RMS floor below which audio is treated
	// as silence.
	DefaultMinEnergy = 250.0

	// DefaultMinVoiceRatio is the minimum fraction of 20ms frames
	// that must contain voice-level energy.
	DefaultMinVoiceRatio = 0.15

	// gateFrameSamples is 20ms at 16kHz.
	gateFrameSamples = 320
)

// Gate rejects audio that is too quiet or too empty to transcribe,
// short-circuiting the turn before the ASR collaborator is called.
// Rejection is benign: the caller reports "no speech" and returns to
// idle rather than surfacing an error.
type Gate struct {
	// MinEnergy is the overall RMS threshold.
	MinEnergy float64

	// MinVoiceRatio is the minimum fraction of active frames.
	MinVoiceRatio float64
}

// NewGate creates a gate with the default speech thresholds.
func NewGate() *Gate {
	return &Gate{
		MinEnergy:     DefaultMinEnergy,
		MinVoiceRatio: DefaultMinVoiceRatio,
	}
}

// Accept reports whether the PCM16 audio looks like speech.
func (g *Gate) Accept(pcm []byte) bool {
	if len(pcm) < 2 {
		return false
	}

	if RMS(pcm) < g.MinEnergy {
		return false
	}

	return g.voiceRatio(pcm) >= g.MinVoiceRatio
}

// voiceRatio is the fraction of 20ms frames whose RMS clears the
// energy floor.
func (g *Gate) voiceRatio(pcm []byte) float64 {
	frameBytes := gateFrameSamples * 2
	frames := 0
	active := 0

	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		frames++
		if RMS(pcm[off:off+frameBytes]) >= g.MinEnergy {
			active++
		}
	}

	if frames == 0 {
		// Shorter than one frame: fall back to the overall energy
		// check that already passed.
		return 1.0
	}
	return float64(active) / float64(frames)
}

// RMS computes the root-mean-square amplitude of little-endian PCM16
// samples.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
