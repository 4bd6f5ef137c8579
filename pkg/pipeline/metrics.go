package pipeline

import (
	"sync"
	"time"
)

// Metrics tracks latency at each stage of a conversation turn.
// All durations are measured from the moment the utterance audio is
// ready for transcription.
type Metrics struct {
	AudioReadyTime time.Time
	TranscriptTime time.Time
	FirstTokenTime time.Time
	FirstAudioTime time.Time
	TurnDoneTime   time.Time

	ASRLatency    time.Duration // time to complete transcription
	LLMFirstToken time.Duration // time to first generated token
	TTSFirstAudio time.Duration // time to first audio chunk
	TotalLatency  time.Duration // end-to-end turn latency

	ChunksOut int // audio chunks delivered this turn
	Segments  int // text segments synthesized this turn
}

// Collector gathers latency metrics across turns. Goroutine-safe.
type Collector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	return &Collector{history: make([]Metrics, 0, 100)}
}

// MarkAudioReady resets the collector for a new turn. This is the
// reference point for all latency measurements.
func (c *Collector) MarkAudioReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Metrics{AudioReadyTime: time.Now()}
}

// MarkTranscript records transcription completion.
func (c *Collector) MarkTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.TranscriptTime = time.Now()
	if !c.current.AudioReadyTime.IsZero() {
		c.current.ASRLatency = c.current.TranscriptTime.Sub(c.current.AudioReadyTime)
	}
}

// MarkFirstToken records the first generated token. Later calls in
// the same turn are ignored.
func (c *Collector) MarkFirstToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current.FirstTokenTime.IsZero() {
		return
	}
	c.current.FirstTokenTime = time.Now()
	if !c.current.AudioReadyTime.IsZero() {
		c.current.LLMFirstToken = c.current.FirstTokenTime.Sub(c.current.AudioReadyTime)
	}
}

// MarkFirstAudio records the first synthesized chunk. Later calls in
// the same turn are ignored.
func (c *Collector) MarkFirstAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current.FirstAudioTime.IsZero() {
		return
	}
	c.current.FirstAudioTime = time.Now()
	if !c.current.AudioReadyTime.IsZero() {
		c.current.TTSFirstAudio = c.current.FirstAudioTime.Sub(c.current.AudioReadyTime)
	}
}

// MarkTurnDone archives the turn.
func (c *Collector) MarkTurnDone(chunks, segments int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.TurnDoneTime = time.Now()
	c.current.ChunksOut = chunks
	c.current.Segments = segments
	if !c.current.AudioReadyTime.IsZero() {
		c.current.TotalLatency = c.current.TurnDoneTime.Sub(c.current.AudioReadyTime)
	}
	c.history = append(c.history, c.current)
	if len(c.history) > 100 {
		c.history = c.history[1:]
	}
}

// Current returns the in-progress turn's metrics.
func (c *Collector) Current() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Average returns average latencies over archived turns.
func (c *Collector) Average() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range c.history {
		avg.ASRLatency += h.ASRLatency
		avg.LLMFirstToken += h.LLMFirstToken
		avg.TTSFirstAudio += h.TTSFirstAudio
		avg.TotalLatency += h.TotalLatency
	}
	n := time.Duration(len(c.history))
	avg.ASRLatency /= n
	avg.LLMFirstToken /= n
	avg.TTSFirstAudio /= n
	avg.TotalLatency /= n
	return avg
}

// FormatLatency returns a compact latency summary for logs.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.ASRLatency) + " ASR | " +
		formatDuration(m.LLMFirstToken) + " LLM | " +
		formatDuration(m.TTSFirstAudio) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
