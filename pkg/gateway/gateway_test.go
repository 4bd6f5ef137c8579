package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/pipeline"
	"github.com/irisvoice/go-iris/pkg/protocol"
	"github.com/irisvoice/go-iris/pkg/tts"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memConn collects outbound messages in memory.
type memConn struct {
	mu   sync.Mutex
	msgs []*protocol.Message
}

func (c *memConn) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *memConn) count(msgType protocol.MessageType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (c *memConn) types() []protocol.MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.MessageType, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Type
	}
	return out
}

func newTestServer() *Server {
	return NewServer(Config{
		ASR: asr.NewMock("hello there"),
		LLM: llm.NewMock(),
		TTS: tts.NewMock(),
	})
}

func TestWarnThrottle(t *testing.T) {
	th := newWarnThrottle(50 * time.Millisecond)

	if !th.Allow("write_failed") {
		t.Error("first warning must pass")
	}
	if th.Allow("write_failed") {
		t.Error("repeat within the window must be suppressed")
	}
	if !th.Allow("send_after_close") {
		t.Error("a different cause has its own window")
	}

	time.Sleep(60 * time.Millisecond)
	if !th.Allow("write_failed") {
		t.Error("warning must pass again after the window")
	}
}

func TestWSConnDropsAfterClose(t *testing.T) {
	c := newWSConn(nil, testLogger())
	c.markClosed()

	msg, _ := protocol.NewConnectedMessage("s1")
	for i := 0; i < 5; i++ {
		if err := c.Send(msg); err != nil {
			t.Fatalf("post-close send must not fail: %v", err)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body.Status != "ok" || body.Sessions != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	s := newTestServer()
	sess, err := s.Registry().Open(context.Background(), &memConn{}, "user-1")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	sess.BeginTurn()

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/sessions", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out []struct {
		ID    string `json:"id"`
		Turns int    `json:"turns"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if len(out) != 1 || out[0].ID != sess.ID || out[0].Turns != 1 {
		t.Errorf("sessions = %+v", out)
	}
}

func TestRouteAudioChunkBuffers(t *testing.T) {
	s := newTestServer()
	conn := &memConn{}
	sess, _ := s.Registry().Open(context.Background(), conn, "")
	turns := make(chan utterance, 1)

	// Below the threshold and not final: buffered, no turn.
	msg, _ := protocol.NewAudioChunkMessage(make([]byte, 12000), "pcm16", false)
	s.route(sess, msg, turns)
	if len(turns) != 0 {
		t.Fatal("partial audio must not start a turn")
	}
	if sess.Buffer.Len() != 12000 {
		t.Errorf("buffered = %d", sess.Buffer.Len())
	}

	// Final chunk flushes everything.
	msg, _ = protocol.NewAudioChunkMessage(make([]byte, 500), "pcm16", true)
	s.route(sess, msg, turns)
	select {
	case u := <-turns:
		if len(u.pcm) != 12500 {
			t.Errorf("flushed %d bytes, want 12500", len(u.pcm))
		}
		if u.format != "pcm16" {
			t.Errorf("format = %q", u.format)
		}
	default:
		t.Fatal("final chunk must start a turn")
	}
	if sess.Buffer.Len() != 0 {
		t.Errorf("buffer not cleared: %d", sess.Buffer.Len())
	}
}

func TestRouteInterrupt(t *testing.T) {
	s := newTestServer()
	conn := &memConn{}
	sess, _ := s.Registry().Open(context.Background(), conn, "")
	turns := make(chan utterance, 1)

	msg, _ := protocol.NewInterruptMessage("user_speaking")
	s.route(sess, msg, turns)

	if !sess.Interrupted() {
		t.Error("interrupt frame must set the flag")
	}
	types := conn.types()
	if len(types) != 2 || types[1] != protocol.TypeVoiceInterrupted {
		t.Errorf("outbound types = %v, want handshake then voice_interrupted", types)
	}
}

func TestRouteListeningWindow(t *testing.T) {
	s := newTestServer()
	sess, _ := s.Registry().Open(context.Background(), &memConn{}, "")
	turns := make(chan utterance, 1)

	chunk, _ := protocol.NewAudioChunkMessage(make([]byte, 2000), "pcm16", false)
	s.route(sess, chunk, turns)

	// start_listening discards the stale partial buffer.
	start, _ := protocol.NewMessage(protocol.TypeStartListening, nil)
	s.route(sess, start, turns)
	if sess.Buffer.Len() != 0 {
		t.Errorf("stale audio kept: %d bytes", sess.Buffer.Len())
	}

	// stop_listening flushes whatever accumulated as a turn.
	s.route(sess, chunk, turns)
	stop, _ := protocol.NewMessage(protocol.TypeStopListening, nil)
	s.route(sess, stop, turns)
	select {
	case u := <-turns:
		if len(u.pcm) != 2000 {
			t.Errorf("flushed %d bytes", len(u.pcm))
		}
	default:
		t.Fatal("stop_listening must flush the buffer into a turn")
	}
}

// holdStream yields one chunk immediately, then blocks every further
// read until released.
type holdStream struct {
	reads   atomic.Int32
	release <-chan struct{}
}

func (h *holdStream) Read() ([]byte, error) {
	if h.reads.Add(1) > 1 {
		<-h.release
	}
	return make([]byte, 320), nil
}

func (h *holdStream) Close() error { return nil }

func (h *holdStream) Format() tts.AudioFormat {
	return tts.AudioFormat{Encoding: tts.EncodingPCM16, SampleRate: 16000, Channels: 1, BitDepth: 16}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSpokenStopAbortsInFlightTurn(t *testing.T) {
	release := make(chan struct{})

	speaker := tts.NewMock()
	speaker.StreamFunc = func(ctx context.Context, text string) (tts.AudioStream, error) {
		return &holdStream{release: release}, nil
	}

	var heard atomic.Int32
	listener := asr.NewMock("")
	listener.TranscribeFunc = func(ctx context.Context, audio []byte, sampleRate int) (*asr.Result, error) {
		if heard.Add(1) == 1 {
			return &asr.Result{Text: "what is the weather", Confidence: 0.95}, nil
		}
		return &asr.Result{Text: "stop", Confidence: 0.95}, nil
	}

	s := NewServer(Config{ASR: listener, LLM: llm.NewMock(), TTS: speaker, Logger: testLogger()})
	conn := &memConn{}
	sess, err := s.Registry().Open(context.Background(), conn, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	p := pipeline.New(pipeline.Config{
		ASR:    listener,
		LLM:    llm.NewMock(),
		TTS:    speaker,
		Logger: testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	turns := make(chan utterance, turnBacklog)
	go s.ingestLoop(ctx, p, sess, turns)
	go s.executeLoop(ctx, p, sess)

	turns <- utterance{pcm: make([]byte, 6400), format: "pcm16"}
	waitFor(t, func() bool { return conn.count(protocol.TypeTTSChunk) >= 1 }, "first audio chunk")
	if sess.Interrupted() {
		t.Fatal("flag set before the stop utterance")
	}

	// Synthesis is now blocked mid-turn. The spoken stop must still be
	// transcribed and set the flag while that turn is in flight.
	turns <- utterance{pcm: make([]byte, 6400), format: "pcm16"}
	waitFor(t, func() bool { return sess.Interrupted() }, "interrupt flag during in-flight turn")

	close(release)
	waitFor(t, func() bool { return conn.count(protocol.TypeStreamingInterrupted) == 1 }, "interrupted terminator")
	if n := conn.count(protocol.TypeStreamingComplete); n != 0 {
		t.Errorf("streaming_complete sent %d times after barge-in", n)
	}
}

func TestRouteBacklogFull(t *testing.T) {
	s := newTestServer()
	sess, _ := s.Registry().Open(context.Background(), &memConn{}, "")
	turns := make(chan utterance) // unbuffered: always full

	msg, _ := protocol.NewAudioChunkMessage(make([]byte, config.DefaultFlushBytes), "pcm16", true)
	s.route(sess, msg, turns) // must not block or panic

	if sess.Buffer.Len() != 0 {
		t.Errorf("buffer not cleared after drop: %d", sess.Buffer.Len())
	}
}
