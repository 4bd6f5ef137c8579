// Package gateway is the networked transport adapter: a fiber server
// exposing the voice WebSocket plus read-only status endpoints. Each
// connection gets one session and one pipeline; inbound frames are
// routed to the pipeline and interrupt controller, outbound pipeline
// events go back over the same socket.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/irisvoice/go-iris/internal/config"
	"github.com/irisvoice/go-iris/pkg/asr"
	"github.com/irisvoice/go-iris/pkg/audio"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/pipeline"
	"github.com/irisvoice/go-iris/pkg/protocol"
	"github.com/irisvoice/go-iris/pkg/session"
	"github.com/irisvoice/go-iris/pkg/store"
	"github.com/irisvoice/go-iris/pkg/tts"
)

// pending utterances allowed per connection before intake applies
// backpressure by dropping
const turnBacklog = 4

// Config wires the gateway's collaborators.
type Config struct {
	ASR   asr.Provider
	LLM   llm.Provider
	TTS   tts.Provider
	Store store.Store

	// Gate filters non-speech audio before transcription. Nil
	// disables the gate.
	Gate *audio.Gate

	SampleRate int
	Logger     *slog.Logger
}

// Server is the networked voice gateway.
type Server struct {
	app      *fiber.App
	cfg      Config
	registry *session.Registry
	logger   *slog.Logger
}

// NewServer creates the gateway and registers its routes.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = config.DefaultSampleRate
	}
	if cfg.Store == nil {
		cfg.Store = store.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		registry: session.NewRegistry(cfg.Store, config.DefaultFlushBytes, cfg.Logger),
		logger:   cfg.Logger.With("component", "gateway"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "iris-gateway",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Get("/healthz", s.handleHealth)
	app.Get("/api/sessions", s.handleSessions)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice", websocket.New(s.handleVoice))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Registry exposes the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Listen serves on the given port until Shutdown.
func (s *Server) Listen(port string) error {
	s.logger.Info("gateway listening", "port", port)
	return s.app.Listen(":" + port)
}

// Shutdown stops the server and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.CloseAll(ctx)
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": s.registry.Count(),
	})
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	type sessionInfo struct {
		ID            string    `json:"id"`
		CreatedAt     time.Time `json:"created_at"`
		Turns         int       `json:"turns"`
		Interruptions int       `json:"interruptions"`
	}

	all := s.registry.All()
	out := make([]sessionInfo, 0, len(all))
	for _, sess := range all {
		out = append(out, sessionInfo{
			ID:            sess.ID,
			CreatedAt:     sess.CreatedAt(),
			Turns:         sess.Turns(),
			Interruptions: sess.Interruptions(),
		})
	}
	return c.JSON(out)
}

// utterance is one flushed audio buffer awaiting a turn.
type utterance struct {
	pcm    []byte
	format string
}

// handleVoice runs one connection: open a session, start the ingest
// and execute workers, then read frames until disconnect.
func (s *Server) handleVoice(c *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := newWSConn(c, s.logger)

	sess, err := s.registry.Open(ctx, conn, c.Query("user_id"))
	if err != nil {
		s.logger.Warn("connection rejected", "error", err)
		c.Close()
		return
	}
	defer func() {
		conn.markClosed()
		s.registry.Close(ctx, sess.ID)
	}()

	p := pipeline.New(pipeline.Config{
		ASR:        s.cfg.ASR,
		LLM:        s.cfg.LLM,
		TTS:        s.cfg.TTS,
		Store:      s.cfg.Store,
		Gate:       s.cfg.Gate,
		SampleRate: s.cfg.SampleRate,
		Logger:     s.cfg.Logger,
	})

	// Ingestion and execution are separate workers. A spoken "stop"
	// is transcribed and sets the interrupt flag while the previous
	// turn is still streaming; only execution is serialized per
	// session. The read loop itself never blocks, so interrupt frames
	// are delivered mid-stream too.
	turns := make(chan utterance, turnBacklog)
	go s.ingestLoop(ctx, p, sess, turns)
	go s.executeLoop(ctx, p, sess)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug("connection closed", "session_id", sess.ID, "error", err)
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			// Malformed frames are logged and ignored.
			s.logger.Warn("unparseable frame", "session_id", sess.ID, "error", err)
			continue
		}

		s.route(sess, msg, turns)
	}
}

// ingestLoop transcribes, classifies, and dispatches flushed
// utterances as they arrive.
func (s *Server) ingestLoop(ctx context.Context, p *pipeline.Pipeline, sess *session.Session, turns <-chan utterance) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-turns:
			res := p.Ingest(ctx, sess, u.pcm, u.format)
			if res.Err != nil {
				s.logger.Debug("utterance discarded",
					"session_id", sess.ID, "error", res.Err)
			}
		}
	}
}

// executeLoop runs queued commands one at a time, keeping turns
// strictly sequential within the session.
func (s *Server) executeLoop(ctx context.Context, p *pipeline.Pipeline, sess *session.Session) {
	for {
		if ctx.Err() != nil {
			return
		}
		cmd, ok := p.Queue().Dequeue(config.DefaultDequeuePoll)
		if !ok {
			continue
		}
		res := p.Execute(ctx, sess, cmd)
		if res.Err == nil {
			m := p.Metrics().Current()
			s.logger.Info("turn finished",
				"session_id", sess.ID,
				"kind", cmd.Kind,
				"state", res.State.String(),
				"chunks", res.AudioChunks,
				"latency", m.FormatLatency(),
			)
		}
	}
}

// route dispatches one inbound frame.
func (s *Server) route(sess *session.Session, msg *protocol.Message, turns chan<- utterance) {
	switch msg.Type {
	case protocol.TypeAudioChunk:
		data, err := msg.GetAudioChunkData()
		if err != nil {
			s.logger.Warn("bad audio_chunk frame", "session_id", sess.ID, "error", err)
			return
		}
		pcm, err := data.DecodeAudio()
		if err != nil {
			s.logger.Warn("undecodable audio_chunk", "session_id", sess.ID, "error", err)
			return
		}
		if sess.Buffer.Append(pcm, data.IsFinal) {
			flushed := sess.Buffer.Flush()
			if flushed == nil {
				return
			}
			select {
			case turns <- utterance{pcm: flushed, format: data.Format}:
			default:
				s.logger.Warn("turn backlog full, dropping utterance",
					"session_id", sess.ID, "bytes", len(flushed))
			}
		}

	case protocol.TypeInterrupt:
		reason := "client_interrupt"
		if data, err := msg.GetInterruptData(); err == nil && data.Reason != "" {
			reason = data.Reason
		}
		sess.Interrupt()
		if ack, err := protocol.NewVoiceInterruptedMessage(reason); err == nil {
			if err := sess.Send(ack); err != nil {
				s.logger.Debug("interrupt ack not delivered", "session_id", sess.ID, "error", err)
			}
		}
		s.logger.Info("interrupt", "session_id", sess.ID, "reason", reason)

	case protocol.TypeStartListening:
		// A fresh listening window discards any stale partial audio.
		if stale := sess.Buffer.Flush(); stale != nil {
			s.logger.Debug("discarded stale audio", "session_id", sess.ID, "bytes", len(stale))
		}

	case protocol.TypeStopListening:
		// Treat whatever is buffered as a complete utterance.
		if flushed := sess.Buffer.Flush(); flushed != nil {
			select {
			case turns <- utterance{pcm: flushed, format: "pcm16"}:
			default:
				s.logger.Warn("turn backlog full, dropping utterance",
					"session_id", sess.ID, "bytes", len(flushed))
			}
		}

	default:
		s.logger.Warn("unexpected frame type", "session_id", sess.ID, "type", msg.Type)
	}
}
