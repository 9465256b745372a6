package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docqa/api/mcp"
	"github.com/papercomputeco/docqa/pkg/answer"
)

// Server is the question answering API server.
//
// The server starts before the answer pipeline has finished loading; until
// SetPipeline is called every question is rejected with answer.ErrNotReady.
type Server struct {
	config   Config
	logger   *slog.Logger
	app      *fiber.App
	pipeline atomic.Pointer[answer.Pipeline]
}

// NewServer creates a new API server.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/", s.handleRoot)
	app.Get("/ping", s.handlePing)
	app.Get("/ready", s.handleReady)
	app.Post("/ask", s.handleAsk)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Answerer: s,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// SetPipeline publishes the loaded pipeline and marks the server ready.
func (s *Server) SetPipeline(p *answer.Pipeline) {
	s.pipeline.Store(p)
	s.logger.Info("answer pipeline ready")
}

// Ready reports whether questions can be answered.
func (s *Server) Ready() bool {
	return s.pipeline.Load() != nil
}

// Answer runs the pipeline, or fails with answer.ErrNotReady before it is
// loaded.
func (s *Server) Answer(ctx context.Context, question string) (*answer.Answer, error) {
	p := s.pipeline.Load()
	if p == nil {
		return nil, answer.ErrNotReady
	}
	return p.Answer(ctx, question)
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(ln)
}

// Serve runs the API server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting API server", "listen", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
