// Package api provides HTTP handlers and the main API server logic for
// PlanForge.
//
// It exposes the chat endpoint driving the discovery conversation, the
// website analysis endpoint, conversation retrieval, and a health endpoint
// reporting LLM provider availability.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/planforge/planforge/internal/genai"
	"github.com/planforge/planforge/internal/models"
	"github.com/planforge/planforge/internal/store"
	"github.com/planforge/planforge/internal/webanalyze"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Server timeout constants
const (
	// ReadHeaderTimeout bounds request header reads.
	ReadHeaderTimeout = 10 * time.Second
	// WriteTimeout bounds one response write. Plan generation is the slowest
	// handled path and sets the floor.
	WriteTimeout = 150 * time.Second
	// IdleTimeout bounds keep-alive connections.
	IdleTimeout = 120 * time.Second
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// turnProcessor is the orchestrator surface the server depends on.
type turnProcessor interface {
	ProcessTurn(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// siteAnalyzer is the website analysis surface the server depends on.
type siteAnalyzer interface {
	Analyze(ctx context.Context, rawURL string) (*models.WebsiteAnalysis, error)
}

var _ siteAnalyzer = (*webanalyze.Analyzer)(nil)

// Server wires the HTTP surface to the flow orchestrator and collaborators.
type Server struct {
	addr      string
	processor turnProcessor
	analyzer  siteAnalyzer
	store     store.Store
	health    *genai.HealthRegistry
}

// ServerOption configures server collaborators.
type ServerOption func(*Server)

// WithAnalyzer enables the website analysis endpoint.
func WithAnalyzer(a siteAnalyzer) ServerOption { return func(s *Server) { s.analyzer = a } }

// WithStore enables conversation retrieval.
func WithStore(st store.Store) ServerOption { return func(s *Server) { s.store = st } }

// WithHealthRegistry enables provider availability in the health endpoint.
func WithHealthRegistry(h *genai.HealthRegistry) ServerOption {
	return func(s *Server) { s.health = h }
}

// NewServer creates the API server around a turn processor.
func NewServer(processor turnProcessor, addr string, opts ...ServerOption) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{addr: addr, processor: processor}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.chatHandler)
	mux.HandleFunc("/api/analyze-website", s.analyzeWebsiteHandler)
	mux.HandleFunc("GET /api/conversations/{id}", s.conversationHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: PlanForge API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
