// Package server hosts the race coordination HTTP/WebSocket process.
//
// It owns the transport boundary only: admission requests and WebSocket
// connections are translated into engine calls, and engine deliveries are
// fanned back out over the registered connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rohith-arumugam/truck-racing/internal/platform/timeouts"
	"github.com/rohith-arumugam/truck-racing/internal/race/engine"
	"github.com/rohith-arumugam/truck-racing/internal/race/relay"
	"github.com/rohith-arumugam/truck-racing/internal/race/store"
	"github.com/rohith-arumugam/truck-racing/internal/storage"
	boltstore "github.com/rohith-arumugam/truck-racing/internal/storage/bbolt"
	"github.com/rohith-arumugam/truck-racing/internal/track"
)

// Config defines the inputs for the race server.
type Config struct {
	HTTPAddr          string
	DBPath            string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the race HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	mirror          *boltstore.Store
}

// NewServer builds a configured race server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	var mirror *boltstore.Store
	var opts []engine.Option
	if path := strings.TrimSpace(config.DBPath); path != "" {
		opened, err := boltstore.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open session mirror: %w", err)
		}
		mirror = opened
		opts = append(opts, engine.WithMirror(mirror))
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(track.NewGenerator(), nil, opts...),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		mirror:          mirror,
	}, nil
}

// NewHandler creates race routes without a persistence mirror, for tests and
// offline paths.
func NewHandler() http.Handler {
	return newHandler(track.NewGenerator(), nil)
}

// NewHandlerWithMirror creates race routes backed by the given mirror.
func NewHandlerWithMirror(mirror storage.SessionMirror) http.Handler {
	return newHandler(track.NewGenerator(), nil, engine.WithMirror(mirror))
}

// newHandler wires store, relay and engine behind the route table. A non-nil
// generator or engine option list lets tests pin seeds and clocks.
func newHandler(generator *track.Generator, router *relay.Router, opts ...engine.Option) http.Handler {
	if router == nil {
		router = relay.NewRouter(relay.NewRegistry())
	}
	eng := engine.New(store.New(), router, opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api", handleBanner)
	mux.HandleFunc("POST /api/races", handleCreateRace(eng, generator))
	mux.HandleFunc("GET /api/races/{sessionID}/join", handleJoinRace(eng))
	mux.Handle("GET /api/ws/{sessionID}/{participantID}", wsHandler(eng))
	return mux
}

// Run creates and serves a race server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init race server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve race: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("race server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("race server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			log.Printf("close session mirror: %v", err)
		}
	}
}
