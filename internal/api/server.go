package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trader-core/internal/config"
)

// Server runs the HTTP/WebSocket API for the dashboard.
type Server struct {
	cfg      config.DashboardConfig
	provider Provider
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new API server, wiring every route the external
// interface exposes: health/snapshot/positions/equity-curve queries,
// order submission, equity sync, simulation control, and the WebSocket
// event stream.
func NewServer(cfg config.DashboardConfig, provider Provider, logger *slog.Logger) *Server {
	hub := NewHub(logger, cfg.EventBufferSize)
	handlers := NewHandlers(provider, cfg, hub, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/positions", handlers.HandlePositions)
	mux.HandleFunc("/equity-curve", handlers.HandleEquityCurve)
	mux.HandleFunc("/orders", handlers.HandleOrders)
	mux.HandleFunc("/sync-equity", handlers.HandleSyncEquity)
	mux.HandleFunc("/simulation/start", handlers.HandleSimulationStart)
	mux.HandleFunc("/simulation/stop", handlers.HandleSimulationStop)
	mux.HandleFunc("/simulation/order", handlers.HandleSimulationOrder)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	mux.Handle("/", http.FileServer(http.Dir("web")))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the API server and its WebSocket hub. Blocks until Stop
// shuts it down.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.consumeEvents()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeEvents relays provider-originated events (fills, orders,
// position changes, kill-switch trips) to every connected WebSocket
// client.
func (s *Server) consumeEvents() {
	eventsCh := s.provider.DashboardEvents()
	if eventsCh == nil {
		return
	}
	for evt := range eventsCh {
		s.hub.BroadcastEvent(evt)
	}
}
