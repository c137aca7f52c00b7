// Package server provides the daemon's HTTP surface: health, metrics and
// whatever routes the caller mounts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/bambulink/internal/printer"
	"github.com/HerbHall/bambulink/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrinterSource is the view of a printer connection the server reports on.
// Defined here (consumer-side) rather than importing the mqtt client.
type PrinterSource interface {
	Connected() bool
	AuthOK() bool
	View(fn func(*printer.Device))
	Refresh() bool
}

// RouteRegistrar allows external packages to register routes on the server.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the daemon HTTP server.
type Server struct {
	httpServer *http.Server
	printer    PrinterSource
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a new Server with middleware and routes. gatherer backs
// /metrics; nil uses the default registry.
func New(addr string, source PrinterSource, gatherer prometheus.Gatherer, logger *zap.Logger, routes ...RouteRegistrar) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	s := &Server{
		printer: source,
		logger:  logger,
		mux:     mux,
	}

	s.registerRoutes(gatherer)
	for _, r := range routes {
		r.RegisterRoutes(mux)
	}

	probes := []string{"GET /healthz", "GET /readyz", "GET /metrics"}
	handler := Chain(mux,
		recoverPanics(logger),
		traceRequests,
		accessLog(logger, mux, probes...),
		hardenHeaders,
		limitRemote(20, 40, mux, probes...),
	)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/printer/refresh", s.handleRefresh)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// ConnectionStatus is the body of /healthz.
type ConnectionStatus struct {
	Status    string `json:"status"`
	Serial    string `json:"serial"`
	Model     string `json:"model"`
	Firmware  string `json:"firmware"`
	Connected bool   `json:"connected"`
	AuthOK    bool   `json:"auth_ok"`
	Online    bool   `json:"online"`
	State     string `json:"state"`
}

func (s *Server) connectionStatus() ConnectionStatus {
	st := ConnectionStatus{
		Status:    "alive",
		Connected: s.printer.Connected(),
		AuthOK:    s.printer.AuthOK(),
	}
	s.printer.View(func(d *printer.Device) {
		st.Serial = d.Info.Serial
		st.Model = string(d.Info.Model)
		st.Firmware = d.Info.SWVersion
		st.Online = d.Info.Online
		st.State = string(d.PrintJob.State)
	})
	return st
}

// handleHealthz is a liveness probe reporting the printer connection.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.connectionStatus())
}

// handleReadyz returns 200 once the printer connection is up and
// authenticated.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var reason string
	switch {
	case !s.printer.AuthOK():
		reason = "printer refused credentials"
	case !s.printer.Connected():
		reason = "printer not connected"
	}
	if reason != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"error":  reason,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version map[string]string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  "ok",
		Service: "bambulink",
		Version: version.Map(),
	})
}

// handleRefresh asks the printer for a full state report.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.printer.Connected() {
		Unavailable(w, "printer not connected", r.URL.Path)
		return
	}
	if !s.printer.Refresh() {
		RateLimited(w, "refresh requested too often", r.URL.Path, 0)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
