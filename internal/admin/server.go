// Package admin serves the sensor node's local HTTP control surface.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
	"github.com/RickyDenton/SafeTunnels/internal/sim"
)

const (
	requestTimeout  = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Controller is the node surface the server drives.
type Controller interface {
	Status(ctx context.Context) (sim.Status, error)
	SimulateMax(ctx context.Context) error
	OverrideCorrelation(ctx context.Context, v uint) error
}

// Server exposes a Controller over HTTP.
type Server struct {
	node   Controller
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server for node.
func NewServer(node Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{node: node, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /simulate-max", s.handleSimulateMax)
	s.mux.HandleFunc("POST /correlation", s.handleCorrelation)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s, ReadHeaderTimeout: requestTimeout}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	s.logger.Info("admin server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) status(r *http.Request) (sim.Status, error) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return s.node.Status(ctx)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("admin request failed", "err", err)
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.status(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (s *Server) handleSimulateMax(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.node.SimulateMax(ctx); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	v, err := connectivity.ParseCorrelation(r.FormValue("value"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err = s.node.OverrideCorrelation(ctx, v)
	switch {
	case errors.Is(err, connectivity.ErrCorrelationRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.fail(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.status(r)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "state": st.State, "online": st.Online})
}
