// Package health exposes a minimal liveness endpoint for process supervisors.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Status is the source of the endpoint's runtime figures, implemented by the
// session manager.
type Status interface {
	ConnectedCount() int
	Uptime() time.Duration
}

type response struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Connected int    `json:"connected_accounts"`
}

// Server serves GET /healthz.
type Server struct {
	srv    *http.Server
	status Status
	log    *slog.Logger
}

func NewServer(host string, port int, status Status, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{status: status, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("health endpoint listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := response{Status: "ok"}
	if s.status != nil {
		resp.Uptime = s.status.Uptime().Round(time.Second).String()
		resp.Connected = s.status.ConnectedCount()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
