package daemon

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
)

// HTTPServer serves /metrics and /healthz for the daemon.
type HTTPServer struct {
	daemon       *Daemon
	server       *http.Server
	listener     net.Listener
	errorAdapter *errors.HTTPErrorAdapter
	done         chan struct{}
}

func newHTTPServer(d *Daemon) *HTTPServer {
	s := &HTTPServer{
		daemon:       d,
		errorAdapter: errors.NewHTTPErrorAdapter(d.logger),
		done:         make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(d.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Start binds addr and serves in the background. At most maxConns
// connections are accepted at once.
func (s *HTTPServer) Start(addr string, maxConns int) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to bind metrics listener").
			WithContext("addr", addr).
			Build()
	}
	s.listener = netutil.LimitListener(ln, maxConns)
	s.daemon.logger.Info("Metrics server listening", logfields.Addr(ln.Addr().String()))

	go func() {
		defer close(s.done)
		if err := s.server.Serve(s.listener); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			s.daemon.logger.Error("Metrics server stopped", logfields.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, bounded by ctx.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.daemon.Health()
	if err := report.Err(); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.daemon.logger.Warn("Failed to write health response", logfields.Error(err))
	}
}
