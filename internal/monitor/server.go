// Package monitor serves live run state over HTTP: Prometheus metrics,
// a JSON snapshot and a websocket feed of snapshots.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"stageq/internal/metrics"
	"stageq/internal/runner"
)

// SnapshotFunc returns the current state of the run.
type SnapshotFunc func() runner.StatsSnapshot

type Server struct {
	addr     string
	snapshot SnapshotFunc
	metrics  *metrics.Metrics
	logger   *zap.Logger
	hub      *hub
	router   *mux.Router
}

func New(addr string, snapshot SnapshotFunc, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:     addr,
		snapshot: snapshot,
		metrics:  m,
		logger:   logger,
		hub:      newHub(logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	router.HandleFunc("/summary", s.handleSummary).Methods("GET")
	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.hub, w, r)
	})
	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Warn("encode summary", zap.Error(err))
	}
}

// Publish pushes a snapshot to every /live client.
func (s *Server) Publish(snap runner.StatsSnapshot) {
	s.hub.broadcast(snap)
}

// Run serves until ctx is done, then shuts down. It publishes a snapshot
// every interval while running.
func (s *Server) Run(ctx context.Context, interval time.Duration) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, interval)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener, interval time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.hub.run()
	defer close(s.hub.done)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("monitor listening", zap.String("addr", ln.Addr().String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ticker.C:
			s.Publish(s.snapshot())
		case <-ctx.Done():
			// last state for anyone still watching
			s.Publish(s.snapshot())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
