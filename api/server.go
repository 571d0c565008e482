package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
	"github.com/khaledhikmat/ws-go/service/pubsub"
	"github.com/khaledhikmat/ws-go/service/store"
)

// Server is the admin API: stats and users from the store, agent start/stop, live
// stats over websockets and the Prometheus endpoint.
type Server struct {
	store      store.IService
	pubsub     pubsub.IService
	controller *Controller
	hub        *Hub
	metrics    *metrics.Metrics
	timeout    time.Duration
}

// NewServer wires the routes. storeSvc may be nil, in which case the stats and user
// routes answer 503.
func NewServer(storeSvc store.IService, pubsubSvc pubsub.IService, controller *Controller, m *metrics.Metrics, storeTimeout time.Duration) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		store:      storeSvc,
		pubsub:     pubsubSvc,
		controller: controller,
		hub:        NewHub(m),
		metrics:    m,
		timeout:    storeTimeout,
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stats", s.listStats)
	mux.HandleFunc("GET /api/stats/{user}", s.getStats)
	mux.HandleFunc("DELETE /api/stats/{user}", s.deleteStats)

	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("POST /api/users", s.createUser)

	mux.HandleFunc("POST /api/detection/start", s.startDetection)
	mux.HandleFunc("POST /api/detection/stop", s.stopDetection)
	mux.HandleFunc("GET /api/detection/status", s.detectionStatus)

	mux.HandleFunc("GET /ws/stats", s.statsSocket)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return logRequests(mux)
}

// ListenAndServe blocks until ctx ends or the listener fails, then shuts the HTTP server
// and the websocket hub down within grace.
func (s *Server) ListenAndServe(ctx context.Context, address string, grace time.Duration) error {
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lgr.Logger.Info("admin api listening", slog.String("address", address))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	hubCancel()
	<-s.hub.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	lgr.Logger.Info("admin api stopped")
	return nil
}

func (s *Server) storeCtx(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		lgr.Logger.Debug("api request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
