package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"starboard-bot/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RecordLookup resolves a curated message by source or posted message id.
type RecordLookup interface {
	Get(ctx context.Context, messageID string) (*models.CuratedMessage, error)
}

// OverrideLister lists the per-channel threshold overrides.
type OverrideLister interface {
	All() []models.ChannelOverride
}

// Server is the local HTTP surface: metrics, readiness and read-only
// inspection of curated messages.
type Server struct {
	router    *mux.Router
	server    *http.Server
	logger    logrus.FieldLogger
	gatherer  prometheus.Gatherer
	records   RecordLookup
	overrides OverrideLister
	ready     atomic.Bool
}

func NewServer(gatherer prometheus.Gatherer, records RecordLookup, overrides OverrideLister, logger logrus.FieldLogger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		gatherer:  gatherer,
		records:   records,
		overrides: overrides,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/starboard").Subrouter()
	api.HandleFunc("/messages/{id:[0-9]+}", s.handleMessage()).Methods(http.MethodGet)
	api.HandleFunc("/overrides", s.handleOverrides()).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips /healthz between 503 and 200.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start serves on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("Starting status server on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		rec, err := s.records.Get(r.Context(), id)
		if err != nil {
			s.logger.WithError(err).WithField("message_id", id).Warn("status lookup failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "lookup failed"})
			return
		}
		if rec == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not curated"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleOverrides() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := s.overrides.All()
		if items == nil {
			items = []models.ChannelOverride{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
