// Package server exposes the metric history service over HTTP.
//
// All query endpoints are read-only GETs against the in-memory cache;
// ingestion is available as a POST for deployments without a fetch URL.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/service"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

var log = logging.Component("server")

// Config holds the HTTP listener settings.
type Config struct {
	Listen          string
	ShutdownTimeout time.Duration

	// AllowedOrigins is the CORS allowlist. Empty disables CORS
	// headers entirely (same-origin clients only).
	AllowedOrigins []string
}

// Server serves the query API for a single history service.
type Server struct {
	config  Config
	service *service.Service
	httpSrv *http.Server
}

// New builds a server around svc. Nothing listens until Start.
func New(cfg Config, svc *service.Service) *Server {
	s := &Server{
		config:  cfg,
		service: svc,
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.buildHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wired HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/average", s.handleAverage).Methods("GET")
	api.HandleFunc("/trend", s.handleTrend).Methods("GET")
	api.HandleFunc("/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/windows", s.handleWindows).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/ingest", s.handleIngest).Methods("POST")

	if len(s.config.AllowedOrigins) == 0 {
		return router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

// Start begins serving and blocks until the listener fails or ctx is
// cancelled. Cancellation triggers a graceful drain bounded by the
// configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", s.config.Listen)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
		return err
	}
	log.Info("http server stopped")
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// entityParams pulls the cluster/pod/metric triple out of the query
// string. Reports the first missing parameter.
func entityParams(r *http.Request) (types.Entity, string, string, bool) {
	q := r.URL.Query()
	entity := types.Entity{
		Cluster: q.Get("cluster"),
		Pod:     q.Get("pod"),
	}
	metric := q.Get("metric")
	switch {
	case entity.Cluster == "":
		return entity, "", "cluster", false
	case entity.Pod == "":
		return entity, "", "pod", false
	case metric == "":
		return entity, "", "metric", false
	}
	return entity, metric, "", true
}

func (s *Server) seriesFor(r *http.Request, entity types.Entity, metric string) types.Series {
	if labels := r.URL.Query().Get("labels"); labels != "" {
		return s.service.GetMetricHistoryByLabel(entity, metric, labels)
	}
	return s.service.GetMetricHistory(entity, metric)
}

func windowParam(r *http.Request) (types.Window, bool) {
	return types.WindowByLabel(r.URL.Query().Get("window"))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entity, metric, missing, ok := entityParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing parameter: "+missing)
		return
	}
	series := s.seriesFor(r, entity, metric)
	if series == nil {
		series = types.Series{}
	}
	respondJSON(w, http.StatusOK, series)
}

func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	entity, metric, missing, ok := entityParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing parameter: "+missing)
		return
	}
	window, ok := windowParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown window: "+r.URL.Query().Get("window"))
		return
	}
	series := s.seriesFor(r, entity, metric)
	avg := s.service.GetAverageMetricValue(window, series)
	respondJSON(w, http.StatusOK, map[string]float64{"average": avg})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	entity, metric, missing, ok := entityParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing parameter: "+missing)
		return
	}
	window, ok := windowParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown window: "+r.URL.Query().Get("window"))
		return
	}
	series := s.seriesFor(r, entity, metric)
	respondJSON(w, http.StatusOK, s.service.GetMetricTrend(window, series))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	entity, metric, missing, ok := entityParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "missing parameter: "+missing)
		return
	}
	window, ok := windowParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown window: "+r.URL.Query().Get("window"))
		return
	}
	series := s.seriesFor(r, entity, metric)
	respondJSON(w, http.StatusOK, s.service.GetWindowSummary(window, series))
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Windows())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Stats(r.Context()))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload types.ClusterMap
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	s.service.Ingest(payload)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
