// Package api serves the latest inference outputs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/saaga0h/canopy/internal/monitor"
	"github.com/saaga0h/canopy/internal/notify"
	"github.com/saaga0h/canopy/internal/registry"
	"github.com/saaga0h/canopy/pkg/health"
)

const defaultAlertLimit = 20

// StatusProvider exposes the per-instance outputs of the monitor
type StatusProvider interface {
	Zones() []registry.Zone
	Snapshots(zoneID string) ([]*monitor.Snapshot, bool)
	Snapshot(zoneID string, sig evidence.Signal) (*monitor.Snapshot, bool)
	Evaluate(zoneID string) bool
}

// AlertHistory lists recently sent alerts of a zone
type AlertHistory interface {
	Recent(ctx context.Context, zone string, n int64) ([]notify.Alert, error)
}

// Server is the status API
type Server struct {
	status  StatusProvider
	alerts  AlertHistory
	health  *health.Checker
	logger  *slog.Logger
	timeout time.Duration
}

// NewServer creates the API. alerts and checker may be nil, which disables
// the alert history and the detailed health endpoint.
func NewServer(status StatusProvider, alerts AlertHistory, checker *health.Checker, logger *slog.Logger) *Server {
	return &Server{
		status:  status,
		alerts:  alerts,
		health:  checker,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// ZoneSummary is one entry of the zone listing
type ZoneSummary struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Signals []evidence.Signal `json:"signals"`
}

// ZoneSignals is the response of the per-zone signal listing
type ZoneSignals struct {
	Zone    string              `json:"zone"`
	Name    string              `json:"name"`
	Signals []*monitor.Snapshot `json:"signals"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router returns the routes without middleware
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.health != nil {
		r.HandleFunc("/health/detailed", s.health.DetailedHandlerFunc()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/zones", s.listZones).Methods(http.MethodGet)
	api.HandleFunc("/zones/{zone}/signals", s.listSignals).Methods(http.MethodGet)
	api.HandleFunc("/zones/{zone}/signals/{signal}", s.getSignal).Methods(http.MethodGet)
	api.HandleFunc("/zones/{zone}/evaluate", s.evaluate).Methods(http.MethodPost)
	api.HandleFunc("/zones/{zone}/alerts", s.listAlerts).Methods(http.MethodGet)

	return r
}

// Handler returns the routes wrapped with access logging and panic recovery
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)
	return handlers.LoggingHandler(accessLog, recovery(s.Router()))
}

// Start serves the API on port until the returned server is shut down
func (s *Server) Start(port int, accessLog io.Writer) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(accessLog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("Starting status API server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status API server error", "error", err)
		}
	}()

	return server
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.HandlerFunc()(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	zones := s.status.Zones()
	out := make([]ZoneSummary, 0, len(zones))
	for _, z := range zones {
		out = append(out, ZoneSummary{
			ID:      z.ID,
			Name:    z.DisplayName(),
			Signals: monitor.SignalsFor(z),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listSignals(w http.ResponseWriter, r *http.Request) {
	zoneID := mux.Vars(r)["zone"]

	snaps, ok := s.status.Snapshots(zoneID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown zone: "+zoneID)
		return
	}

	resp := ZoneSignals{Zone: zoneID, Name: zoneID, Signals: snaps}
	if len(snaps) > 0 {
		resp.Name = snaps[0].ZoneName
	}
	if resp.Signals == nil {
		resp.Signals = []*monitor.Snapshot{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSignal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sig := evidence.Signal(vars["signal"])
	if !sig.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown signal: "+vars["signal"])
		return
	}

	snap, ok := s.status.Snapshot(vars["zone"], sig)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no %s signal for zone %s", sig, vars["zone"]))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	zoneID := mux.Vars(r)["zone"]
	if !s.status.Evaluate(zoneID) {
		s.writeError(w, http.StatusNotFound, "unknown zone: "+zoneID)
		return
	}
	s.logger.Info("Evaluation requested over API", "zone", zoneID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"zone": zoneID, "status": "scheduled"})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		s.writeError(w, http.StatusNotFound, "alert history is not enabled")
		return
	}

	limit := int64(defaultAlertLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	zoneID := mux.Vars(r)["zone"]
	alerts, err := s.alerts.Recent(ctx, zoneID, limit)
	if err != nil {
		s.logger.Error("Failed to read alert history", "zone", zoneID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read alert history")
		return
	}
	if alerts == nil {
		alerts = []notify.Alert{}
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, msg string) {
	s.writeJSON(w, statusCode, errorResponse{Error: msg})
}

// recoveryLogger routes handler panics to slog
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("HTTP handler panicked", "panic", fmt.Sprint(v...))
}
