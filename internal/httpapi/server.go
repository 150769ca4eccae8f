// Package httpapi serves a read-only JSON view of the hub model.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zberg/go-nobo/pkg/nobo"
)

// StateReporter reports the session state. *nobo.Hub implements it.
type StateReporter interface {
	State() nobo.State
}

// Server exposes the Store over HTTP.
type Server struct {
	store     *nobo.Store
	session   StateReporter
	gatherer  prometheus.Gatherer
	accessLog io.Writer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithAccessLog writes an access log line per request to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

// WithLogger sets the logger for encoding failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock replaces the clock used to resolve zone modes.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server for store. session may be nil, in which case
// /health only reports that the process is up.
func New(store *nobo.Store, session StateReporter, opts ...Option) *Server {
	s := &Server{
		store:   store,
		session: session,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with panic recovery and, if
// configured, access logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/hub", s.hub).Methods(http.MethodGet)
	r.HandleFunc("/zones", s.zones).Methods(http.MethodGet)
	r.HandleFunc("/zones/{id}", s.zone).Methods(http.MethodGet)
	r.HandleFunc("/components", s.components).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	var h http.Handler = r
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return h
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	state := s.session.State()
	if state != nobo.StateReady {
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", State: state.String()})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", State: state.String()})
}

type hubResponse struct {
	Serial                    string `json:"serial"`
	Name                      string `json:"name"`
	DefaultAwayOverrideLength string `json:"default_away_override_length"`
	SoftwareVersion           string `json:"software_version"`
	HardwareVersion           string `json:"hardware_version"`
	ProductionDate            string `json:"production_date"`
}

func (s *Server) hub(w http.ResponseWriter, r *http.Request) {
	info, ok := s.store.HubInfo()
	if !ok {
		s.writeError(w, http.StatusNotFound, "hub info not received yet")
		return
	}
	s.writeJSON(w, http.StatusOK, hubResponse{
		Serial:                    info.Serial,
		Name:                      info.Name,
		DefaultAwayOverrideLength: info.DefaultAwayOverrideLength,
		SoftwareVersion:           info.SoftwareVersion,
		HardwareVersion:           info.HardwareVersion,
		ProductionDate:            info.ProductionDate,
	})
}

func (s *Server) zones(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	out := []nobo.ZoneStatus{}
	for _, z := range s.store.Zones() {
		st, err := s.store.ZoneStatus(z.ID, now)
		if err != nil {
			// Removed between listing and lookup.
			continue
		}
		out = append(out, st)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) zone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, err := s.store.ZoneStatus(id, s.now())
	if errors.Is(err, nobo.ErrUnknownZone) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

type componentResponse struct {
	Serial      string `json:"serial"`
	Name        string `json:"name"`
	Model       string `json:"model,omitempty"`
	ZoneID      string `json:"zone_id,omitempty"`
	Temperature string `json:"temperature,omitempty"`
}

func (s *Server) components(w http.ResponseWriter, r *http.Request) {
	out := []componentResponse{}
	for _, c := range s.store.Components() {
		resp := componentResponse{Serial: c.Serial, Name: c.Name}
		if c.Model != nil {
			resp.Model = c.Model.Name
		}
		if c.InZone() {
			resp.ZoneID = c.ZoneID
		}
		resp.Temperature, _ = s.store.Temperature(c.Serial)
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
