// Package status serves health, state, metrics and a live preview of the
// matrix over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/display"
	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/mode"
	"github.com/fkcurrie/led-matrix-display/internal/transport"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Engine reports the mode engine state
type Engine interface {
	Status() mode.Status
}

// Stream reports the instruction stream state
type Stream interface {
	Health() transport.Health
}

// Weather reports the weather snapshot
type Weather interface {
	Latest() (types.Snapshot, bool)
	Fresh(now time.Time) (types.Snapshot, bool)
}

// Display reports the scheme of the last rendered frame
type Display interface {
	Scheme() display.Scheme
}

// Sources are the components the status page reads. Weather and Addresses
// may be nil.
type Sources struct {
	Engine    Engine
	Stream    Stream
	Weather   Weather
	Display   Display
	Addresses func() []string
}

// Server is the status HTTP server
type Server struct {
	listen  string
	src     Sources
	hub     *Hub
	metrics *metrics.Metrics
	clock   clockwork.Clock
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the router. Access logs go to accessLog in the combined
// log format.
func NewServer(cfg types.StatusConfig, src Sources, hub *Hub, m *metrics.Metrics, clock clockwork.Clock, logger *slog.Logger, accessLog io.Writer) *Server {
	s := &Server{
		listen:  cfg.Listen,
		src:     src,
		hub:     hub,
		metrics: m,
		clock:   clock,
		logger:  logger.With("component", "status"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)
	r.HandleFunc("/preview/ws", hub.ServeWS).Methods(http.MethodGet)

	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}), handlers.PrintRecoveryStack(false))
	s.handler = handlers.CombinedLoggingHandler(accessLog, recovery(r))
	return s
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("handler panic", "panic", v)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "OK")
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	frame := s.hub.Latest()
	if frame == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

type panelStatus struct {
	Set   string `json:"set"`
	Index int    `json:"index"`
}

type instructionStatus struct {
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	Source     string    `json:"source"`
	Sequence   uint64    `json:"sequence"`
	ReceivedAt time.Time `json:"received_at"`
}

type pushStatus struct {
	Connected bool      `json:"connected"`
	Degraded  bool      `json:"degraded"`
	LastSeen  time.Time `json:"last_seen"`
	Queued    int       `json:"queued"`
}

type weatherStatus struct {
	Available bool       `json:"available"`
	Fresh     bool       `json:"fresh"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

type statusResponse struct {
	Time            time.Time          `json:"time"`
	Mode            string             `json:"mode"`
	Intent          string             `json:"intent"`
	Version         uint64             `json:"version"`
	Panel           *panelStatus       `json:"panel,omitempty"`
	Armed           []string           `json:"armed_timers"`
	NextDeadline    *time.Time         `json:"next_deadline,omitempty"`
	LastInstruction *instructionStatus `json:"last_instruction,omitempty"`
	Received        int                `json:"received"`
	Push            pushStatus         `json:"push"`
	Weather         weatherStatus      `json:"weather"`
	Night           bool               `json:"night"`
	Brightness      int                `json:"brightness"`
	Addresses       []string           `json:"addresses,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	es := s.src.Engine.Status()
	health := s.src.Stream.Health()
	scheme := s.src.Display.Scheme()

	resp := statusResponse{
		Time:     now,
		Mode:     es.Mode,
		Intent:   es.Intent.Kind.String(),
		Version:  es.Intent.Version,
		Armed:    es.Armed,
		Received: es.Received,
		Push: pushStatus{
			Connected: health.PushConnected,
			Degraded:  health.PushDegraded,
			LastSeen:  health.LastPushSeen,
			Queued:    health.Queued,
		},
		Night:      scheme.Night,
		Brightness: scheme.Brightness,
	}
	if resp.Armed == nil {
		resp.Armed = []string{}
	}
	if es.Intent.Kind == types.IntentForecast {
		resp.Panel = &panelStatus{Set: es.Intent.Panels.String(), Index: es.Intent.Panel}
	}
	if !es.NextDeadline.IsZero() {
		next := es.NextDeadline
		resp.NextDeadline = &next
	}
	if ins := es.LastInstruction; ins != nil {
		resp.LastInstruction = &instructionStatus{
			Kind:       ins.Kind.String(),
			Summary:    ins.String(),
			Source:     ins.Source.String(),
			Sequence:   ins.Sequence,
			ReceivedAt: ins.ReceivedAt,
		}
	}
	if s.src.Weather != nil {
		if snap, ok := s.src.Weather.Latest(); ok {
			fetched := snap.FetchedAt
			resp.Weather.Available = true
			resp.Weather.FetchedAt = &fetched
			_, resp.Weather.Fresh = s.src.Weather.Fresh(now)
		}
	}
	if s.src.Addresses != nil {
		resp.Addresses = s.src.Addresses()
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("failed to write status", "error", err)
	}
}
