// Package http exposes the operator control surface: risk status and
// overrides, recent telemetry, a websocket audit stream, health and
// Prometheus metrics. Local-only bind by default.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/risk"
)

// CandidateFunc evaluates one candidate through the live pipeline.
type CandidateFunc func(ctx context.Context, symbol string, side domain.Side, notional float64) (any, error)

// OutcomeFunc records a realized trade outcome.
type OutcomeFunc func(ctx context.Context, out domain.TradeOutcome)

// MarketFunc refreshes a symbol's price and average true range.
type MarketFunc func(symbol string, price, atr float64)

// Server is the control-surface HTTP server.
type Server struct {
	router    *mux.Router
	server    *http.Server
	governor  *risk.Governor
	hub       *TelemetryHub
	upgrader  websocket.Upgrader
	candidate CandidateFunc
	outcome   OutcomeFunc
	market    MarketFunc
}

// NewServer wires the routes against the governor and telemetry hub.
func NewServer(cfg config.ServerConfig, governor *risk.Governor, hub *TelemetryHub, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		governor: governor,
		hub:      hub,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/risk", s.handleRiskStatus).Methods("GET")
	api.HandleFunc("/risk/reset", s.handleRiskReset).Methods("POST")
	api.HandleFunc("/risk/kill", s.handleKillSwitch).Methods("POST")
	api.HandleFunc("/telemetry/recent", s.handleRecent).Methods("GET")
	api.HandleFunc("/candidates", s.handleCandidate).Methods("POST")
	api.HandleFunc("/outcomes", s.handleOutcome).Methods("POST")
	api.HandleFunc("/market", s.handleMarket).Methods("POST")

	s.router.HandleFunc("/ws/telemetry", s.handleTelemetryWS)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetPipeline wires the intake endpoints to the live session. Until
// set, intake requests answer 503.
func (s *Server) SetPipeline(candidate CandidateFunc, outcome OutcomeFunc, market MarketFunc) {
	s.candidate, s.outcome, s.market = candidate, outcome, market
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("control server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tier":   s.governor.Tier().String(),
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleRiskStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.governor.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":          state,
		"daily_loss_pct": state.DailyLossPct(),
		"drawdown_pct":   state.DrawdownPct(),
	})
}

type operatorRequest struct {
	Operator string `json:"operator"`
}

func (s *Server) handleRiskReset(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Operator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator field required"})
		return
	}
	if err := s.governor.Reset(r.Context(), req.Operator); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tier": s.governor.Tier().String()})
}

func (s *Server) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Operator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator field required"})
		return
	}
	s.governor.KillSwitch(r.Context(), req.Operator)
	writeJSON(w, http.StatusOK, map[string]string{"tier": s.governor.Tier().String()})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid n parameter"})
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.hub.Recent(n))
}

type candidateRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Notional float64 `json:"notional"`
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	if s.candidate == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not running"})
		return
	}
	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid candidate body"})
		return
	}
	res, err := s.candidate(r.Context(), req.Symbol, domain.Side(req.Side), req.Notional)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	if s.outcome == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not running"})
		return
	}
	var out domain.TradeOutcome
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil || out.Symbol == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outcome body"})
		return
	}
	if out.ClosedAt.IsZero() {
		out.ClosedAt = time.Now().UTC()
	}
	s.outcome(r.Context(), out)
	writeJSON(w, http.StatusOK, map[string]string{"tier": s.governor.Tier().String()})
}

type marketRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	ATR    float64 `json:"atr"`
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not running"})
		return
	}
	var req marketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid market body"})
		return
	}
	s.market(req.Symbol, req.Price, req.ATR)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry websocket upgrade failed")
		return
	}
	s.hub.Subscribe(conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("control response encode failed")
	}
}
