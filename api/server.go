package api

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/trader"
)

// Server exposes run status over HTTP so an execution or backtest can be
// observed while it ticks.
type Server struct {
	executor *trader.SpreadExecutor
	logger   *logrus.Logger
	port     string

	mu      sync.RWMutex
	summary *models.BacktestSummary
}

func NewServer(executor *trader.SpreadExecutor, logger *logrus.Logger, port string) *Server {
	return &Server{
		executor: executor,
		logger:   logger,
		port:     port,
	}
}

// SetSummary publishes the latest backtest summary.
func (s *Server) SetSummary(summary models.BacktestSummary) {
	s.mu.Lock()
	s.summary = &summary
	s.mu.Unlock()
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/execution/progress", s.handleProgress)
	mux.HandleFunc("/api/backtest/summary", s.handleSummary)

	handler := corsMiddleware(mux)

	s.logger.Infof("Starting API server on port %s", s.port)
	return http.ListenAndServe(":"+s.port, handler)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.executor == nil {
		http.Error(w, "No execution running", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, s.executor.Progress())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	summary := s.summary
	s.mu.RUnlock()
	if summary == nil {
		http.Error(w, "No backtest summary available", http.StatusNotFound)
		return
	}

	// JSON has no NaN; an undefined Sharpe is surfaced as null.
	payload := map[string]interface{}{
		"days":              summary.Days,
		"final_pnl":         summary.FinalPnl,
		"total_return":      summary.TotalReturn,
		"annualized_return": summary.AnnualizedReturn,
		"annualized_vol":    summary.AnnualizedVol,
		"sharpe":            nil,
	}
	if !math.IsNaN(summary.Sharpe) {
		payload["sharpe"] = summary.Sharpe
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
