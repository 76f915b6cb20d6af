// Package handlers implements the HTTP API surface over the decision
// engine and its persisted history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/store"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Runner triggers decision runs
type Runner interface {
	Run(ctx context.Context, instruments []string, asOf time.Time) (*contracts.DecisionRecord, error)
}

// History reads persisted runs and portfolio state
type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	GetRecord(ctx context.Context, runID string) (*contracts.DecisionRecord, error)
	LoadPortfolio(ctx context.Context) (*contracts.PortfolioState, error)
}

// DecisionHandler handles run and portfolio endpoints
type DecisionHandler struct {
	runner   Runner
	history  History
	universe []string
	logger   *logger.Logger
}

// NewDecisionHandler creates a decision handler. universe is the
// default instrument set when a trigger request does not name one.
func NewDecisionHandler(runner Runner, history History, universe []string, log *logger.Logger) *DecisionHandler {
	return &DecisionHandler{
		runner:   runner,
		history:  history,
		universe: universe,
		logger:   log,
	}
}

// triggerRequest is the POST /api/runs body
type triggerRequest struct {
	Instruments []string `json:"instruments,omitempty"`
	AsOf        string   `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// TriggerRun starts a decision run synchronously
// POST /api/runs
func (h *DecisionHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	instruments := req.Instruments
	if len(instruments) == 0 {
		instruments = h.universe
	}
	if len(instruments) == 0 {
		respondError(w, http.StatusBadRequest, "no instruments configured")
		return
	}

	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			respondError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	record, err := h.runner.Run(r.Context(), instruments, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Triggered run failed")
		// The failed record still carries the audit trail
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"record":  record,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"record":  record,
	})
}

// ListRuns returns recent run summaries
// GET /api/runs?limit=20
func (h *DecisionHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(runs),
		"runs":    runs,
	})
}

// GetRun returns one full decision record
// GET /api/runs/{id}
func (h *DecisionHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	record, err := h.history.GetRecord(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"record":  record,
	})
}

// GetPortfolio returns the current portfolio state
// GET /api/portfolio
func (h *DecisionHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	state, err := h.history.LoadPortfolio(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load portfolio")
		respondError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}
	if state == nil {
		respondError(w, http.StatusNotFound, "no portfolio persisted yet")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"portfolio": state,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
