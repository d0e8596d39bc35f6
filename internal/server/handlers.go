package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/forkcast/internal/catalog"
	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
	"github.com/thebtf/forkcast/internal/sim"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("http.encode_response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"status": "error", "detail": detail})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// simulateRequest is the batch trigger payload. budget, when present,
// overrides the configured call budget for this batch only.
type simulateRequest struct {
	Runs   int    `json:"runs"`
	RunID  string `json:"run_id,omitempty"`
	Budget *int64 `json:"budget,omitempty"`
}

func (s *Service) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Runs < 0 {
		writeError(w, http.StatusBadRequest, "runs must be >= 0")
		return
	}

	client := s.newBatchClient(req.Budget)
	runner := sim.NewRunner(s.store, client)

	summary, err := runner.Run(r.Context(), sim.Options{
		Runs:       req.Runs,
		RunID:      req.RunID,
		BucketHint: s.cfg.BucketHint,
	})
	if err != nil {
		var budgetErr *llm.BudgetExceededError
		if errors.As(err, &budgetErr) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"status":  "error",
				"detail":  budgetErr.Error(),
				"summary": summary,
			})
			return
		}
		log.Error().Err(err).Msg("ops.simulate_failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"summary": summary,
	})
}

func (s *Service) handleSeed(w http.ResponseWriter, r *http.Request) {
	count, err := catalog.LoadSeed(r.Context(), s.store.DB, s.cfg.SeedPath)
	if err != nil {
		var seedErr *catalog.SeedError
		if errors.As(err, &seedErr) {
			writeError(w, http.StatusUnprocessableEntity, seedErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "inserted": count})
}

func (s *Service) handleCatalogLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	entry, err := gormdb.NewCatalogStore(s.store.DB).Lookup(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "food not in catalog")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Service) handleDietReport(w http.ResponseWriter, r *http.Request) {
	counts, err := gormdb.NewRunStore(s.store.DB).CountUsersByDiet(r.Context(), r.URL.Query().Get("run_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"diets": counts})
}

func (s *Service) handleCostReport(w http.ResponseWriter, r *http.Request) {
	totals, err := gormdb.NewRunStore(s.store.DB).SumCosts(r.Context(), r.URL.Query().Get("run_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
