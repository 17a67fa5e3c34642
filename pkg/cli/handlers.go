package cli

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/churnscope/churnctl/pkg/scoring"
	"github.com/churnscope/churnctl/pkg/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func healthHandler(modelID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"model":  modelID,
		})
	}
}

func scoreOneHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON record")
			return
		}

		result, err := svc.ScoreOne(rec)
		if err != nil {
			slog.Error("failed to score record", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to score record")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func scoreBatchHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var recs []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON record list")
			return
		}

		results, err := svc.ScoreBatch(recs)
		if err != nil {
			slog.Error("failed to score batch", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to score batch")
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func predictionsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryParamInt(r, "limit", predictionListLimitDefault)

		preds, err := st.Predictions(r.Context(), limit)
		if err != nil {
			slog.Error("failed to get predictions", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get predictions")
			return
		}
		writeJSON(w, http.StatusOK, preds)
	}
}

func queryParamInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
