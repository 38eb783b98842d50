package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bettycrystal/betty-backend/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "betty-backend",
	})
}

// handleQuotes serves the cached snapshot for one asset class as a bare
// array. A refresh failure behind the cache still yields the stale snapshot,
// so this only errors on an unknown class.
func (s *Server) handleQuotes(class models.AssetClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quotes, err := s.cache.Get(r.Context(), class)
		if err != nil {
			s.logger.Error().Err(err).Str("asset_class", string(class)).Msg("Snapshot fetch failed")
			writeError(w, http.StatusInternalServerError, "snapshot unavailable")
			return
		}
		if quotes == nil {
			quotes = []models.AssetQuote{}
		}
		writeJSON(w, http.StatusOK, quotes)
	}
}

func (s *Server) handleCurrentWeek(w http.ResponseWriter, r *http.Request) {
	week := models.WeekStart(s.now())

	preds, err := s.store.FindPredictionsForWeek(r.Context(), week)
	if err != nil {
		s.logger.Error().Err(err).Msg("Current week lookup failed")
		writeError(w, http.StatusInternalServerError, "could not read predictions")
		return
	}

	status := "Betty is still gazing into her crystal ball..."
	if len(preds) > 0 {
		status = "Betty has made her picks for this week!"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current_week_start":      models.WeekKey(week),
		"has_current_predictions": len(preds) > 0,
		"betty_status":            status,
	})
}

// handlePredictions returns this week's picks, generating them on first
// call. Generation is idempotent per week, so repeated requests are cheap.
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	week := models.WeekStart(s.now())

	preds, err := s.generator.Generate(r.Context(), week)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoQuotes):
			writeError(w, http.StatusServiceUnavailable, "market data unavailable")
		case errors.Is(err, models.ErrNotEnoughPicks):
			writeError(w, http.StatusServiceUnavailable, "Betty could not settle on three picks, try again shortly")
		default:
			s.logger.Error().Err(err).Msg("Prediction generation failed")
			writeError(w, http.StatusInternalServerError, "prediction generation failed")
		}
		return
	}

	confidence := 0.0
	for _, p := range preds {
		confidence += p.Confidence
	}
	if len(preds) > 0 {
		confidence /= float64(len(preds))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"week_start":       models.WeekKey(week),
		"predictions":      preds,
		"betty_confidence": confidence,
	})
}

// handleHistory scores any overdue weeks first so the track record is
// current, then aggregates. An empty record is backfilled with demo weeks so
// a fresh install has something to show.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.evaluator.EvaluatePending(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Pending evaluation sweep failed, serving stored history")
	}

	history, err := s.aggregator.History(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("History aggregation failed")
		writeError(w, http.StatusInternalServerError, "could not build history")
		return
	}

	if history.TotalPredictions == 0 {
		if err := seedDemoHistory(r.Context(), s.store, s.now()); err != nil {
			s.logger.Warn().Err(err).Msg("Demo history seed failed")
		} else if history, err = s.aggregator.History(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("History aggregation failed after seed")
			writeError(w, http.StatusInternalServerError, "could not build history")
			return
		}
	}

	writeJSON(w, http.StatusOK, history)
}
