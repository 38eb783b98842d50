package betty

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/internal/market"
	"github.com/bettycrystal/betty-backend/models"
)

// Scoring model: direction correctness and magnitude precision each carry
// half the score, and a magnitude error of 20 percentage points or more
// earns nothing on the magnitude half. This is a deliberate design choice,
// not fitted to data.
const (
	directionWeight  = 0.5
	magnitudeWeight  = 0.5
	magnitudeCeiling = 20.0
)

// Evaluator scores persisted predictions against freshly observed prices.
type Evaluator struct {
	cache  *market.Cache
	store  models.PredictionStore
	now    func() time.Time
	logger zerolog.Logger
}

// NewEvaluator creates an Evaluator over the cache and store
func NewEvaluator(cache *market.Cache, store models.PredictionStore) *Evaluator {
	return &Evaluator{
		cache:  cache,
		store:  store,
		now:    time.Now,
		logger: log.With().Str("component", "accuracy_evaluator").Logger(),
	}
}

// Evaluate scores one prediction and persists the result. Evaluation is
// idempotent per prediction id: if a stored evaluation already exists it is
// returned unchanged and nothing is written.
func (e *Evaluator) Evaluate(ctx context.Context, pred models.Prediction) (models.Evaluation, error) {
	logger := e.logger.With().
		Str("prediction_id", pred.ID).
		Str("symbol", pred.Symbol).
		Str("week", models.WeekKey(pred.WeekStart)).
		Logger()

	existing, err := e.store.FindEvaluation(ctx, pred.ID)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("looking up evaluation: %w", err)
	}
	if existing != nil {
		logger.Debug().Msg("Prediction already evaluated, skipping")
		return *existing, nil
	}

	quotes, err := e.cache.Get(ctx, pred.AssetType)
	if err != nil {
		return models.Evaluation{}, err
	}

	observed, found := lookupPrice(quotes, pred)
	if !found {
		// Conservative no-signal outcome: flat against the reference price.
		observed = pred.CurrentPrice
		logger.Warn().Str("stage", "lookup").Msg("Asset missing from snapshot, falling back to reference price")
	}

	ev := Score(pred, observed)
	ev.EvaluatedAt = e.now().UTC()

	if err := e.store.InsertEvaluation(ctx, ev); err != nil {
		return models.Evaluation{}, fmt.Errorf("persisting evaluation: %w", err)
	}

	logger.Info().
		Float64("accuracy_score", ev.AccuracyScore).
		Bool("was_correct", ev.WasCorrect).
		Msg("Prediction evaluated")
	return ev, nil
}

// EvaluatePending evaluates every unevaluated prediction from weeks that
// ended before the current one. Single failures are logged and skipped so
// one bad symbol cannot stall the rest of the backlog.
func (e *Evaluator) EvaluatePending(ctx context.Context) error {
	cutoff := models.WeekStart(e.now())
	pending, err := e.store.FindUnevaluatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing unevaluated predictions: %w", err)
	}

	for _, pred := range pending {
		if _, err := e.Evaluate(ctx, pred); err != nil {
			e.logger.Error().Err(err).
				Str("prediction_id", pred.ID).
				Str("symbol", pred.Symbol).
				Msg("Evaluation failed")
		}
	}
	return nil
}

// Score computes the evaluation record for a prediction against an observed
// price. Pure function, exported for the scoring tests.
//
// A flat move is "not up", so a "down" prediction on an unchanged price
// counts as directionally correct.
func Score(pred models.Prediction, observedPrice float64) models.Evaluation {
	actualChange := 0.0
	if pred.CurrentPrice != 0 {
		actualChange = (observedPrice - pred.CurrentPrice) / pred.CurrentPrice * 100
	}

	directionCorrect := (pred.Direction == models.DirectionUp) == (actualChange > 0)
	priceDiff := math.Abs(pred.PredictedChangePercent - math.Abs(actualChange))

	score := 0.0
	if directionCorrect {
		score += directionWeight
	}
	score += math.Max(0, (magnitudeCeiling-priceDiff)/magnitudeCeiling) * magnitudeWeight

	return models.Evaluation{
		PredictionID:        pred.ID,
		ActualPrice:         observedPrice,
		ActualChangePercent: actualChange,
		WasCorrect:          directionCorrect,
		PriceDiffPercent:    priceDiff,
		AccuracyScore:       score,
	}
}

// lookupPrice finds the prediction's asset in the snapshot. Crypto symbols
// match exactly; currency and metal tickers carry source suffixes ("=X",
// "=F"), so those match when the stored symbol is a substring of the listed
// one. The substring fallback is kept for compatibility with existing data
// even though it can over-match short symbols.
func lookupPrice(quotes []models.AssetQuote, pred models.Prediction) (float64, bool) {
	symbol := strings.ToUpper(pred.Symbol)
	for _, q := range quotes {
		listed := strings.ToUpper(q.Symbol)
		if listed == symbol {
			return q.Price, true
		}
		if pred.AssetType != models.ClassCrypto && strings.Contains(listed, symbol) {
			return q.Price, true
		}
	}
	return 0, false
}
