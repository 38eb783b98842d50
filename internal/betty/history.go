package betty

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/models"
)

// Aggregator folds evaluated predictions into per-week and cumulative
// accuracy. It only ever reads; if no evaluated predictions exist the
// result is empty and the caller decides what to do about it.
type Aggregator struct {
	store  models.PredictionStore
	logger zerolog.Logger
}

// NewAggregator creates an Aggregator over the store
func NewAggregator(store models.PredictionStore) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: log.With().Str("component", "weekly_aggregator").Logger(),
	}
}

// History returns the full track record: totals, overall accuracy and the
// chronologically ascending weekly buckets. Deterministic for a given store
// state; repeated calls produce identical output.
func (a *Aggregator) History(ctx context.Context) (models.History, error) {
	evaluated, err := a.store.FindEvaluatedPredictions(ctx)
	if err != nil {
		return models.History{}, fmt.Errorf("reading evaluated predictions: %w", err)
	}

	buckets := buildBuckets(evaluated)

	var totalCorrect int
	for _, b := range buckets {
		totalCorrect += b.CorrectCount
	}

	h := models.History{
		TotalPredictions: len(evaluated),
		TotalCorrect:     totalCorrect,
		WeeklyResults:    buckets,
	}
	if len(buckets) > 0 {
		h.OverallAccuracy = buckets[len(buckets)-1].CumulativeAccuracy
	}
	return h, nil
}

// buildBuckets groups evaluated predictions by week-start date key,
// preserving persisted order inside a group, then sorts the groups
// chronologically and folds running totals forward.
func buildBuckets(evaluated []models.EvaluatedPrediction) []models.WeeklyBucket {
	groups := map[string][]models.EvaluatedPrediction{}
	starts := map[string]time.Time{}
	var keys []string

	for _, ep := range evaluated {
		key := models.WeekKey(ep.Prediction.WeekStart)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
			starts[key] = models.WeekStart(ep.Prediction.WeekStart)
		}
		groups[key] = append(groups[key], ep)
	}

	sort.Strings(keys)

	var runningCorrect, runningTotal int
	buckets := make([]models.WeeklyBucket, 0, len(keys))
	for _, key := range keys {
		group := groups[key]

		correct := 0
		for _, ep := range group {
			if ep.Evaluation.WasCorrect {
				correct++
			}
		}

		runningCorrect += correct
		runningTotal += len(group)

		buckets = append(buckets, models.WeeklyBucket{
			WeekStart:          starts[key],
			Predictions:        group,
			CorrectCount:       correct,
			TotalCount:         len(group),
			WeekAccuracy:       percentage(correct, len(group)),
			CumulativeAccuracy: percentage(runningCorrect, runningTotal),
		})
	}
	return buckets
}

// percentage returns correct/total as a percent rounded to one decimal
func percentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*1000) / 10
}
