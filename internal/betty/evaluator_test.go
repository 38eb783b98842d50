package betty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bettycrystal/betty-backend/models"
)

func predictionFixture(direction models.Direction, magnitude float64) models.Prediction {
	signed := magnitude
	if direction == models.DirectionDown {
		signed = -magnitude
	}
	return models.Prediction{
		ID:                     "pred-1",
		WeekStart:              testWeek,
		Symbol:                 "BTC",
		Name:                   "Bitcoin",
		AssetType:              models.ClassCrypto,
		CurrentPrice:           100,
		Direction:              direction,
		PredictedChangePercent: magnitude,
		PredictedTargetPrice:   100 * (1 + signed/100),
		Confidence:             0.7,
	}
}

func TestScoreBoundaryCases(t *testing.T) {
	tests := []struct {
		name      string
		direction models.Direction
		magnitude float64
		observed  float64
		wantScore float64
		wantWas   bool
	}{
		// Direction correct, magnitude exact: full credit.
		{"exact up move", models.DirectionUp, 5, 105, 1.0, true},
		// Direction wrong, magnitude exact: only the magnitude half.
		{"down call on an up move", models.DirectionDown, 5, 105, 0.5, false},
		// Direction correct, magnitude off by the 20-point ceiling.
		{"direction right magnitude hopeless", models.DirectionUp, 25, 105, 0.5, true},
		// Direction wrong and magnitude off by the ceiling: zero.
		{"all wrong", models.DirectionDown, 25, 105, 0.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := predictionFixture(tt.direction, tt.magnitude)
			ev := Score(pred, tt.observed)
			assert.InDelta(t, tt.wantScore, ev.AccuracyScore, 1e-9)
			assert.Equal(t, tt.wantWas, ev.WasCorrect)
		})
	}
}

func TestScoreUpPredictionPartialCredit(t *testing.T) {
	// reference=100, up 5%, observed 103: change +3%, diff 2 points.
	pred := predictionFixture(models.DirectionUp, 5)
	ev := Score(pred, 103)

	assert.InDelta(t, 3.0, ev.ActualChangePercent, 1e-9)
	assert.True(t, ev.WasCorrect)
	assert.InDelta(t, 2.0, ev.PriceDiffPercent, 1e-9)
	assert.InDelta(t, 0.95, ev.AccuracyScore, 1e-9)
}

func TestScoreFlatMoveCountsAsNotUp(t *testing.T) {
	// reference=100, down 5%, observed 100: zero change is "not up", so a
	// down call is directionally correct; diff 5 points.
	pred := predictionFixture(models.DirectionDown, 5)
	ev := Score(pred, 100)

	assert.InDelta(t, 0.0, ev.ActualChangePercent, 1e-9)
	assert.True(t, ev.WasCorrect)
	assert.InDelta(t, 5.0, ev.PriceDiffPercent, 1e-9)
	assert.InDelta(t, 0.875, ev.AccuracyScore, 1e-9)

	// The mirror case: an up call on a flat move is wrong.
	up := predictionFixture(models.DirectionUp, 5)
	ev = Score(up, 100)
	assert.False(t, ev.WasCorrect)
	assert.InDelta(t, 0.375, ev.AccuracyScore, 1e-9)
}

func TestEvaluatePersistsOnce(t *testing.T) {
	store := newMemStore()
	pred := predictionFixture(models.DirectionUp, 5)
	require.NoError(t, store.InsertPredictions(context.Background(), []models.Prediction{pred}))

	ev := NewEvaluator(testCache(testQuotes()), store)

	first, err := ev.Evaluate(context.Background(), pred)
	require.NoError(t, err)
	assert.Equal(t, 1, store.evaluationCount())

	second, err := ev.Evaluate(context.Background(), pred)
	require.NoError(t, err)
	assert.Equal(t, 1, store.evaluationCount(), "repeat evaluation never writes")
	assert.Equal(t, first, second)
}

func TestEvaluateUsesObservedSnapshotPrice(t *testing.T) {
	store := newMemStore()
	pred := predictionFixture(models.DirectionUp, 5)
	pred.CurrentPrice = 60000
	require.NoError(t, store.InsertPredictions(context.Background(), []models.Prediction{pred}))

	// Snapshot lists BTC at 65000.
	ev, err := NewEvaluator(testCache(testQuotes()), store).Evaluate(context.Background(), pred)
	require.NoError(t, err)
	assert.InDelta(t, 65000.0, ev.ActualPrice, 1e-9)
	assert.True(t, ev.WasCorrect)
}

func TestEvaluateSubstringMatchForSuffixedTickers(t *testing.T) {
	store := newMemStore()
	pred := predictionFixture(models.DirectionUp, 1)
	pred.Symbol = "GC" // stored without the futures suffix
	pred.AssetType = models.ClassMetal
	pred.CurrentPrice = 2300
	require.NoError(t, store.InsertPredictions(context.Background(), []models.Prediction{pred}))

	// Snapshot lists the full ticker GC=F.
	ev, err := NewEvaluator(testCache(testQuotes()), store).Evaluate(context.Background(), pred)
	require.NoError(t, err)
	assert.InDelta(t, 2400.0, ev.ActualPrice, 1e-9)
}

func TestEvaluateLookupMissFallsBackToReferencePrice(t *testing.T) {
	store := newMemStore()
	pred := predictionFixture(models.DirectionDown, 5)
	pred.Symbol = "DOGE" // not in the snapshot
	require.NoError(t, store.InsertPredictions(context.Background(), []models.Prediction{pred}))

	ev, err := NewEvaluator(testCache(testQuotes()), store).Evaluate(context.Background(), pred)
	require.NoError(t, err)

	// No signal: flat against the reference price, "down" scored against 0%.
	assert.InDelta(t, pred.CurrentPrice, ev.ActualPrice, 1e-9)
	assert.InDelta(t, 0.0, ev.ActualChangePercent, 1e-9)
	assert.True(t, ev.WasCorrect)
}

func TestEvaluatePendingOnlyTouchesPastWeeks(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	past := predictionFixture(models.DirectionUp, 5)
	past.ID = "past"
	past.WeekStart = models.WeekStart(testNow.AddDate(0, 0, -14))

	current := predictionFixture(models.DirectionUp, 5)
	current.ID = "current"
	current.WeekStart = models.WeekStart(testNow)

	require.NoError(t, store.InsertPredictions(ctx, []models.Prediction{past, current}))

	evaluator := NewEvaluator(testCache(testQuotes()), store)
	evaluator.now = func() time.Time { return testNow }

	require.NoError(t, evaluator.EvaluatePending(ctx))

	got, err := store.FindEvaluation(ctx, "past")
	require.NoError(t, err)
	assert.NotNil(t, got, "past week gets evaluated")

	got, err = store.FindEvaluation(ctx, "current")
	require.NoError(t, err)
	assert.Nil(t, got, "the running week is left alone")
}
