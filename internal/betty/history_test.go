package betty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bettycrystal/betty-backend/models"
)

func TestHistoryEmpty(t *testing.T) {
	agg := NewAggregator(newMemStore())

	h, err := agg.History(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.TotalPredictions)
	assert.Zero(t, h.TotalCorrect)
	assert.Zero(t, h.OverallAccuracy)
	assert.Empty(t, h.WeeklyResults, "the aggregator never fabricates data")
}

func TestHistoryTwoWeekScenario(t *testing.T) {
	// Week A: 3/3 correct. Week B: 2/3. Cumulative after B: 5/6.
	store := newMemStore()
	weekA := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	weekB := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	// Insert out of chronological order to prove sorting.
	seedEvaluatedWeek(t, store, weekB, 2, 3)
	seedEvaluatedWeek(t, store, weekA, 3, 3)

	h, err := NewAggregator(store).History(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, h.TotalPredictions)
	assert.Equal(t, 5, h.TotalCorrect)
	assert.InDelta(t, 83.3, h.OverallAccuracy, 1e-9)

	require.Len(t, h.WeeklyResults, 2)

	first := h.WeeklyResults[0]
	assert.True(t, first.WeekStart.Equal(weekA))
	assert.Equal(t, 3, first.CorrectCount)
	assert.Equal(t, 3, first.TotalCount)
	assert.InDelta(t, 100.0, first.WeekAccuracy, 1e-9)
	assert.InDelta(t, 100.0, first.CumulativeAccuracy, 1e-9)

	second := h.WeeklyResults[1]
	assert.True(t, second.WeekStart.Equal(weekB))
	assert.Equal(t, 2, second.CorrectCount)
	assert.Equal(t, 3, second.TotalCount)
	assert.InDelta(t, 66.7, second.WeekAccuracy, 1e-9)
	assert.InDelta(t, 83.3, second.CumulativeAccuracy, 1e-9)
}

func TestHistoryDeterministicAcrossRuns(t *testing.T) {
	store := newMemStore()
	seedEvaluatedWeek(t, store, time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), 1, 3)
	seedEvaluatedWeek(t, store, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), 3, 3)
	seedEvaluatedWeek(t, store, time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC), 2, 3)

	agg := NewAggregator(store)
	first, err := agg.History(context.Background())
	require.NoError(t, err)
	second, err := agg.History(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHistoryGroupsPreservePersistedOrder(t *testing.T) {
	store := newMemStore()
	week := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		pred := models.Prediction{ID: id, WeekStart: week, Symbol: "BTC", AssetType: models.ClassCrypto}
		require.NoError(t, store.InsertPredictions(ctx, []models.Prediction{pred}))
		require.NoError(t, store.InsertEvaluation(ctx, models.Evaluation{PredictionID: id, WasCorrect: true}))
	}

	h, err := NewAggregator(store).History(ctx)
	require.NoError(t, err)
	require.Len(t, h.WeeklyResults, 1)

	var ids []string
	for _, ep := range h.WeeklyResults[0].Predictions {
		ids = append(ids, ep.Prediction.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
