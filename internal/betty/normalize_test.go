package betty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bettycrystal/betty-backend/models"
)

func validProposal() models.RawProposal {
	return models.RawProposal{
		Symbol:                 "BTC",
		Name:                   "Bitcoin",
		AssetType:              "crypto",
		CurrentPrice:           100,
		Direction:              "up",
		PredictedChangePercent: 5,
		Confidence:             0.7,
		Reasoning:              "the crystal ball says so",
	}
}

var (
	testWeek = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
)

func TestNormalizeProposalTargetPriceInvariant(t *testing.T) {
	up := validProposal()
	pred, err := NormalizeProposal(up, testWeek, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionUp, pred.Direction)
	assert.InDelta(t, 105.0, pred.PredictedTargetPrice, 1e-9)
	assert.InDelta(t, pred.CurrentPrice*(1+pred.SignedChangePercent()/100), pred.PredictedTargetPrice, 1e-9)

	down := validProposal()
	down.Direction = "down"
	pred, err = NormalizeProposal(down, testWeek, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionDown, pred.Direction)
	assert.InDelta(t, 95.0, pred.PredictedTargetPrice, 1e-9)
	assert.InDelta(t, pred.CurrentPrice*(1+pred.SignedChangePercent()/100), pred.PredictedTargetPrice, 1e-9)
}

func TestNormalizeProposalDirectionToken(t *testing.T) {
	tests := []struct {
		token string
		want  models.Direction
	}{
		{"up", models.DirectionUp},
		{"UP", models.DirectionUp},
		{"Up", models.DirectionUp},
		{"down", models.DirectionDown},
		{"DOWN", models.DirectionDown},
		// A present but unrecognized token defaults to down.
		{"sideways", models.DirectionDown},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			raw := validProposal()
			raw.Direction = tt.token
			pred, err := NormalizeProposal(raw, testWeek, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred.Direction)
		})
	}
}

func TestNormalizeProposalMissingDirectionRejected(t *testing.T) {
	raw := validProposal()
	raw.Direction = ""
	_, err := NormalizeProposal(raw, testWeek, testNow)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestNormalizeProposalSignedMagnitudeForcedPositive(t *testing.T) {
	raw := validProposal()
	raw.Direction = "down"
	raw.PredictedChangePercent = -7.5

	pred, err := NormalizeProposal(raw, testWeek, testNow)
	require.NoError(t, err)
	assert.Equal(t, 7.5, pred.PredictedChangePercent)
	assert.InDelta(t, 92.5, pred.PredictedTargetPrice, 1e-9)
}

func TestNormalizeProposalConfidenceClamped(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0.1},
		{-0.3, 0.1},
		{0.05, 0.1},
		{0.55, 0.55},
		{1.0, 1.0},
		{1.7, 1.0},
	}
	for _, tt := range tests {
		raw := validProposal()
		raw.Confidence = tt.in
		pred, err := NormalizeProposal(raw, testWeek, testNow)
		require.NoError(t, err)
		assert.Equal(t, tt.want, pred.Confidence)
	}
}

func TestNormalizeProposalUnknownClassRejected(t *testing.T) {
	raw := validProposal()
	raw.AssetType = "bonds"
	_, err := NormalizeProposal(raw, testWeek, testNow)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "asset_type", verr.Field)
}

func TestNormalizeProposalClassSpellings(t *testing.T) {
	tests := []struct {
		in   string
		want models.AssetClass
	}{
		{"crypto", models.ClassCrypto},
		{"cryptocurrency", models.ClassCrypto},
		{"currency", models.ClassCurrency},
		{"currencies", models.ClassCurrency},
		{"metal", models.ClassMetal},
		{"metals", models.ClassMetal},
		{"METALS", models.ClassMetal},
	}
	for _, tt := range tests {
		raw := validProposal()
		raw.AssetType = tt.in
		pred, err := NormalizeProposal(raw, testWeek, testNow)
		require.NoError(t, err)
		assert.Equal(t, tt.want, pred.AssetType)
	}
}

func TestNormalizeProposalMissingFieldsRejected(t *testing.T) {
	missingSymbol := validProposal()
	missingSymbol.Symbol = ""
	_, err := NormalizeProposal(missingSymbol, testWeek, testNow)
	assert.Error(t, err)

	missingPrice := validProposal()
	missingPrice.CurrentPrice = 0
	_, err = NormalizeProposal(missingPrice, testWeek, testNow)
	assert.Error(t, err)
}

func TestNormalizeProposalStampsIdentityAndWeek(t *testing.T) {
	pred, err := NormalizeProposal(validProposal(), testWeek.Add(26*time.Hour), testNow)
	require.NoError(t, err)
	assert.NotEmpty(t, pred.ID)
	assert.True(t, pred.WeekStart.Equal(testWeek), "week is re-bucketed even off a mid-week instant")
	assert.Equal(t, testNow, pred.CreatedAt)

	other, err := NormalizeProposal(validProposal(), testWeek, testNow)
	require.NoError(t, err)
	assert.NotEqual(t, pred.ID, other.ID)
}
