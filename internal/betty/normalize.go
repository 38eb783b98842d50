package betty

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bettycrystal/betty-backend/models"
)

var validate = validator.New()

// Confidence bounds for a normalized prediction.
const (
	minConfidence = 0.1
	maxConfidence = 1.0
)

// NormalizeProposal turns one raw model proposal into a well-formed
// Prediction pinned to the given week bucket. The proposal is untrusted:
// required fields are checked, the direction token is interpreted
// case-insensitively ("up" wins, any other recognized token means "down"),
// the magnitude is forced non-negative, confidence is clamped, and the
// target price is recomputed from the reference price so the stored record
// always satisfies the price invariant.
func NormalizeProposal(raw models.RawProposal, weekStart, now time.Time) (models.Prediction, error) {
	if err := validate.Struct(raw); err != nil {
		reason := "missing or invalid required fields"
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			reason = fieldErrs[0].Field() + " failed " + fieldErrs[0].Tag() + " check"
		}
		return models.Prediction{}, &models.ValidationError{Field: "proposal", Reason: reason}
	}

	class := normalizeClass(raw.AssetType)
	if !models.KnownAssetClass(class) {
		return models.Prediction{}, &models.ValidationError{Field: "asset_type", Reason: "unknown class " + raw.AssetType}
	}

	direction := models.DirectionDown
	if strings.EqualFold(strings.TrimSpace(raw.Direction), "up") {
		direction = models.DirectionUp
	}

	// Sign lives in the direction, never in the magnitude.
	magnitude := math.Abs(raw.PredictedChangePercent)

	confidence := raw.Confidence
	if confidence < minConfidence {
		confidence = minConfidence
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	signed := magnitude
	if direction == models.DirectionDown {
		signed = -magnitude
	}

	return models.Prediction{
		ID:                     uuid.NewString(),
		WeekStart:              models.WeekStart(weekStart),
		Symbol:                 strings.TrimSpace(raw.Symbol),
		Name:                   strings.TrimSpace(raw.Name),
		AssetType:              class,
		CurrentPrice:           raw.CurrentPrice,
		Direction:              direction,
		PredictedChangePercent: magnitude,
		PredictedTargetPrice:   raw.CurrentPrice * (1 + signed/100),
		Confidence:             confidence,
		Reasoning:              strings.TrimSpace(raw.Reasoning),
		CreatedAt:              now.UTC(),
	}, nil
}

// normalizeClass folds the loose class spellings the model produces onto the
// three tracked classes.
func normalizeClass(s string) models.AssetClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "currency", "currencies", "forex":
		return models.ClassCurrency
	case "crypto", "cryptocurrency", "cryptocurrencies":
		return models.ClassCrypto
	case "metal", "metals":
		return models.ClassMetal
	}
	return models.AssetClass(strings.ToLower(strings.TrimSpace(s)))
}
