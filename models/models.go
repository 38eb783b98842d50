package models

import (
	"time"
)

// AssetClass identifies one of the three tracked market segments.
type AssetClass string

const (
	ClassCurrency AssetClass = "currency"
	ClassCrypto   AssetClass = "crypto"
	ClassMetal    AssetClass = "metal"
)

// KnownAssetClass reports whether the class is one of the three tracked segments.
func KnownAssetClass(c AssetClass) bool {
	switch c {
	case ClassCurrency, ClassCrypto, ClassMetal:
		return true
	}
	return false
}

// Direction is the binary sign of a predicted move. Magnitude is stored
// separately and is always non-negative.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// AssetQuote is a single cached market quote. Quotes are ephemeral: they are
// rebuilt on every cache refresh and never persisted.
type AssetQuote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change24h     float64   `json:"change_24h"`
	ChangePercent float64   `json:"change_percent"`
	LastUpdated   time.Time `json:"last_updated"`
}

// RawProposal is one pick as returned by the generation model. Field presence
// is not trusted; everything goes through the normalizer before it becomes a
// Prediction.
type RawProposal struct {
	Symbol                 string  `json:"symbol" validate:"required"`
	Name                   string  `json:"name"`
	AssetType              string  `json:"asset_type" validate:"required"`
	CurrentPrice           float64 `json:"current_price" validate:"required,gt=0"`
	Direction              string  `json:"direction" validate:"required"`
	PredictedChangePercent float64 `json:"predicted_change_percent"`
	Confidence             float64 `json:"confidence"`
	Reasoning              string  `json:"reasoning"`
}

// Prediction is one of Betty's weekly picks. Immutable once created;
// evaluation results are stored separately and never touch these fields.
//
// Invariant: PredictedTargetPrice == CurrentPrice * (1 + signed/100) where
// signed is +PredictedChangePercent for "up" and -PredictedChangePercent
// for "down".
type Prediction struct {
	ID                     string     `json:"id" badgerhold:"key"`
	WeekStart              time.Time  `json:"week_start" badgerhold:"index"`
	Symbol                 string     `json:"symbol"`
	Name                   string     `json:"name"`
	AssetType              AssetClass `json:"asset_type"`
	CurrentPrice           float64    `json:"current_price"`
	Direction              Direction  `json:"direction"`
	PredictedChangePercent float64    `json:"predicted_change_percent"`
	PredictedTargetPrice   float64    `json:"predicted_target_price"`
	Confidence             float64    `json:"confidence"`
	Reasoning              string     `json:"reasoning"`
	CreatedAt              time.Time  `json:"created_at"`
}

// SignedChangePercent returns the magnitude with the direction's sign applied.
func (p Prediction) SignedChangePercent() float64 {
	if p.Direction == DirectionUp {
		return p.PredictedChangePercent
	}
	return -p.PredictedChangePercent
}

// Evaluation is the observed outcome of one prediction. Created exactly once
// per prediction id, at or after the end of its week, and never mutated.
type Evaluation struct {
	PredictionID        string    `json:"prediction_id" badgerhold:"key"`
	ActualPrice         float64   `json:"actual_price"`
	ActualChangePercent float64   `json:"actual_change_percent"`
	WasCorrect          bool      `json:"was_correct"`
	PriceDiffPercent    float64   `json:"price_diff_percent"`
	AccuracyScore       float64   `json:"accuracy_score"`
	EvaluatedAt         time.Time `json:"evaluated_at"`
}

// EvaluatedPrediction pairs a prediction with its stored evaluation.
type EvaluatedPrediction struct {
	Prediction Prediction `json:"prediction"`
	Evaluation Evaluation `json:"evaluation"`
}

// WeeklyBucket groups the evaluated predictions of one calendar week.
// Derived on every aggregation run, never stored.
type WeeklyBucket struct {
	WeekStart          time.Time             `json:"week_start"`
	Predictions        []EvaluatedPrediction `json:"predictions"`
	CorrectCount       int                   `json:"correct_count"`
	TotalCount         int                   `json:"total_count"`
	WeekAccuracy       float64               `json:"week_accuracy"`
	CumulativeAccuracy float64               `json:"cumulative_accuracy"`
}

// History is the aggregated track record across all evaluated weeks.
type History struct {
	TotalPredictions int            `json:"total_predictions"`
	TotalCorrect     int            `json:"total_correct"`
	OverallAccuracy  float64        `json:"overall_accuracy"`
	WeeklyResults    []WeeklyBucket `json:"weekly_results"`
}
