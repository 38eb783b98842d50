package models

import (
	"context"
	"time"
)

// QuoteFetcher pulls fresh quotes for one asset class from an upstream
// source. Errors are transient; the snapshot cache keeps serving its
// last-known-good data when a fetch fails.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, class AssetClass) ([]AssetQuote, error)
}

// ProposalGenerator produces Betty's raw weekly picks. The returned text is
// untrusted: it may be wrapped in formatting fences and may omit fields.
type ProposalGenerator interface {
	GenerateProposals(ctx context.Context, prompt string) (string, error)
}

// PredictionStore is the persistence boundary for predictions and their
// evaluations. Implementations must keep FindEvaluatedPredictions ordering
// stable across calls so aggregation stays reproducible.
type PredictionStore interface {
	FindPredictionsForWeek(ctx context.Context, weekStart time.Time) ([]Prediction, error)
	InsertPredictions(ctx context.Context, preds []Prediction) error
	FindUnevaluatedBefore(ctx context.Context, weekStart time.Time) ([]Prediction, error)
	// FindEvaluation returns (nil, nil) when no evaluation exists for the id.
	FindEvaluation(ctx context.Context, predictionID string) (*Evaluation, error)
	InsertEvaluation(ctx context.Context, ev Evaluation) error
	FindEvaluatedPredictions(ctx context.Context) ([]EvaluatedPrediction, error)
}
