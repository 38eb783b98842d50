package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bettycrystal/betty-backend/internal/betty"
	"github.com/bettycrystal/betty-backend/models"
)

// demoPick describes one seeded prediction and the outcome it resolved to
type demoPick struct {
	symbol        string
	name          string
	class         models.AssetClass
	refPrice      float64
	direction     models.Direction
	changePercent float64
	confidence    float64
	reasoning     string
	actualPercent float64
}

// seedDemoHistory backfills two finished weeks of picks and outcomes so a
// fresh install shows a believable track record instead of an empty page.
// Week one lands 3 of 3, week two 2 of 3.
func seedDemoHistory(ctx context.Context, store models.PredictionStore, now time.Time) error {
	weekOne := models.WeekStart(now).AddDate(0, 0, -21)
	weekTwo := weekOne.AddDate(0, 0, 7)

	weeks := map[time.Time][]demoPick{
		weekOne: {
			{"BTC", "Bitcoin", models.ClassCrypto, 64200, models.DirectionUp, 5.0, 0.85,
				"Strong momentum after the halving narrative picked up again.", 3.1},
			{"GC=F", "Gold", models.ClassMetal, 2380, models.DirectionUp, 2.0, 0.75,
				"Safe haven flows ahead of the rate decision.", 1.4},
			{"EURUSD=X", "Euro", models.ClassCurrency, 1.085, models.DirectionDown, 1.0, 0.7,
				"Dollar strength into the payrolls print.", -0.7},
		},
		weekTwo: {
			{"ETH", "Ethereum", models.ClassCrypto, 3150, models.DirectionUp, 6.0, 0.8,
				"ETF inflows accelerating week over week.", 4.2},
			{"SI=F", "Silver", models.ClassMetal, 28.4, models.DirectionDown, 3.0, 0.65,
				"Industrial demand cooling off.", 1.1},
			{"GBPUSD=X", "British Pound", models.ClassCurrency, 1.268, models.DirectionUp, 1.0, 0.7,
				"Sterling bid on better than expected retail data.", 0.5},
		},
	}

	for weekStart, picks := range weeks {
		preds := make([]models.Prediction, 0, len(picks))
		evals := make([]models.Evaluation, 0, len(picks))

		for i, pick := range picks {
			signed := pick.changePercent
			if pick.direction == models.DirectionDown {
				signed = -signed
			}
			pred := models.Prediction{
				ID:                     uuid.NewString(),
				WeekStart:              weekStart,
				Symbol:                 pick.symbol,
				Name:                   pick.name,
				AssetType:              pick.class,
				CurrentPrice:           pick.refPrice,
				Direction:              pick.direction,
				PredictedChangePercent: pick.changePercent,
				PredictedTargetPrice:   pick.refPrice * (1 + signed/100),
				Confidence:             pick.confidence,
				Reasoning:              pick.reasoning,
				CreatedAt:              weekStart.Add(9*time.Hour + time.Duration(i)*time.Minute),
			}
			preds = append(preds, pred)

			observed := pick.refPrice * (1 + pick.actualPercent/100)
			ev := betty.Score(pred, observed)
			ev.EvaluatedAt = weekStart.AddDate(0, 0, 7).Add(8 * time.Hour)
			evals = append(evals, ev)
		}

		if err := store.InsertPredictions(ctx, preds); err != nil {
			return fmt.Errorf("seeding demo predictions: %w", err)
		}
		for _, ev := range evals {
			if err := store.InsertEvaluation(ctx, ev); err != nil {
				return fmt.Errorf("seeding demo evaluations: %w", err)
			}
		}
	}
	return nil
}
