package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bettycrystal/betty-backend/models"
)

// Store implements models.PredictionStore on a Badger key-ordered document
// store via badgerhold.
type Store struct {
	store  *badgerhold.Store
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at the given path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // quiet the default badger logger, zerolog is the voice here

	st, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}

	return &Store{
		store:  st,
		logger: log.With().Str("component", "badger_store").Logger(),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.store.Close()
}

// FindPredictionsForWeek returns the predictions pinned to the given week
// bucket, oldest first.
func (s *Store) FindPredictionsForWeek(_ context.Context, weekStart time.Time) ([]models.Prediction, error) {
	var preds []models.Prediction
	query := badgerhold.Where("WeekStart").Ge(weekStart).And("WeekStart").Lt(weekStart.AddDate(0, 0, 7))
	if err := s.store.Find(&preds, query); err != nil {
		return nil, fmt.Errorf("finding predictions for week: %w", err)
	}
	sortStable(preds)
	return preds, nil
}

// InsertPredictions writes the batch in one transaction: all or nothing.
// Inserting into a week that already has any of the ids fails the whole
// batch, which backs the one-generation-per-week invariant.
func (s *Store) InsertPredictions(_ context.Context, preds []models.Prediction) error {
	err := s.store.Badger().Update(func(tx *badger.Txn) error {
		for i := range preds {
			if err := s.store.TxInsert(tx, preds[i].ID, preds[i]); err != nil {
				return fmt.Errorf("inserting prediction %s: %w", preds[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug().Int("count", len(preds)).Msg("Predictions inserted")
	return nil
}

// FindUnevaluatedBefore returns predictions from weeks starting before the
// cutoff that do not have an evaluation yet.
func (s *Store) FindUnevaluatedBefore(ctx context.Context, weekStart time.Time) ([]models.Prediction, error) {
	var preds []models.Prediction
	if err := s.store.Find(&preds, badgerhold.Where("WeekStart").Lt(weekStart)); err != nil {
		return nil, fmt.Errorf("finding past predictions: %w", err)
	}
	sortStable(preds)

	out := preds[:0]
	for _, p := range preds {
		ev, err := s.FindEvaluation(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindEvaluation returns the stored evaluation for the prediction id, or
// (nil, nil) when none exists.
func (s *Store) FindEvaluation(_ context.Context, predictionID string) (*models.Evaluation, error) {
	var ev models.Evaluation
	err := s.store.Get(predictionID, &ev)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting evaluation: %w", err)
	}
	return &ev, nil
}

// InsertEvaluation stores one evaluation per prediction id. A duplicate
// insert is absorbed silently: the first stored result wins.
func (s *Store) InsertEvaluation(_ context.Context, ev models.Evaluation) error {
	err := s.store.Insert(ev.PredictionID, ev)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		s.logger.Debug().Str("prediction_id", ev.PredictionID).Msg("Evaluation already stored, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("inserting evaluation: %w", err)
	}
	return nil
}

// FindEvaluatedPredictions returns every prediction that has an evaluation,
// in stable creation order, so aggregation runs are reproducible.
func (s *Store) FindEvaluatedPredictions(ctx context.Context) ([]models.EvaluatedPrediction, error) {
	var preds []models.Prediction
	if err := s.store.Find(&preds, nil); err != nil {
		return nil, fmt.Errorf("listing predictions: %w", err)
	}
	sortStable(preds)

	var out []models.EvaluatedPrediction
	for _, p := range preds {
		ev, err := s.FindEvaluation(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			out = append(out, models.EvaluatedPrediction{Prediction: p, Evaluation: *ev})
		}
	}
	return out, nil
}

// sortStable orders predictions by creation time with the id as tiebreaker
func sortStable(preds []models.Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		if !preds[i].CreatedAt.Equal(preds[j].CreatedAt) {
			return preds[i].CreatedAt.Before(preds[j].CreatedAt)
		}
		return preds[i].ID < preds[j].ID
	})
}
