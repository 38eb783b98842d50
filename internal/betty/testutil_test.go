package betty

import (
	"context"
	"sync"
	"time"

	"github.com/bettycrystal/betty-backend/internal/market"
	"github.com/bettycrystal/betty-backend/models"
)

// memStore is an in-memory PredictionStore for the engine tests. It keeps
// predictions in insertion order, like the real stores.
type memStore struct {
	mu          sync.Mutex
	predictions []models.Prediction
	evaluations map[string]models.Evaluation
	insertErr   error
}

func newMemStore() *memStore {
	return &memStore{evaluations: map[string]models.Evaluation{}}
}

func (s *memStore) FindPredictionsForWeek(_ context.Context, weekStart time.Time) ([]models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Prediction
	for _, p := range s.predictions {
		if p.WeekStart.Equal(weekStart) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) InsertPredictions(_ context.Context, preds []models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.predictions = append(s.predictions, preds...)
	return nil
}

func (s *memStore) FindUnevaluatedBefore(_ context.Context, weekStart time.Time) ([]models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Prediction
	for _, p := range s.predictions {
		if p.WeekStart.Before(weekStart) {
			if _, ok := s.evaluations[p.ID]; !ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *memStore) FindEvaluation(_ context.Context, predictionID string) (*models.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.evaluations[predictionID]; ok {
		return &ev, nil
	}
	return nil, nil
}

func (s *memStore) InsertEvaluation(_ context.Context, ev models.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluations[ev.PredictionID]; ok {
		return nil
	}
	s.evaluations[ev.PredictionID] = ev
	return nil
}

func (s *memStore) FindEvaluatedPredictions(_ context.Context) ([]models.EvaluatedPrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EvaluatedPrediction
	for _, p := range s.predictions {
		if ev, ok := s.evaluations[p.ID]; ok {
			out = append(out, models.EvaluatedPrediction{Prediction: p, Evaluation: ev})
		}
	}
	return out, nil
}

func (s *memStore) evaluationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evaluations)
}

func (s *memStore) predictionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.predictions)
}

// stubFetcher serves fixed quote lists per class
type stubFetcher struct {
	quotes map[models.AssetClass][]models.AssetQuote
}

func (f *stubFetcher) FetchQuotes(_ context.Context, class models.AssetClass) ([]models.AssetQuote, error) {
	return f.quotes[class], nil
}

// stubLLM returns a canned generation response
type stubLLM struct {
	response string
	err      error
	calls    int
}

func (l *stubLLM) GenerateProposals(_ context.Context, _ string) (string, error) {
	l.calls++
	return l.response, l.err
}

func testCache(quotes map[models.AssetClass][]models.AssetQuote) *market.Cache {
	return market.NewCache(&stubFetcher{quotes: quotes}, market.CacheOptions{})
}

func testQuotes() map[models.AssetClass][]models.AssetQuote {
	return map[models.AssetClass][]models.AssetQuote{
		models.ClassCrypto: {
			{Symbol: "BTC", Name: "Bitcoin", Price: 65000},
			{Symbol: "ETH", Name: "Ethereum", Price: 3200},
			{Symbol: "SOL", Name: "Solana", Price: 150},
		},
		models.ClassCurrency: {
			{Symbol: "EURUSD=X", Name: "Euro", Price: 1.08},
			{Symbol: "GBPUSD=X", Name: "British Pound", Price: 1.27},
		},
		models.ClassMetal: {
			{Symbol: "GC=F", Name: "Gold", Price: 2400},
			{Symbol: "SI=F", Name: "Silver", Price: 29},
		},
	}
}
