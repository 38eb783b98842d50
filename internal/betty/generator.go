package betty

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/internal/market"
	"github.com/bettycrystal/betty-backend/models"
)

// PicksPerWeek is Betty's fixed weekly quota. A generation run either
// persists exactly this many predictions or persists nothing.
const PicksPerWeek = 3

// Universe subset per class, in cache order.
const (
	topCrypto     = 5
	topCurrencies = 4
)

// defaultTrailingAccuracy seeds the risk posture before any week has been
// evaluated.
const defaultTrailingAccuracy = 0.7

// Risk posture labels passed to the generation model as guidance. They do
// not affect scoring.
const (
	postureConservative = "conservative"
	postureBalanced     = "balanced"
	postureConfident    = "confident"
)

// Generator orchestrates one weekly generation run: snapshot retrieval,
// model invocation, normalization and atomic persistence.
type Generator struct {
	cache  *market.Cache
	llm    models.ProposalGenerator
	store  models.PredictionStore
	now    func() time.Time
	logger zerolog.Logger

	// weekMu serializes generation per week bucket so two concurrent
	// requests for the same week cannot both write.
	mu     sync.Mutex
	weekMu map[string]*sync.Mutex
}

// NewGenerator creates a Generator over the given collaborators
func NewGenerator(cache *market.Cache, llm models.ProposalGenerator, store models.PredictionStore) *Generator {
	return &Generator{
		cache:  cache,
		llm:    llm,
		store:  store,
		now:    time.Now,
		logger: log.With().Str("component", "prediction_generator").Logger(),
		weekMu: map[string]*sync.Mutex{},
	}
}

// Generate returns the week's 3 predictions, creating them if the week has
// none yet. Repeat calls for the same week return the stored picks
// unchanged. On any unrecoverable step the call fails and nothing is
// persisted.
func (g *Generator) Generate(ctx context.Context, weekStart time.Time) ([]models.Prediction, error) {
	weekStart = models.WeekStart(weekStart)
	weekKey := models.WeekKey(weekStart)
	logger := g.logger.With().Str("week", weekKey).Logger()

	lock := g.lockForWeek(weekKey)
	lock.Lock()
	defer lock.Unlock()

	existing, err := g.store.FindPredictionsForWeek(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("looking up existing predictions: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug().Int("count", len(existing)).Msg("Week already has predictions, returning stored picks")
		return existing, nil
	}

	assets, err := g.availableAssets(ctx)
	if err != nil {
		return nil, err
	}

	posture := g.riskPosture(ctx, weekStart)
	logger.Info().Str("posture", posture).Int("assets", len(assets)).Msg("Generating weekly picks")

	raw, err := g.llm.GenerateProposals(ctx, buildPrompt(assets, posture))
	if err != nil {
		return nil, fmt.Errorf("generation capability: %w", err)
	}

	proposals, err := parseProposals(raw)
	if err != nil {
		logger.Error().Err(err).Str("stage", "parse").Msg("Malformed generation response")
		return nil, err
	}

	now := g.now()
	picks := make([]models.Prediction, 0, PicksPerWeek)
	for _, proposal := range proposals {
		if len(picks) == PicksPerWeek {
			break
		}
		pred, err := NormalizeProposal(proposal, weekStart, now)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", proposal.Symbol).Str("stage", "normalize").Msg("Skipping invalid proposal")
			continue
		}
		picks = append(picks, pred)
	}

	if len(picks) < PicksPerWeek {
		logger.Error().Int("valid", len(picks)).Str("stage", "normalize").Msg("Not enough valid proposals")
		return nil, models.ErrNotEnoughPicks
	}

	if err := g.store.InsertPredictions(ctx, picks); err != nil {
		return nil, fmt.Errorf("persisting predictions: %w", err)
	}

	logger.Info().Int("count", len(picks)).Msg("Weekly picks persisted")
	return picks, nil
}

func (g *Generator) lockForWeek(weekKey string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.weekMu[weekKey]
	if !ok {
		lock = &sync.Mutex{}
		g.weekMu[weekKey] = lock
	}
	return lock
}

// availableAssets pulls the fixed universe subset: top crypto and currency
// quotes in cache order plus every metal. Fails only when all three classes
// come back empty.
func (g *Generator) availableAssets(ctx context.Context) ([]models.AssetQuote, error) {
	var assets []models.AssetQuote

	crypto, err := g.cache.Get(ctx, models.ClassCrypto)
	if err != nil {
		return nil, err
	}
	assets = append(assets, headQuotes(crypto, topCrypto)...)

	currencies, err := g.cache.Get(ctx, models.ClassCurrency)
	if err != nil {
		return nil, err
	}
	assets = append(assets, headQuotes(currencies, topCurrencies)...)

	metals, err := g.cache.Get(ctx, models.ClassMetal)
	if err != nil {
		return nil, err
	}
	assets = append(assets, metals...)

	if len(assets) == 0 {
		return nil, models.ErrNoQuotes
	}
	return assets, nil
}

func headQuotes(quotes []models.AssetQuote, n int) []models.AssetQuote {
	if len(quotes) > n {
		return quotes[:n]
	}
	return quotes
}

// riskPosture maps the trailing 3-week average accuracy onto a qualitative
// label. Aggregation errors degrade to the default posture rather than
// failing the run.
func (g *Generator) riskPosture(ctx context.Context, weekStart time.Time) string {
	trailing := defaultTrailingAccuracy

	evaluated, err := g.store.FindEvaluatedPredictions(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Str("stage", "trailing_accuracy").Msg("Could not read history, using default posture")
	} else if buckets := buildBuckets(evaluated); len(buckets) > 0 {
		var sum float64
		var n int
		for i := len(buckets) - 1; i >= 0 && n < 3; i-- {
			if !buckets[i].WeekStart.Before(weekStart) {
				continue
			}
			sum += buckets[i].WeekAccuracy / 100
			n++
		}
		if n > 0 {
			trailing = sum / float64(n)
		}
	}

	switch {
	case trailing < 0.5:
		return postureConservative
	case trailing > 0.8:
		return postureConfident
	default:
		return postureBalanced
	}
}

// buildPrompt renders the asset universe and posture guidance for the model
func buildPrompt(assets []models.AssetQuote, posture string) string {
	var sb strings.Builder
	sb.WriteString("You are Betty Crystal, a fortune teller who predicts weekly market moves.\n")
	sb.WriteString("Current risk posture: " + posture + ".\n\n")
	sb.WriteString("Available assets:\n")
	for _, a := range assets {
		class := classForSymbol(a)
		sb.WriteString(fmt.Sprintf("- %s (%s, %s): $%.4f, 24h change %.2f%%\n",
			a.Symbol, a.Name, class, a.Price, a.ChangePercent))
	}
	sb.WriteString(fmt.Sprintf(`
Pick exactly %d assets and predict their move over the coming week.
Respond with JSON only, in this exact format:
{
  "predictions": [
    {
      "symbol": "BTC",
      "name": "Bitcoin",
      "asset_type": "crypto",
      "current_price": 65000.00,
      "direction": "up",
      "predicted_change_percent": 5.0,
      "confidence": 0.7,
      "reasoning": "One or two sentences."
    }
  ]
}
Use the listed current prices. Confidence is between 0.1 and 1.0.
`, PicksPerWeek))
	return sb.String()
}

// classForSymbol infers the class label shown in the prompt from the ticker
// shape: "=X" pairs are currencies, "=F" futures are metals, bare tickers
// are crypto.
func classForSymbol(q models.AssetQuote) models.AssetClass {
	switch {
	case strings.HasSuffix(q.Symbol, "=X"):
		return models.ClassCurrency
	case strings.HasSuffix(q.Symbol, "=F"):
		return models.ClassMetal
	}
	return models.ClassCrypto
}

// parseProposals strips any formatting fences and decodes the proposal
// list. Both the documented envelope and a bare array are accepted.
func parseProposals(raw string) ([]models.RawProposal, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, fmt.Errorf("empty generation response")
	}

	var envelope struct {
		Predictions []models.RawProposal `json:"predictions"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && len(envelope.Predictions) > 0 {
		return envelope.Predictions, nil
	}

	var bare []models.RawProposal
	if err := json.Unmarshal([]byte(text), &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	return nil, fmt.Errorf("no parsable proposals in generation response")
}

// stripFences removes a wrapping markdown code fence, with or without a
// language tag.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		first := strings.TrimSpace(text[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{[") {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
