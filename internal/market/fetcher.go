package market

import (
	"context"
	"fmt"

	"github.com/bettycrystal/betty-backend/internal/api/coingecko"
	"github.com/bettycrystal/betty-backend/internal/api/yahoo"
	"github.com/bettycrystal/betty-backend/models"
)

// Fetcher routes quote requests to the upstream client that covers the
// asset class: CoinGecko for crypto, Yahoo Finance for currency pairs and
// metal futures.
type Fetcher struct {
	coingecko *coingecko.Client
	yahoo     *yahoo.Client
}

// NewFetcher creates a QuoteFetcher backed by the two upstream clients
func NewFetcher(cg *coingecko.Client, y *yahoo.Client) *Fetcher {
	return &Fetcher{coingecko: cg, yahoo: y}
}

// FetchQuotes implements models.QuoteFetcher
func (f *Fetcher) FetchQuotes(ctx context.Context, class models.AssetClass) ([]models.AssetQuote, error) {
	switch class {
	case models.ClassCrypto:
		return f.coingecko.FetchCrypto(ctx)
	case models.ClassCurrency:
		return f.yahoo.FetchCurrencies(ctx)
	case models.ClassMetal:
		return f.yahoo.FetchMetals(ctx)
	}
	return nil, fmt.Errorf("unknown asset class: %s", class)
}
