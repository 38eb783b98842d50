package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpclient "github.com/bettycrystal/betty-backend/internal/platform/http"
	"github.com/bettycrystal/betty-backend/models"
)

// Client is the CoinGecko API client
type Client struct {
	baseURL    string
	perPage    int
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new CoinGecko client
type ClientOptions struct {
	RequestTimeout time.Duration
	RequestsPerSec int
	PerPage        int
}

// NewClient creates a new CoinGecko API client
func NewClient(options ClientOptions) *Client {
	perPage := options.PerPage
	if perPage == 0 {
		perPage = 7
	}

	return &Client{
		baseURL: "https://api.coingecko.com/api/v3",
		perPage: perPage,
		httpClient: httpclient.NewClient(httpclient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
		}),
		logger: log.With().Str("component", "coingecko_client").Logger(),
	}
}

// marketEntry is one coin row from the /coins/markets endpoint. The change
// fields are nullable upstream for freshly listed coins.
type marketEntry struct {
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             float64  `json:"current_price"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// FetchCrypto fetches the top cryptocurrencies by market cap
func (c *Client) FetchCrypto(ctx context.Context) ([]models.AssetQuote, error) {
	url := fmt.Sprintf(
		"%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=false&price_change_percentage=24h",
		c.baseURL,
		c.perPage,
	)

	c.logger.Debug().Str("url", url).Msg("Fetching crypto markets")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var entries []marketEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if len(entries) == 0 {
		c.logger.Warn().Str("response", string(body)).Msg("No coins in response")
		return nil, fmt.Errorf("empty data returned")
	}

	now := time.Now().UTC()
	var quotes []models.AssetQuote
	for _, e := range entries {
		var change, changePct float64
		if e.PriceChange24h != nil {
			change = *e.PriceChange24h
		}
		if e.PriceChangePercentage24h != nil {
			changePct = *e.PriceChangePercentage24h
		}
		quotes = append(quotes, models.AssetQuote{
			Symbol:        strings.ToUpper(e.Symbol),
			Name:          e.Name,
			Price:         e.CurrentPrice,
			Change24h:     change,
			ChangePercent: changePct,
			LastUpdated:   now,
		})
	}

	c.logger.Debug().Int("count", len(quotes)).Msg("Fetched crypto quotes")
	return quotes, nil
}
