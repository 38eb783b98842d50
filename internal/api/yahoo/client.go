package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpclient "github.com/bettycrystal/betty-backend/internal/platform/http"
	"github.com/bettycrystal/betty-backend/models"
)

// tickerName pins a Yahoo Finance ticker to its display name. Slice order is
// the serving order, so "top N" subsets stay stable between refreshes.
type tickerName struct {
	Symbol string
	Name   string
}

// currencyPairs are the tracked majors quoted against USD.
var currencyPairs = []tickerName{
	{"CADUSD=X", "Canadian Dollar"},
	{"EURUSD=X", "Euro"},
	{"GBPUSD=X", "British Pound"},
	{"JPYUSD=X", "Japanese Yen"},
	{"AUDUSD=X", "Australian Dollar"},
	{"CHFUSD=X", "Swiss Franc"},
	{"NZDUSD=X", "New Zealand Dollar"},
}

// metalFutures are the tracked precious metal futures.
var metalFutures = []tickerName{
	{"GC=F", "Gold"},
	{"SI=F", "Silver"},
	{"PL=F", "Platinum"},
	{"PA=F", "Palladium"},
}

// Client is the Yahoo Finance chart API client
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Yahoo Finance client
type ClientOptions struct {
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewClient creates a new Yahoo Finance API client
func NewClient(options ClientOptions) *Client {
	return &Client{
		baseURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		httpClient: httpclient.NewClient(httpclient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
		}),
		logger: log.With().Str("component", "yahoo_client").Logger(),
	}
}

// chartResponse is the subset of the chart payload we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchCurrencies fetches the tracked currency pairs
func (c *Client) FetchCurrencies(ctx context.Context) ([]models.AssetQuote, error) {
	return c.fetchAll(ctx, currencyPairs)
}

// FetchMetals fetches the tracked precious metal futures
func (c *Client) FetchMetals(ctx context.Context) ([]models.AssetQuote, error) {
	return c.fetchAll(ctx, metalFutures)
}

// fetchAll fetches quotes for every ticker in the list. A single failing
// ticker is logged and skipped; the call fails only when nothing survives.
func (c *Client) fetchAll(ctx context.Context, tickers []tickerName) ([]models.AssetQuote, error) {
	now := time.Now().UTC()
	var quotes []models.AssetQuote
	for _, t := range tickers {
		quote, err := c.fetchOne(ctx, t, now)
		if err != nil {
			c.logger.Error().Err(err).Str("symbol", t.Symbol).Msg("Error fetching ticker")
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("no tickers returned data")
	}
	return quotes, nil
}

func (c *Client) fetchOne(ctx context.Context, t tickerName, now time.Time) (models.AssetQuote, error) {
	url := fmt.Sprintf("%s/%s?range=5d&interval=1d", c.baseURL, t.Symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.AssetQuote{}, fmt.Errorf("creating request: %w", err)
	}
	// Yahoo rejects requests without a browser-ish user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; betty-backend/1.0)")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return models.AssetQuote{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AssetQuote{}, fmt.Errorf("reading response body: %w", err)
	}

	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return models.AssetQuote{}, fmt.Errorf("parsing JSON: %w", err)
	}

	if data.Chart.Error != nil {
		return models.AssetQuote{}, fmt.Errorf("Yahoo chart API error: %s", data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return models.AssetQuote{}, fmt.Errorf("empty data returned")
	}

	// Collapse the daily closes, dropping null entries for holidays.
	var closes []float64
	for _, v := range data.Chart.Result[0].Indicators.Quote[0].Close {
		if v != nil {
			closes = append(closes, *v)
		}
	}
	if len(closes) == 0 {
		return models.AssetQuote{}, fmt.Errorf("no close prices returned")
	}

	current := closes[len(closes)-1]
	prev := current
	if len(closes) > 1 {
		prev = closes[len(closes)-2]
	}
	change := current - prev
	changePct := 0.0
	if prev != 0 {
		changePct = change / prev * 100
	}

	return models.AssetQuote{
		Symbol:        t.Symbol,
		Name:          t.Name,
		Price:         current,
		Change24h:     change,
		ChangePercent: changePct,
		LastUpdated:   now,
	}, nil
}
