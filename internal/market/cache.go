package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/models"
)

// DefaultTTL is how long a snapshot is served before a refresh is attempted.
const DefaultTTL = 5 * time.Minute

// entry is the snapshot for one asset class. Each class has its own lock so
// the three classes refresh independently.
type entry struct {
	mu            sync.Mutex
	quotes        []models.AssetQuote
	lastRefreshed time.Time
}

// Cache holds the latest quote list per asset class and bounds staleness to
// the configured TTL. On refresh failure the last-known-good snapshot keeps
// being served and the timestamp is left untouched, so the next call retries.
type Cache struct {
	fetcher models.QuoteFetcher
	ttl     time.Duration
	now     func() time.Time
	entries map[models.AssetClass]*entry
	logger  zerolog.Logger
}

// CacheOptions holds options for creating a new Cache
type CacheOptions struct {
	TTL time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// NewCache creates a snapshot cache over the given fetcher
func NewCache(fetcher models.QuoteFetcher, opts CacheOptions) *Cache {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Cache{
		fetcher: fetcher,
		ttl:     opts.TTL,
		now:     opts.Now,
		entries: map[models.AssetClass]*entry{
			models.ClassCurrency: {},
			models.ClassCrypto:   {},
			models.ClassMetal:    {},
		},
		logger: log.With().Str("component", "snapshot_cache").Logger(),
	}
}

// Get returns the current snapshot for the class, refreshing it first when
// the entry is absent or older than the TTL. A failed refresh never fails
// the caller: the stale (possibly empty) snapshot is returned instead.
func (c *Cache) Get(ctx context.Context, class models.AssetClass) ([]models.AssetQuote, error) {
	e, ok := c.entries[class]
	if !ok {
		return nil, &models.UnknownClassError{Class: class}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := c.now()
	if !e.lastRefreshed.IsZero() && now.Sub(e.lastRefreshed) < c.ttl {
		return cloneQuotes(e.quotes), nil
	}

	quotes, err := c.fetcher.FetchQuotes(ctx, class)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("asset_class", string(class)).
			Time("last_refreshed", e.lastRefreshed).
			Msg("Refresh failed, serving stale snapshot")
		return cloneQuotes(e.quotes), nil
	}

	e.quotes = quotes
	e.lastRefreshed = now
	c.logger.Debug().Str("asset_class", string(class)).Int("count", len(quotes)).Msg("Snapshot refreshed")
	return cloneQuotes(quotes), nil
}

// cloneQuotes keeps callers from aliasing the cached slice
func cloneQuotes(quotes []models.AssetQuote) []models.AssetQuote {
	if quotes == nil {
		return nil
	}
	out := make([]models.AssetQuote, len(quotes))
	copy(out, quotes)
	return out
}
