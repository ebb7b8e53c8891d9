package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

const (
	maxCachedTradePrints = 100
	tradeFetchLimit      = 50
)

// ClientConfig holds the Gamma/CLOB client configuration.
type ClientConfig struct {
	GammaURL      string
	ClobURL       string
	APIKey        string
	PriceCacheTTL time.Duration
	HTTP          HTTPClientConfig
}

// Client talks to the Polymarket Gamma API for market metadata and the CLOB
// API for order books and trade history.
type Client struct {
	http       *RateLimitedHTTPClient
	gammaURL   string
	clobURL    string
	apiKey     string
	priceCache *cache.Cache
	tradeCache *cache.Cache
	tokenCache *cache.Cache
	logger     *logrus.Logger
}

// NewClient creates a new Gamma/CLOB client.
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	ttl := cfg.PriceCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &Client{
		http:       NewRateLimitedHTTPClient(cfg.HTTP, logger),
		gammaURL:   cfg.GammaURL,
		clobURL:    cfg.ClobURL,
		apiKey:     cfg.APIKey,
		priceCache: cache.New(ttl, ttl*2),
		tradeCache: cache.New(5*time.Minute, 10*time.Minute),
		tokenCache: cache.New(time.Hour, 2*time.Hour),
		logger:     logger,
	}
}

// gammaMarket is the raw Gamma API market payload. Prices and volumes arrive
// as JSON strings and are parsed through decimal.
type gammaMarket struct {
	ID             string  `json:"id"`
	ConditionID    string  `json:"conditionId"`
	Question       string  `json:"question"`
	OutcomePrices  string  `json:"outcomePrices"`
	ClobTokenIDs   string  `json:"clobTokenIds"`
	Volume24hr     string  `json:"volume24hr"`
	Liquidity      string  `json:"liquidity"`
	EndDate        string  `json:"endDate"`
	Closed         bool    `json:"closed"`
	LastTradePrice float64 `json:"lastTradePrice"`
}

// GetMarketSnapshot fetches and normalizes a single market.
func (c *Client) GetMarketSnapshot(ctx context.Context, marketID string) (*models.MarketSnapshot, error) {
	endpoint := fmt.Sprintf("%s/markets/%s", c.gammaURL, url.PathEscape(marketID))

	var gm gammaMarket
	if err := c.getJSON(ctx, endpoint, &gm); err != nil {
		return nil, fmt.Errorf("failed to fetch market %s: %w", marketID, err)
	}

	snapshot, err := c.toSnapshot(gm)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ListCandidateMarkets fetches active markets ordered by 24h volume and
// filters them down to scan candidates.
func (c *Client) ListCandidateMarkets(ctx context.Context, filters MarketFilters) ([]models.MarketSnapshot, error) {
	limit := filters.MaxMarkets
	if limit <= 0 {
		limit = 100
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	if filters.Active {
		q.Set("active", "true")
		q.Set("closed", "false")
	}

	endpoint := fmt.Sprintf("%s/markets?%s", c.gammaURL, q.Encode())

	var raw []gammaMarket
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}

	snapshots := make([]models.MarketSnapshot, 0, len(raw))
	for _, gm := range raw {
		snapshot, err := c.toSnapshot(gm)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"market_id": gm.ID,
				"error":     err.Error(),
			}).Debug("Skipping malformed market")
			continue
		}
		if snapshot.Volume24h < filters.MinVolume24h || snapshot.Liquidity < filters.MinLiquidity {
			continue
		}
		snapshots = append(snapshots, *snapshot)
	}

	return snapshots, nil
}

// ListResolvedMarkets fetches recently closed markets with their settlement
// prices, used to build the backtest sample pool.
func (c *Client) ListResolvedMarkets(ctx context.Context, limit int) ([]models.MarketSnapshot, error) {
	if limit <= 0 {
		limit = 200
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("closed", "true")
	q.Set("order", "endDate")
	q.Set("ascending", "false")

	endpoint := fmt.Sprintf("%s/markets?%s", c.gammaURL, q.Encode())

	var raw []gammaMarket
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to list resolved markets: %w", err)
	}

	snapshots := make([]models.MarketSnapshot, 0, len(raw))
	for _, gm := range raw {
		if !gm.Closed {
			continue
		}
		snapshot, err := c.toSnapshot(gm)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, *snapshot)
	}

	return snapshots, nil
}

// GetPrice returns the current price for a market side, served from the TTL
// cache when fresh.
func (c *Client) GetPrice(ctx context.Context, marketID string, side models.Side) (float64, error) {
	key := marketID + ":" + string(side)
	if cached, found := c.priceCache.Get(key); found {
		if price, ok := cached.(float64); ok {
			return price, nil
		}
	}

	snapshot, err := c.GetMarketSnapshot(ctx, marketID)
	if err != nil {
		return 0, err
	}

	c.priceCache.Set(marketID+":"+string(models.SideYes), snapshot.YesPrice, cache.DefaultExpiration)
	c.priceCache.Set(marketID+":"+string(models.SideNo), snapshot.NoPrice, cache.DefaultExpiration)

	return snapshot.Price(side), nil
}

// clobBook is the raw CLOB order book payload.
type clobBook struct {
	Market string `json:"market"`
	Bids   []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

// GetOrderBookDepth fetches the CLOB order book for one side of a market.
func (c *Client) GetOrderBookDepth(ctx context.Context, marketID string, side models.Side) (*models.OrderBook, error) {
	tokenID, err := c.tokenIDFor(ctx, marketID, side)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	var raw clobBook
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch order book for %s: %w", marketID, err)
	}

	book := &models.OrderBook{
		MarketID: marketID,
		Side:     side,
		Bids:     make([]models.BookLevel, 0, len(raw.Bids)),
		Asks:     make([]models.BookLevel, 0, len(raw.Asks)),
	}

	for _, lvl := range raw.Bids {
		price, size, err := parseLevel(lvl.Price, lvl.Size)
		if err != nil {
			continue
		}
		book.Bids = append(book.Bids, models.BookLevel{Price: price, Size: size})
	}
	for _, lvl := range raw.Asks {
		price, size, err := parseLevel(lvl.Price, lvl.Size)
		if err != nil {
			continue
		}
		book.Asks = append(book.Asks, models.BookLevel{Price: price, Size: size})
	}

	// Bids best-first descending, asks best-first ascending
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })

	return book, nil
}

// clobTrade is the raw CLOB trade payload.
type clobTrade struct {
	Price     string `json:"price"`
	MatchTime string `json:"match_time"`
}

// GetRecentTradePrices returns recent trade prints for a market, oldest
// first. Stream-fed prints are preferred; the CLOB trades endpoint is the
// fallback.
func (c *Client) GetRecentTradePrices(ctx context.Context, marketID string) ([]models.TradePrint, error) {
	if cached, found := c.tradeCache.Get(marketID); found {
		if prints, ok := cached.([]models.TradePrint); ok && len(prints) > 0 {
			return prints, nil
		}
	}

	endpoint := fmt.Sprintf("%s/trades?market=%s&limit=%d", c.clobURL, url.QueryEscape(marketID), tradeFetchLimit)

	var raw []clobTrade
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch trades for %s: %w", marketID, err)
	}

	prints := make([]models.TradePrint, 0, len(raw))
	for _, tr := range raw {
		price, err := parsePrice(tr.Price)
		if err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, tr.MatchTime)
		if err != nil {
			continue
		}
		prints = append(prints, models.TradePrint{Price: price, Timestamp: ts})
	}

	sort.Slice(prints, func(i, j int) bool { return prints[i].Timestamp.Before(prints[j].Timestamp) })

	c.tradeCache.Set(marketID, prints, cache.DefaultExpiration)
	return prints, nil
}

// RecordTradePrint appends a stream-delivered trade print to the per-market
// cache, bounded to the most recent prints.
func (c *Client) RecordTradePrint(marketID string, print models.TradePrint) {
	var prints []models.TradePrint
	if cached, found := c.tradeCache.Get(marketID); found {
		if existing, ok := cached.([]models.TradePrint); ok {
			prints = existing
		}
	}

	prints = append(prints, print)
	if len(prints) > maxCachedTradePrints {
		prints = prints[len(prints)-maxCachedTradePrints:]
	}
	c.tradeCache.Set(marketID, prints, cache.NoExpiration)
}

// pricePoint is one sample of the CLOB price history payload.
type pricePoint struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

// GetPriceHistory fetches the price timeline for a market, oldest first.
func (c *Client) GetPriceHistory(ctx context.Context, marketID string) ([]float64, error) {
	tokenID, err := c.tokenIDFor(ctx, marketID, models.SideYes)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/prices-history?market=%s&interval=max", c.clobURL, url.QueryEscape(tokenID))

	var raw struct {
		History []pricePoint `json:"history"`
	}
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", marketID, err)
	}

	prices := make([]float64, 0, len(raw.History))
	for _, pt := range raw.History {
		if pt.Price > 0 && pt.Price < 1 {
			prices = append(prices, pt.Price)
		}
	}
	return prices, nil
}

// Close releases HTTP resources.
func (c *Client) Close() error {
	return c.http.Close()
}

// tokenIDFor resolves the CLOB token id for a market side, caching the
// mapping learned from Gamma market payloads.
func (c *Client) tokenIDFor(ctx context.Context, marketID string, side models.Side) (string, error) {
	if cached, found := c.tokenCache.Get(marketID); found {
		if tokens, ok := cached.([2]string); ok {
			return tokenForSide(tokens, side), nil
		}
	}

	endpoint := fmt.Sprintf("%s/markets/%s", c.gammaURL, url.PathEscape(marketID))
	var gm gammaMarket
	if err := c.getJSON(ctx, endpoint, &gm); err != nil {
		return "", fmt.Errorf("failed to resolve token ids for %s: %w", marketID, err)
	}

	tokens, err := parseTokenIDs(gm.ClobTokenIDs)
	if err != nil {
		return "", err
	}

	c.tokenCache.Set(marketID, tokens, cache.DefaultExpiration)
	return tokenForSide(tokens, side), nil
}

func tokenForSide(tokens [2]string, side models.Side) string {
	if side == models.SideNo {
		return tokens[1]
	}
	return tokens[0]
}

// getJSON executes a GET and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// toSnapshot normalizes a raw Gamma market into a validated snapshot.
func (c *Client) toSnapshot(gm gammaMarket) (*models.MarketSnapshot, error) {
	yes, no, err := parseOutcomePrices(gm.OutcomePrices)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", gm.ID, err)
	}

	snapshot := &models.MarketSnapshot{
		ID:        gm.ID,
		Question:  gm.Question,
		YesPrice:  yes,
		NoPrice:   no,
		Category:  models.ClassifyCategory(gm.Question),
		Volume24h: parseAmount(gm.Volume24hr),
		Liquidity: parseAmount(gm.Liquidity),
	}

	if gm.EndDate != "" {
		if endTime, err := time.Parse(time.RFC3339, gm.EndDate); err == nil {
			snapshot.EndTime = endTime
		}
	}

	// Resolved markets legitimately settle at 0/1; only validate live ones
	if !gm.Closed {
		if err := snapshot.Validate(); err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}

// parseOutcomePrices decodes the Gamma outcomePrices field, a JSON array of
// decimal strings like ["0.45", "0.55"].
func parseOutcomePrices(raw string) (yes, no float64, err error) {
	var prices []string
	if err := json.Unmarshal([]byte(raw), &prices); err != nil {
		return 0, 0, fmt.Errorf("malformed outcome prices %q: %w", raw, err)
	}
	if len(prices) < 2 {
		return 0, 0, fmt.Errorf("expected 2 outcome prices, got %d", len(prices))
	}

	yes, err = parsePrice(prices[0])
	if err != nil {
		return 0, 0, err
	}
	no, err = parsePrice(prices[1])
	if err != nil {
		return 0, 0, err
	}
	return yes, no, nil
}

// parseTokenIDs decodes the clobTokenIds field, a JSON array of two token id
// strings in [YES, NO] order.
func parseTokenIDs(raw string) ([2]string, error) {
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return [2]string{}, fmt.Errorf("malformed token ids %q: %w", raw, err)
	}
	if len(tokens) < 2 {
		return [2]string{}, fmt.Errorf("expected 2 token ids, got %d", len(tokens))
	}
	return [2]string{tokens[0], tokens[1]}, nil
}

func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

func parseLevel(priceStr, sizeStr string) (price, size float64, err error) {
	price, err = parsePrice(priceStr)
	if err != nil {
		return 0, 0, err
	}
	size, err = parsePrice(sizeStr)
	if err != nil {
		return 0, 0, err
	}
	return price, size, nil
}

// parseAmount parses a decimal string amount, returning 0 for empty or
// malformed values.
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
