package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

const signalCacheTTL = 5 * time.Minute

// SignalClientConfig holds the external signal provider endpoints. Empty
// URLs disable the corresponding provider.
type SignalClientConfig struct {
	TensionURL   string
	WhaleFeedURL string
	HTTP         HTTPClientConfig
}

// SignalClient fetches contextual signals from external providers and derives
// arbitrage candidates from market snapshots. All providers fail open: an
// unavailable signal never blocks a scan cycle.
type SignalClient struct {
	http      *RateLimitedHTTPClient
	cfg       SignalClientConfig
	cache     *cache.Cache
	threshold float64
	logger    *logrus.Logger
}

// NewSignalClient creates a new signal client. arbitrageThreshold is the
// maximum YES+NO price sum that qualifies as an arbitrage candidate.
func NewSignalClient(cfg SignalClientConfig, arbitrageThreshold float64, logger *logrus.Logger) *SignalClient {
	return &SignalClient{
		http:      NewRateLimitedHTTPClient(cfg.HTTP, logger),
		cfg:       cfg,
		cache:     cache.New(signalCacheTTL, signalCacheTTL*2),
		threshold: arbitrageThreshold,
		logger:    logger,
	}
}

// GetTensionSignal fetches the geopolitical tension reading. Returns nil
// without error when the provider is not configured or unavailable.
func (sc *SignalClient) GetTensionSignal(ctx context.Context) (*models.TensionSignal, error) {
	if sc.cfg.TensionURL == "" {
		return nil, nil
	}

	if cached, found := sc.cache.Get("tension"); found {
		if signal, ok := cached.(*models.TensionSignal); ok {
			return signal, nil
		}
	}

	var signal models.TensionSignal
	if err := sc.getJSON(ctx, sc.cfg.TensionURL, &signal); err != nil {
		sc.logger.WithField("error", err.Error()).Warn("Tension provider unavailable, failing open")
		return nil, nil
	}

	sc.cache.Set("tension", &signal, cache.DefaultExpiration)
	return &signal, nil
}

// GetWhaleAlerts fetches large-activity alerts. Returns an empty slice when
// the provider is not configured or unavailable.
func (sc *SignalClient) GetWhaleAlerts(ctx context.Context) ([]models.WhaleAlert, error) {
	if sc.cfg.WhaleFeedURL == "" {
		return nil, nil
	}

	if cached, found := sc.cache.Get("whales"); found {
		if alerts, ok := cached.([]models.WhaleAlert); ok {
			return alerts, nil
		}
	}

	var alerts []models.WhaleAlert
	if err := sc.getJSON(ctx, sc.cfg.WhaleFeedURL, &alerts); err != nil {
		sc.logger.WithField("error", err.Error()).Warn("Whale feed unavailable, failing open")
		return nil, nil
	}

	sc.cache.Set("whales", alerts, cache.DefaultExpiration)
	return alerts, nil
}

// DeriveArbitrageCandidates scans snapshots for markets whose outcome prices
// sum below the arbitrage threshold.
func (sc *SignalClient) DeriveArbitrageCandidates(snapshots []models.MarketSnapshot) []models.ArbitrageCandidate {
	var candidates []models.ArbitrageCandidate
	for _, snapshot := range snapshots {
		sum := snapshot.PriceSum()
		if sum > 0 && sum < sc.threshold {
			candidates = append(candidates, models.ArbitrageCandidate{
				MarketID: snapshot.ID,
				PriceSum: sum,
			})
		}
	}
	return candidates
}

// FetchContextSignals gathers all contextual signals for one scan cycle.
func (sc *SignalClient) FetchContextSignals(ctx context.Context, snapshots []models.MarketSnapshot) models.ContextSignals {
	signals := models.ContextSignals{
		WhaleAlerts: make(map[string]models.WhaleAlert),
		Arbitrage:   make(map[string]models.ArbitrageCandidate),
	}

	tension, _ := sc.GetTensionSignal(ctx)
	signals.Tension = tension

	alerts, _ := sc.GetWhaleAlerts(ctx)
	for _, alert := range alerts {
		signals.WhaleAlerts[alert.MarketID] = alert
	}

	for _, candidate := range sc.DeriveArbitrageCandidates(snapshots) {
		signals.Arbitrage[candidate.MarketID] = candidate
	}

	return signals
}

// Close releases HTTP resources.
func (sc *SignalClient) Close() error {
	return sc.http.Close()
}

func (sc *SignalClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := sc.http.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
