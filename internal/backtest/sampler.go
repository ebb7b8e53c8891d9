package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// HistorySource provides the resolved-market pool and price timelines.
type HistorySource interface {
	ListResolvedMarkets(ctx context.Context, limit int) ([]models.MarketSnapshot, error)
	GetPriceHistory(ctx context.Context, marketID string) ([]float64, error)
}

// Sampler builds the backtest pool: resolved markets with an unambiguous
// winner, each assigned an entry price from the middle of its real price
// timeline or a synthetic winner-biased draw when history is missing.
type Sampler struct {
	cfg    config.BacktestConfig
	data   HistorySource
	rng    *rand.Rand
	logger *logrus.Logger
}

// NewSampler creates a sampler with a deterministic seed.
func NewSampler(cfg config.BacktestConfig, data HistorySource, seed int64, logger *logrus.Logger) *Sampler {
	return &Sampler{
		cfg:    cfg,
		data:   data,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// BuildPool draws up to MaxPoolSize samples and errors when fewer than
// MinPoolSize usable markets exist.
func (s *Sampler) BuildPool(ctx context.Context) ([]models.BacktestSample, error) {
	markets, err := s.data.ListResolvedMarkets(ctx, s.cfg.MaxPoolSize)
	if err != nil {
		return nil, fmt.Errorf("listing resolved markets: %w", err)
	}

	samples := make([]models.BacktestSample, 0, len(markets))
	for _, market := range markets {
		winner, ok := s.settledWinner(market)
		if !ok {
			continue
		}

		sample := models.BacktestSample{Market: market, ActualWinner: winner}
		sample.EntryPrice, sample.SyntheticEntry = s.entryPrice(ctx, market.ID, winner)

		// The decision engine sees the market at its sampled entry,
		// not at settlement
		sample.Market.YesPrice = sample.EntryPrice
		sample.Market.NoPrice = 1 - sample.EntryPrice

		samples = append(samples, sample)
		if len(samples) >= s.cfg.MaxPoolSize {
			break
		}
	}

	if len(samples) < s.cfg.MinPoolSize {
		return nil, fmt.Errorf("%w: %d usable of %d required", ErrPoolTooSmall, len(samples), s.cfg.MinPoolSize)
	}

	s.logger.WithFields(logrus.Fields{
		"pool_size": len(samples),
		"scanned":   len(markets),
	}).Info("Backtest pool built")
	return samples, nil
}

// settledWinner accepts only markets where one side settled decisively.
func (s *Sampler) settledWinner(market models.MarketSnapshot) (models.Side, bool) {
	switch {
	case market.YesPrice > s.cfg.WinnerSettlement:
		return models.SideYes, true
	case market.NoPrice > s.cfg.WinnerSettlement:
		return models.SideNo, true
	default:
		return "", false
	}
}

// entryPrice returns the YES-side entry for a sample: a real price from the
// middle 50% of the market's timeline when available, otherwise a synthetic
// draw in [0.40, 0.80] biased toward the eventual winner.
func (s *Sampler) entryPrice(ctx context.Context, marketID string, winner models.Side) (price float64, synthetic bool) {
	history, err := s.data.GetPriceHistory(ctx, marketID)
	if err == nil && len(history) >= 4 {
		lo := len(history) / 4
		hi := len(history) - len(history)/4
		p := history[lo+s.rng.Intn(hi-lo)]
		if p > 0.01 && p < 0.99 {
			return p, false
		}
	}
	return s.syntheticEntry(winner), true
}

// syntheticEntry draws the winner's price toward the upper half of the band
// by taking the larger of two uniform draws.
func (s *Sampler) syntheticEntry(winner models.Side) float64 {
	winnerPrice := 0.40 + 0.40*math.Max(s.rng.Float64(), s.rng.Float64())
	if winner == models.SideYes {
		return winnerPrice
	}
	return 1 - winnerPrice
}

// Split shuffles the pool and divides it by the configured train ratio.
func (s *Sampler) Split(pool []models.BacktestSample) (train, test []models.BacktestSample) {
	shuffled := append([]models.BacktestSample(nil), pool...)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := int(float64(len(shuffled)) * s.cfg.TrainRatio)
	return shuffled[:cut], shuffled[cut:]
}
