package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/signals"
)

type fakeDepth struct {
	notional float64
	err      error
}

func (f fakeDepth) GetOrderBookDepth(ctx context.Context, marketID string, side models.Side) (*models.OrderBook, error) {
	if f.err != nil {
		return nil, f.err
	}
	// One ask at 0.50 carrying exactly the configured notional
	return &models.OrderBook{
		MarketID: marketID,
		Side:     side,
		Asks:     []models.BookLevel{{Price: 0.50, Size: f.notional / 0.50}},
	}, nil
}

type fakeTrades struct {
	prints []models.TradePrint
}

func (f fakeTrades) GetRecentTradePrices(ctx context.Context, marketID string) ([]models.TradePrint, error) {
	return f.prints, nil
}

type stubParams struct {
	params *models.LearningParameters
}

func (s stubParams) Current() *models.LearningParameters { return s.params }

func testConfig() config.TradingConfig {
	return config.TradingConfig{
		KellyFraction:       0.25,
		MaxPositionPct:      0.15,
		MinPositionSize:     5.0,
		SlippageRate:        0.01,
		ArbitrageThreshold:  0.995,
		ArbitrageBudget:     100.0,
		LowVolumeThreshold:  5000,
		HighVolumeThreshold: 10000,
		DepthSlippageBand:   0.02,
		MaxConcurrent:       15,
	}
}

func newTestEngine(depth fakeDepth, trades fakeTrades) *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEngine(
		testConfig(),
		depth,
		trades,
		signals.NewAdvisor(false),
		stubParams{params: models.NeutralParameters()},
		log,
	)
}

func upTrendPrints() []models.TradePrint {
	base := time.Now()
	prices := []float64{0.50, 0.50, 0.55, 0.56}
	prints := make([]models.TradePrint, len(prices))
	for i, p := range prices {
		prints[i] = models.TradePrint{Price: p, Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return prints
}

func TestArbitrageOpensBothSides(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.48, NoPrice: 0.50}
	positions, _ := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	require.Len(t, positions, 2)
	assert.Equal(t, models.SideYes, positions[0].Side)
	assert.Equal(t, models.SideNo, positions[1].Side)
	assert.InDelta(t, 1.0, positions[0].Confidence, 1e-9)
	assert.InDelta(t, 1.0, positions[1].Confidence, 1e-9)

	combined := positions[0].Amount + positions[1].Amount
	budget := 100.0 // min(ArbitrageBudget, 15% of capital=150)
	assert.LessOrEqual(t, combined, budget+1e-9)

	// Equal shares on both legs: the winning leg alone repays more than
	// the combined stake, whichever side settles
	assert.InDelta(t, positions[0].Shares, positions[1].Shares, 1e-9)
	assert.Greater(t, positions[0].Shares*1.0, combined)
}

func TestArbitrageDepthFailureRejects(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 10}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.48, NoPrice: 0.50}
	positions, rejections := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, StrategyArbitrage, rejections[0].Rule)
}

func TestKellySizingBounds(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	sizer := NewSizer(testConfig(), log)
	capital := 1000.0

	for _, confidence := range []float64{0.05, 0.35, 0.50, 0.65, 0.75, 0.95} {
		for _, price := range []float64{0.05, 0.20, 0.48, 0.60, 0.85, 0.95} {
			size := sizer.PositionSize(confidence, price, capital, 1.0)
			if size == 0 {
				continue
			}
			assert.GreaterOrEqual(t, size, 5.0, "confidence=%v price=%v", confidence, price)
			assert.LessOrEqual(t, size, capital*0.15+1e-9, "confidence=%v price=%v", confidence, price)
		}
	}
}

func TestCrisisOverride(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)
	crisis := models.ContextSignals{Tension: &models.TensionSignal{SeverityLevel: 2}}

	geo := models.MarketSnapshot{
		ID: "geo", Question: "war?", YesPrice: 0.40, NoPrice: 0.61,
		Category: models.CategoryGeopolitical,
	}
	positions, _ := e.Decide(context.Background(), geo, crisis, pf)
	require.Len(t, positions, 1)
	assert.Equal(t, StrategyCrisis, positions[0].Strategy)
	assert.Equal(t, models.SideYes, positions[0].Side)
	assert.InDelta(t, 0.65, positions[0].Confidence, 1e-9)

	sports := models.MarketSnapshot{
		ID: "spt", Question: "nba?", YesPrice: 0.40, NoPrice: 0.61,
		Category: models.CategorySports,
	}
	positions, rejections := e.Decide(context.Background(), sports, crisis, pf)
	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, StrategyCrisis, rejections[0].Rule)
	assert.Contains(t, rejections[0].Reason, "sports")
}

func TestWhaleFollowRequiresTrend(t *testing.T) {
	alert := models.ContextSignals{
		WhaleAlerts: map[string]models.WhaleAlert{"m1": {MarketID: "m1", Volume: 50000}},
	}
	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.52, NoPrice: 0.49}

	// Confirmed uptrend follows YES
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{prints: upTrendPrints()})
	pf := models.NewPortfolio(1000)
	positions, _ := e.Decide(context.Background(), snapshot, alert, pf)
	require.Len(t, positions, 1)
	assert.Equal(t, StrategyWhale, positions[0].Strategy)
	assert.Equal(t, models.SideYes, positions[0].Side)
	assert.InDelta(t, 0.75, positions[0].Confidence, 1e-9)

	// No trend confirmation terminates the cycle, no fallback rule fires
	e = newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	positions, rejections := e.Decide(context.Background(), snapshot, alert, models.NewPortfolio(1000))
	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, StrategyWhale, rejections[0].Rule)
}

func TestTrendFollowWithMomentumBonus(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{prints: upTrendPrints()})
	pf := models.NewPortfolio(1000)

	snapshot := models.MarketSnapshot{
		ID: "m1", Question: "q", YesPrice: 0.65, NoPrice: 0.36, Volume24h: 20000,
	}
	positions, _ := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	require.Len(t, positions, 1)
	assert.Equal(t, StrategyTrend, positions[0].Strategy)
	// 0.65 base plus the 0.10 high-volume YES favorite bonus
	assert.InDelta(t, 0.75, positions[0].Confidence, 1e-9)
	assert.Equal(t, 75, positions[0].ConvictionScore)
}

func TestTrendDepthFailureDoesNotCascade(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 50}, fakeTrades{prints: upTrendPrints()})
	pf := models.NewPortfolio(1000)

	// Would match trend (volume, band, uptrend) but depth requires 100
	snapshot := models.MarketSnapshot{
		ID: "m1", Question: "q", YesPrice: 0.65, NoPrice: 0.36, Volume24h: 20000,
	}
	positions, rejections := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, StrategyTrend, rejections[0].Rule)
}

func TestHypeFadeBuysOppositeSide(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.95, NoPrice: 0.06}
	positions, _ := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	require.Len(t, positions, 1)
	assert.Equal(t, StrategyHypeFade, positions[0].Strategy)
	assert.Equal(t, models.SideNo, positions[0].Side)
	assert.InDelta(t, 0.50, positions[0].Confidence, 1e-9)
}

func TestMomentumFavoriteBand(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	// Favorite inside [0.55, 0.85]: buy favorite at 0.45
	fav := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.70, NoPrice: 0.31, Volume24h: 6000}
	positions, _ := e.Decide(context.Background(), fav, models.ContextSignals{}, pf)
	require.Len(t, positions, 1)
	assert.Equal(t, StrategyMomentum, positions[0].Strategy)
	assert.Equal(t, models.SideYes, positions[0].Side)

	// Favorite above the band: buy the cheaper side at 0.35
	hot := models.MarketSnapshot{ID: "m2", Question: "q", YesPrice: 0.89, NoPrice: 0.12, Volume24h: 6000}
	positions, _ = e.Decide(context.Background(), hot, models.ContextSignals{}, pf)
	require.Len(t, positions, 1)
	assert.Equal(t, models.SideNo, positions[0].Side)
	assert.InDelta(t, 0.35, positions[0].Confidence, 1e-9)
}

func TestFallbackRules(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	long := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.15, NoPrice: 0.86}
	positions, _ := e.Decide(context.Background(), long, models.ContextSignals{}, pf)
	require.Len(t, positions, 1)
	assert.Equal(t, StrategyLongShot, positions[0].Strategy)

	mid := models.MarketSnapshot{ID: "m2", Question: "q", YesPrice: 0.30, NoPrice: 0.71}
	positions, _ = e.Decide(context.Background(), mid, models.ContextSignals{}, pf)
	require.Len(t, positions, 1)
	assert.Equal(t, StrategyMidPrice, positions[0].Strategy)
}

func TestNoRuleMatched(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	// Low volume, unremarkable mid-high price: nothing fires
	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.50, NoPrice: 0.51, Volume24h: 100}
	positions, rejections := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, "cascade", rejections[len(rejections)-1].Rule)
}

func TestDisabledStrategyRejected(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	params := models.NeutralParameters()
	params.DisabledStrategies = []string{StrategyHypeFade}

	e := NewEngine(testConfig(), fakeDepth{notional: 500}, fakeTrades{},
		signals.NewAdvisor(false), stubParams{params: params}, log)
	pf := models.NewPortfolio(1000)

	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.95, NoPrice: 0.06}
	positions, rejections := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Contains(t, rejections[0].Reason, "disabled")
}

func TestPortfolioGates(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	held := models.NewPosition("m1", models.SideYes, 50, 0.5, time.Now())
	require.NoError(t, pf.Open(held))

	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0.30, NoPrice: 0.71}
	positions, rejections := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)
	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, "portfolio", rejections[0].Rule)
}

func TestDecideRejectsInvalidSnapshot(t *testing.T) {
	e := newTestEngine(fakeDepth{notional: 500}, fakeTrades{})
	pf := models.NewPortfolio(1000)

	snapshot := models.MarketSnapshot{ID: "m1", Question: "q", YesPrice: 0, NoPrice: 0.5}
	positions, rejections := e.Decide(context.Background(), snapshot, models.ContextSignals{}, pf)

	assert.Nil(t, positions)
	require.NotEmpty(t, rejections)
	assert.Equal(t, "input", rejections[0].Rule)
}

func TestExecutionSlippageIsAdverse(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	sizer := NewSizer(testConfig(), log)

	assert.InDelta(t, 0.505, sizer.ExecutionPrice(0.50), 1e-9)
	// Capped below 1.0 for near-certain prices
	assert.LessOrEqual(t, sizer.ExecutionPrice(0.99), 0.99)
}
