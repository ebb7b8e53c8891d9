package risk

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

type fakeResolver struct {
	snapshots map[string]*models.MarketSnapshot
	err       error
}

func (f *fakeResolver) GetMarketSnapshot(_ context.Context, marketID string) (*models.MarketSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snapshot, ok := f.snapshots[marketID]
	if !ok {
		return nil, errors.New("unknown market")
	}
	return snapshot, nil
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		CategoryVolatility: map[string]float64{
			"sports": 0.10,
			"other":  0.15,
		},
		TrailingActivation: 0.10,
		TrailingDistance:   0.05,
		BreakEvenReturn:    0.10,
		TakeProfit:         0.30,
		TimeoutHours:       168,
		SpikeLockReturn:    0.08,
		SpikeLockAgeHours:  24,
		DecayAgeHours:      96,
		DecayPenalty:       0.05,
		DCAMinConviction:   60,
		DCATriggerReturn:   -0.03,
		DCAAddFraction:     0.5,
	}
}

func newTestExitEngine(t *testing.T, resolver MarketResolver, dcaEnabled bool, now time.Time) *ExitEngine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	ee := NewExitEngine(testRiskConfig(), resolver, logger.NewAuditLogger(log), dcaEnabled, log)
	ee.now = func() time.Time { return now }
	return ee
}

func openPosition(t *testing.T, pf *models.Portfolio, marketID string, side models.Side, amount, entryPrice float64, start time.Time) *models.Position {
	t.Helper()
	pos := models.NewPosition(marketID, side, amount, entryPrice, start)
	require.NoError(t, pf.Open(pos))
	return pos
}

func TestStopLossFiresOnVolatileDrop(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	now := start.Add(2 * time.Hour)

	resolver := &fakeResolver{snapshots: map[string]*models.MarketSnapshot{
		"mkt-1": {
			ID:       "mkt-1",
			YesPrice: 0.08,
			NoPrice:  0.92,
			EndTime:  now.Add(30 * 24 * time.Hour),
		},
	}}
	ee := newTestExitEngine(t, resolver, false, now)

	pf := models.NewPortfolio(1000)
	pos := openPosition(t, pf, "mkt-1", models.SideYes, 20, 0.20, start)
	pos.Category = models.CategorySports

	closed := ee.CheckAndCloseAll(context.Background(), pf)

	require.Len(t, closed, 1)
	assert.Contains(t, closed[0].CloseReason, ReasonStopLoss)
	assert.Empty(t, pf.ActiveTrades)
	// 100 shares settled at 0.08 credit 8.00 back
	assert.InDelta(t, 988.0, pf.Capital, 1e-9)
	require.NotNil(t, closed[0].PnL)
	assert.InDelta(t, -12.0, *closed[0].PnL, 1e-9)
}

func TestTrailingStopLocksInGains(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)
	ee := newTestExitEngine(t, &fakeResolver{}, false, now)

	pos := models.NewPosition("mkt-1", models.SideYes, 50, 0.40, start)
	pos.Category = models.CategoryOther
	pos.RecordPrice(0.50) // peak at +25%, trailing stop now +20%

	snapshot := &models.MarketSnapshot{
		ID: "mkt-1", YesPrice: 0.46, NoPrice: 0.54,
		EndTime: now.Add(30 * 24 * time.Hour),
	}

	decision := ee.Evaluate(pos, snapshot, 0.46, now)

	require.True(t, decision.Close)
	assert.Contains(t, decision.Reason, ReasonStopLoss)
	assert.Equal(t, 0.46, decision.ExitPrice)
}

func TestStopIsNonDecreasingInMaxReturn(t *testing.T) {
	cfg := testRiskConfig()
	prev := -1.0
	for maxReturn := 0.0; maxReturn <= 0.60; maxReturn += 0.01 {
		stop := ComputeStop(StopInputs{
			CategoryVolatility: cfg.VolatilityFor(models.CategoryOther),
			MaxReturn:          maxReturn,
			TrailingActivation: cfg.TrailingActivation,
			TrailingDistance:   cfg.TrailingDistance,
			BreakEvenReturn:    cfg.BreakEvenReturn,
		})
		require.GreaterOrEqual(t, stop, prev, "stop retreated at maxReturn=%.2f", maxReturn)
		prev = stop
	}
}

func TestDecayTightensAgedStop(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snapshot := &models.MarketSnapshot{
		ID: "mkt-1", YesPrice: 0.44, NoPrice: 0.56,
		EndTime: start.Add(60 * 24 * time.Hour),
	}

	pos := models.NewPosition("mkt-1", models.SideYes, 20, 0.50, start)
	pos.Category = models.CategoryOther

	// At -12% a fresh position rides out the move
	young := start.Add(50 * time.Hour)
	decision := newTestExitEngine(t, &fakeResolver{}, false, young).Evaluate(pos, snapshot, 0.44, young)
	assert.False(t, decision.Close)

	// Past the decay age the same return breaches the tightened stop
	aged := start.Add(100 * time.Hour)
	decision = newTestExitEngine(t, &fakeResolver{}, false, aged).Evaluate(pos, snapshot, 0.44, aged)
	require.True(t, decision.Close)
	assert.Contains(t, decision.Reason, ReasonStopLoss)
}

func TestTakeProfitAndTimeoutAndSpikeLock(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	farEnd := start.Add(90 * 24 * time.Hour)

	tests := []struct {
		name       string
		entryPrice float64
		price      float64
		age        time.Duration
		wantReason string
	}{
		{"take profit at +30%", 0.40, 0.52, 2 * time.Hour, ReasonTakeProfit},
		{"timeout after a week", 0.50, 0.50, 169 * time.Hour, ReasonTimeout},
		{"spike lock on aged gain", 0.50, 0.55, 30 * time.Hour, ReasonSpikeLock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := start.Add(tt.age)
			ee := newTestExitEngine(t, &fakeResolver{}, false, now)

			pos := models.NewPosition("mkt-1", models.SideYes, 20, tt.entryPrice, start)
			pos.Category = models.CategoryOther
			pos.RecordPrice(tt.price)

			snapshot := &models.MarketSnapshot{
				ID: "mkt-1", YesPrice: tt.price, NoPrice: 1 - tt.price, EndTime: farEnd,
			}

			decision := ee.Evaluate(pos, snapshot, tt.price, now)
			require.True(t, decision.Close)
			assert.Contains(t, decision.Reason, tt.wantReason)
			assert.Equal(t, tt.price, decision.ExitPrice)
		})
	}
}

func TestResolutionShortCircuitsEverything(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(48 * time.Hour)
	ee := newTestExitEngine(t, &fakeResolver{}, false, now)

	settled := &models.MarketSnapshot{
		ID: "mkt-1", YesPrice: 0.97, NoPrice: 0.03,
		EndTime: now.Add(-time.Hour),
	}

	winner := models.NewPosition("mkt-1", models.SideYes, 20, 0.60, start)
	decision := ee.Evaluate(winner, settled, 0.97, now)
	require.True(t, decision.Close)
	assert.Equal(t, 1.0, decision.ExitPrice)
	assert.Contains(t, decision.Reason, ReasonResolved)

	loser := models.NewPosition("mkt-1", models.SideNo, 20, 0.40, start)
	decision = ee.Evaluate(loser, settled, 0.03, now)
	require.True(t, decision.Close)
	assert.Equal(t, 0.0, decision.ExitPrice)
	assert.Contains(t, decision.Reason, ReasonResolved)
}

func TestUnavailableMarketKeepsPositionOpen(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)
	ee := newTestExitEngine(t, &fakeResolver{err: errors.New("gateway timeout")}, false, now)

	pf := models.NewPortfolio(1000)
	openPosition(t, pf, "mkt-1", models.SideYes, 20, 0.50, start)

	closed := ee.CheckAndCloseAll(context.Background(), pf)

	assert.Empty(t, closed)
	assert.Len(t, pf.ActiveTrades, 1)
}

func TestDCAAveragesDownHighConvictionLosers(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)

	resolver := &fakeResolver{snapshots: map[string]*models.MarketSnapshot{
		"mkt-1": {
			ID: "mkt-1", YesPrice: 0.45, NoPrice: 0.55,
			EndTime: now.Add(60 * 24 * time.Hour),
		},
	}}
	ee := newTestExitEngine(t, resolver, true, now)

	pf := models.NewPortfolio(1000)
	pos := openPosition(t, pf, "mkt-1", models.SideYes, 20, 0.50, start)
	pos.Category = models.CategoryOther
	pos.ConvictionScore = 70

	// Three cycles: two add-ons, then the cap holds
	for i := 0; i < 3; i++ {
		closed := ee.CheckAndCloseAll(context.Background(), pf)
		assert.Empty(t, closed)
	}

	assert.Equal(t, 2, pos.DCACount)
	// Each add-on is half the original 20 stake regardless of basis drift
	assert.InDelta(t, 40.0, pos.Amount, 1e-9)
	assert.InDelta(t, 960.0, pf.Capital, 1e-9)
	assert.Less(t, pos.EntryPrice, 0.50)
	assert.Greater(t, pos.EntryPrice, 0.45)
}

func TestDCARequiresConvictionFloor(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)

	resolver := &fakeResolver{snapshots: map[string]*models.MarketSnapshot{
		"mkt-1": {
			ID: "mkt-1", YesPrice: 0.45, NoPrice: 0.55,
			EndTime: now.Add(60 * 24 * time.Hour),
		},
	}}
	ee := newTestExitEngine(t, resolver, true, now)

	pf := models.NewPortfolio(1000)
	pos := openPosition(t, pf, "mkt-1", models.SideYes, 20, 0.50, start)
	pos.Category = models.CategoryOther
	pos.ConvictionScore = 50

	ee.CheckAndCloseAll(context.Background(), pf)

	assert.Equal(t, 0, pos.DCACount)
	assert.InDelta(t, 980.0, pf.Capital, 1e-9)
}

func TestPortfolioGuardSwapAndRestore(t *testing.T) {
	live := models.NewPortfolio(1000)
	guard := NewPortfolioGuard(live)

	sim := live.Clone()
	restore := guard.Swap(sim)

	assert.True(t, guard.Simulating())
	assert.Same(t, sim, guard.Current())

	// Simulation losses stay inside the simulation
	sim.Capital = 400

	restore()
	restore() // idempotent

	assert.False(t, guard.Simulating())
	assert.Same(t, live, guard.Current())
	assert.Equal(t, 1000.0, guard.Current().Capital)
}
