package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioOpenClose(t *testing.T) {
	pf := NewPortfolio(1000)
	now := time.Now()

	pos := NewPosition("mkt-1", SideYes, 100, 0.50, now)
	require.NoError(t, pf.Open(pos))

	assert.Equal(t, 900.0, pf.Capital)
	assert.Len(t, pf.ActiveTrades, 1)
	assert.InDelta(t, 200.0, pos.Shares, 1e-9)

	closed, err := pf.Close(pos.ID, 0.60, "TAKE PROFIT", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, PositionStatusClosed, closed.Status)
	// 200 shares at 0.60 = 120 credited
	assert.InDelta(t, 1020.0, pf.Capital, 1e-9)
	assert.Empty(t, pf.ActiveTrades)
	assert.Len(t, pf.ClosedTrades, 1)
	assert.True(t, closed.IsWin())
}

func TestPortfolioConservation(t *testing.T) {
	// capital_after = capital_before - sum(opens) + sum(shares*exit), exactly
	pf := NewPortfolio(5000)
	now := time.Now()

	stakes := []float64{120, 75.5, 433.25, 10}
	exits := []float64{0.9, 0.01, 0.55, 0.42}
	entry := 0.47

	var opened, credited float64
	for i, stake := range stakes {
		pos := NewPosition("mkt", SideYes, stake, entry, now)
		pos.MarketID = pos.MarketID + string(rune('a'+i))
		require.NoError(t, pf.Open(pos))
		opened += stake
		closed, err := pf.Close(pos.ID, exits[i], "test", now)
		require.NoError(t, err)
		credited += closed.Shares * exits[i]
	}

	assert.InDelta(t, 5000-opened+credited, pf.Capital, 1e-9)
}

func TestPortfolioRejectsOverdraftAndDuplicates(t *testing.T) {
	pf := NewPortfolio(100)
	now := time.Now()

	require.Error(t, pf.Open(NewPosition("m", SideYes, 150, 0.5, now)))
	assert.Equal(t, 100.0, pf.Capital)

	first := NewPosition("m", SideYes, 40, 0.5, now)
	require.NoError(t, pf.Open(first))
	err := pf.Open(NewPosition("m", SideYes, 40, 0.5, now))
	assert.ErrorIs(t, err, ErrDuplicatePosition)

	// The opposite side is allowed (arbitrage pairs)
	require.NoError(t, pf.Open(NewPosition("m", SideNo, 40, 0.5, now)))
}

func TestPositionDCAWeightedAverage(t *testing.T) {
	now := time.Now()
	pos := NewPosition("m", SideYes, 100, 0.50, now)

	// Add 50 at 0.40: shares 200 + 125 = 325, avg entry = 150/325
	require.NoError(t, pos.ApplyDCA(50, 0.40))
	assert.InDelta(t, 150.0/325.0, pos.EntryPrice, 1e-9)
	assert.Equal(t, 1, pos.DCACount)

	require.NoError(t, pos.ApplyDCA(50, 0.30))
	assert.Equal(t, 2, pos.DCACount)

	err := pos.ApplyDCA(50, 0.20)
	assert.ErrorIs(t, err, ErrDCALimitReached)
}

func TestPositionPriceHistoryBounded(t *testing.T) {
	pos := NewPosition("m", SideYes, 100, 0.50, time.Now())
	for i := 0; i < MaxPriceHistory+20; i++ {
		pos.RecordPrice(0.5 + float64(i)*0.001)
	}
	assert.Len(t, pos.PriceHistory, MaxPriceHistory)
	// MaxReturn ratchets with the highest observed price
	assert.InDelta(t, pos.CurrentReturn(0.5+69*0.001), pos.MaxReturn, 1e-9)
}

func TestPortfolioLossStreak(t *testing.T) {
	pf := NewPortfolio(1000)
	now := time.Now()

	outcomes := []float64{0.9, 0.1, 0.1, 0.1} // win then three losses
	for i, exit := range outcomes {
		pos := NewPosition("m"+string(rune('a'+i)), SideYes, 50, 0.5, now)
		require.NoError(t, pf.Open(pos))
		_, err := pf.Close(pos.ID, exit, "test", now)
		require.NoError(t, err)
	}
	// ClosedTrades is most-recent-first, so the streak is 3
	assert.Equal(t, 3, pf.LossStreak())
}

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		question string
		expected Category
	}{
		{"Will Russia and Ukraine sign a ceasefire in 2026?", CategoryGeopolitical},
		{"Will the Fed cut interest rates in March?", CategoryEconomic},
		{"Will the incumbent win the presidential election?", CategoryPolitical},
		{"Will the Lakers win the NBA finals?", CategorySports},
		{"Will it rain in Paris tomorrow?", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyCategory(tt.question))
		})
	}
}

func TestSnapshotValidate(t *testing.T) {
	valid := MarketSnapshot{ID: "m", YesPrice: 0.6, NoPrice: 0.41}
	assert.NoError(t, valid.Validate())

	nan := MarketSnapshot{ID: "m", YesPrice: math.NaN(), NoPrice: 0.4}
	assert.ErrorIs(t, nan.Validate(), ErrInvalidSnapshot)

	missing := MarketSnapshot{ID: "m", NoPrice: 0.4}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidSnapshot)
}
