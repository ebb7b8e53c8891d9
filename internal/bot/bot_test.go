package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/engine"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/gamma"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testBotConfig() *config.Config {
	return &config.Config{
		Scan: config.ScanConfig{
			IntervalSeconds: 60,
			BatchSize:       5,
			MaxMarkets:      20,
		},
		Learning: config.LearningConfig{
			RetuneCron: "0 3 * * *",
		},
	}
}

func losingPosition(pnl float64) *models.Position {
	pos := models.NewPosition("mkt-"+uuid.NewString()[:8], models.SideYes, 10, 0.50, time.Now())
	pos.Close(0.0, risk.ReasonStopLoss, time.Now())
	*pos.PnL = pnl
	return pos
}

func winningPosition(pnl float64) *models.Position {
	pos := models.NewPosition("mkt-"+uuid.NewString()[:8], models.SideYes, 10, 0.50, time.Now())
	pos.Close(1.0, risk.ReasonTakeProfit, time.Now())
	*pos.PnL = pnl
	return pos
}

// --- fakes ---

type fakeMarkets struct {
	snapshots []models.MarketSnapshot
	err       error
	calls     int
}

func (f *fakeMarkets) ListCandidateMarkets(ctx context.Context, filters gamma.MarketFilters) ([]models.MarketSnapshot, error) {
	f.calls++
	return f.snapshots, f.err
}

type fakeSignals struct{}

func (fakeSignals) FetchContextSignals(ctx context.Context, snapshots []models.MarketSnapshot) models.ContextSignals {
	return models.ContextSignals{}
}

// stubDecider opens a fixed stake on every market it sees.
type stubDecider struct {
	stake float64
}

func (d stubDecider) Decide(ctx context.Context, snapshot models.MarketSnapshot, contextSignals models.ContextSignals, pf *models.Portfolio) ([]*models.Position, []engine.Rejection) {
	if d.stake <= 0 {
		return nil, []engine.Rejection{{MarketID: snapshot.ID, Rule: "value", Reason: "no edge"}}
	}
	pos := models.NewPosition(snapshot.ID, models.SideYes, d.stake, snapshot.YesPrice, time.Now())
	pos.Strategy = "trend"
	pos.Confidence = 0.70
	pos.ConvictionScore = 70
	return []*models.Position{pos}, nil
}

type stubExiter struct {
	closed []*models.Position
}

func (e stubExiter) CheckAndCloseAll(ctx context.Context, pf *models.Portfolio) []*models.Position {
	return e.closed
}

type stubRetuner struct {
	params *models.LearningParameters
	err    error
	calls  int
}

func (r *stubRetuner) Retune(ctx context.Context) (*models.LearningParameters, error) {
	r.calls++
	return r.params, r.err
}

func (r *stubRetuner) Current() *models.LearningParameters {
	if r.params == nil {
		return models.NeutralParameters()
	}
	return r.params
}

type memoryPositionRepo struct {
	saved map[uuid.UUID]*models.Position
	pf    *models.Portfolio
	err   error
}

func newMemoryPositionRepo() *memoryPositionRepo {
	return &memoryPositionRepo{saved: make(map[uuid.UUID]*models.Position)}
}

func (m *memoryPositionRepo) Save(ctx context.Context, pos *models.Position) error {
	if m.err != nil {
		return m.err
	}
	m.saved[pos.ID] = pos
	return nil
}

func (m *memoryPositionRepo) LoadOpen(ctx context.Context) ([]*models.Position, error) {
	return nil, nil
}

func (m *memoryPositionRepo) LoadRecentClosed(ctx context.Context, limit int) ([]*models.Position, error) {
	return nil, nil
}

func (m *memoryPositionRepo) RecoverPortfolio(ctx context.Context, startingCapital float64) (*models.Portfolio, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.pf != nil {
		return m.pf, nil
	}
	return models.NewPortfolio(startingCapital), nil
}

func newTestOrchestrator(cfg *config.Config, comps Components) *Orchestrator {
	log := testLogger()
	if comps.Signals == nil {
		comps.Signals = fakeSignals{}
	}
	if comps.Positions == nil {
		comps.Positions = newMemoryPositionRepo()
	}
	comps.Audit = logger.NewAuditLogger(log)
	comps.Strategy = logger.NewStrategyLogger(log)
	comps.Logger = log
	if comps.Guard == nil {
		comps.Guard = risk.NewPortfolioGuard(models.NewPortfolio(1000))
	}
	return NewOrchestrator(cfg, comps)
}

// --- circuit breaker ---

func TestCircuitBreakerConsecutiveLosses(t *testing.T) {
	log := testLogger()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(), logger.NewAuditLogger(log), log)

	for i := 0; i < 4; i++ {
		cb.RecordTradeResult(losingPosition(-2), 1000)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordTradeResult(losingPosition(-2), 1000)
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
	assert.Equal(t, "consecutive loss limit reached", cb.TripReason())
}

func TestCircuitBreakerWinResetsStreak(t *testing.T) {
	log := testLogger()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(), logger.NewAuditLogger(log), log)

	for i := 0; i < 4; i++ {
		cb.RecordTradeResult(losingPosition(-2), 1000)
	}
	cb.RecordTradeResult(winningPosition(5), 1005)
	for i := 0; i < 4; i++ {
		cb.RecordTradeResult(losingPosition(-2), 1000)
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerDrawdownTrip(t *testing.T) {
	log := testLogger()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(), logger.NewAuditLogger(log), log)

	cb.RecordTradeResult(winningPosition(10), 1000)
	cb.RecordTradeResult(losingPosition(-210), 790)

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "drawdown limit reached", cb.TripReason())
}

func TestCircuitBreakerFailureWindow(t *testing.T) {
	log := testLogger()
	cfg := DefaultCircuitBreakerConfig()
	cfg.MaxFailureCount = 3
	cb := NewCircuitBreaker(cfg, logger.NewAuditLogger(log), log)

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	cb.now = func() time.Time { return now }

	cb.RecordFailure("api timeout")
	cb.RecordFailure("api timeout")
	assert.Equal(t, StateClosed, cb.State())

	// First two failures age out of the window
	now = base.Add(15 * time.Minute)
	cb.RecordFailure("api timeout")
	assert.Equal(t, StateClosed, cb.State())

	now = now.Add(time.Minute)
	cb.RecordFailure("api timeout")
	now = now.Add(time.Minute)
	cb.RecordFailure("api timeout")
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerCooldownProbe(t *testing.T) {
	log := testLogger()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(), logger.NewAuditLogger(log), log)

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	cb.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		cb.RecordTradeResult(losingPosition(-2), 1000)
	}
	require.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	now = base.Add(31 * time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerShutdownCallback(t *testing.T) {
	log := testLogger()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(), logger.NewAuditLogger(log), log)

	var gotReason string
	cb.OnShutdown(func(reason string) { gotReason = reason })

	for i := 0; i < 5; i++ {
		cb.RecordTradeResult(losingPosition(-2), 1000)
	}
	assert.Equal(t, "consecutive loss limit reached", gotReason)
}

// --- orchestrator cycles ---

func TestScanCycleOpensAndPersists(t *testing.T) {
	repo := newMemoryPositionRepo()
	markets := &fakeMarkets{snapshots: []models.MarketSnapshot{
		{ID: "mkt-1", Question: "q1", YesPrice: 0.60, NoPrice: 0.40, Volume24h: 50000, Liquidity: 10000, Category: models.CategoryPolitical, EndTime: time.Now().Add(48 * time.Hour)},
		{ID: "mkt-2", Question: "q2", YesPrice: 0.70, NoPrice: 0.30, Volume24h: 80000, Liquidity: 20000, Category: models.CategorySports, EndTime: time.Now().Add(48 * time.Hour)},
	}}
	guard := risk.NewPortfolioGuard(models.NewPortfolio(1000))

	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:   markets,
		Decider:   stubDecider{stake: 25},
		Exits:     stubExiter{},
		Learning:  &stubRetuner{},
		Guard:     guard,
		Positions: repo,
	})

	require.NoError(t, o.RunScanCycle(context.Background()))

	pf := guard.Current()
	assert.Len(t, pf.ActiveTrades, 2)
	assert.InDelta(t, 950, pf.Capital, 1e-9)
	assert.Len(t, repo.saved, 2)
}

func TestScanCycleSkipsWhenBreakerOpen(t *testing.T) {
	markets := &fakeMarkets{}
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:  markets,
		Decider:  stubDecider{stake: 25},
		Exits:    stubExiter{},
		Learning: &stubRetuner{},
	})

	for i := 0; i < 5; i++ {
		o.breaker.RecordTradeResult(losingPosition(-2), 1000)
	}

	require.NoError(t, o.RunScanCycle(context.Background()))
	assert.Zero(t, markets.calls)
}

func TestScanCycleSkipsDuringBacktest(t *testing.T) {
	markets := &fakeMarkets{}
	guard := risk.NewPortfolioGuard(models.NewPortfolio(1000))
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:  markets,
		Decider:  stubDecider{stake: 25},
		Exits:    stubExiter{},
		Learning: &stubRetuner{},
		Guard:    guard,
	})

	restore := guard.Swap(models.NewPortfolio(500))
	defer restore()

	require.NoError(t, o.RunScanCycle(context.Background()))
	assert.Zero(t, markets.calls)
}

func TestScanCycleListingFailureCountsAgainstBreaker(t *testing.T) {
	markets := &fakeMarkets{err: errors.New("gateway timeout")}
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:  markets,
		Decider:  stubDecider{stake: 25},
		Exits:    stubExiter{},
		Learning: &stubRetuner{},
	})

	for i := 0; i < 10; i++ {
		err := o.RunScanCycle(context.Background())
		if o.breaker.State() == StateOpen {
			break
		}
		require.Error(t, err)
	}

	assert.Equal(t, StateOpen, o.breaker.State())
	assert.Equal(t, "failure rate limit reached", o.breaker.TripReason())
}

func TestExitCycleFeedsBreakerAndPersists(t *testing.T) {
	repo := newMemoryPositionRepo()
	closed := []*models.Position{losingPosition(-3), losingPosition(-4)}
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:   &fakeMarkets{},
		Decider:   stubDecider{stake: 25},
		Exits:     stubExiter{closed: closed},
		Learning:  &stubRetuner{},
		Positions: repo,
	})

	require.NoError(t, o.RunExitCycle(context.Background()))

	assert.Len(t, repo.saved, 2)
	// Breaker saw both losses
	o.breaker.RecordTradeResult(losingPosition(-2), 1000)
	o.breaker.RecordTradeResult(losingPosition(-2), 1000)
	o.breaker.RecordTradeResult(losingPosition(-2), 1000)
	assert.Equal(t, StateOpen, o.breaker.State())
}

// cycleTracker observes whether two cycle bodies ever run at the same time.
type cycleTracker struct {
	active  int32
	overlap int32
}

func (c *cycleTracker) enter() {
	if atomic.AddInt32(&c.active, 1) > 1 {
		atomic.StoreInt32(&c.overlap, 1)
	}
}

func (c *cycleTracker) leave() {
	atomic.AddInt32(&c.active, -1)
}

func (c *cycleTracker) overlapped() bool {
	return atomic.LoadInt32(&c.overlap) == 1
}

// uniqueMarkets returns a fresh market id on every listing so each scan
// opens a new position.
type uniqueMarkets struct {
	n int32
}

func (u *uniqueMarkets) ListCandidateMarkets(ctx context.Context, filters gamma.MarketFilters) ([]models.MarketSnapshot, error) {
	id := atomic.AddInt32(&u.n, 1)
	return []models.MarketSnapshot{{
		ID:        fmt.Sprintf("mkt-%d", id),
		Question:  "q",
		YesPrice:  0.60,
		NoPrice:   0.40,
		Volume24h: 50000,
		Liquidity: 10000,
		Category:  models.CategoryPolitical,
		EndTime:   time.Now().Add(48 * time.Hour),
	}}, nil
}

type trackingDecider struct {
	tracker *cycleTracker
}

func (d trackingDecider) Decide(ctx context.Context, snapshot models.MarketSnapshot, contextSignals models.ContextSignals, pf *models.Portfolio) ([]*models.Position, []engine.Rejection) {
	d.tracker.enter()
	defer d.tracker.leave()
	time.Sleep(200 * time.Microsecond)

	pos := models.NewPosition(snapshot.ID, models.SideYes, 5, snapshot.YesPrice, time.Now())
	pos.Strategy = "trend"
	pos.Confidence = 0.70
	pos.ConvictionScore = 70
	return []*models.Position{pos}, nil
}

// trackingExiter settles every open position slightly above entry.
type trackingExiter struct {
	tracker *cycleTracker
}

func (e trackingExiter) CheckAndCloseAll(ctx context.Context, pf *models.Portfolio) []*models.Position {
	e.tracker.enter()
	defer e.tracker.leave()
	time.Sleep(200 * time.Microsecond)

	var closed []*models.Position
	for id := range pf.ActiveTrades {
		pos, err := pf.Close(id, 0.66, risk.ReasonTakeProfit, time.Now())
		if err == nil {
			closed = append(closed, pos)
		}
	}
	return closed
}

func TestScanAndExitCyclesSerialized(t *testing.T) {
	tracker := &cycleTracker{}
	guard := risk.NewPortfolioGuard(models.NewPortfolio(1000))
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:  &uniqueMarkets{},
		Decider:  trackingDecider{tracker: tracker},
		Exits:    trackingExiter{tracker: tracker},
		Learning: &stubRetuner{},
		Guard:    guard,
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.RunScanCycle(context.Background()))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, o.RunExitCycle(context.Background()))
		}()
	}
	wg.Wait()

	assert.False(t, tracker.overlapped(), "a trading cycle ran while another held the portfolio")

	// The ledger survived the contention: a final exit pass drains the book
	require.NoError(t, o.RunExitCycle(context.Background()))
	pf := guard.Current()
	assert.Empty(t, pf.ActiveTrades)
	assert.Greater(t, pf.Capital, 0.0)
}

func TestRunRetune(t *testing.T) {
	retuner := &stubRetuner{params: &models.LearningParameters{
		Mode:                 models.ModeAggressive,
		SizeMultiplier:       1.25,
		ConfidenceMultiplier: 1.05,
	}}
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:  &fakeMarkets{},
		Decider:  stubDecider{stake: 25},
		Exits:    stubExiter{},
		Learning: retuner,
	})

	require.NoError(t, o.RunRetune(context.Background()))
	assert.Equal(t, 1, retuner.calls)

	retuner.err = errors.New("pool too small")
	assert.Error(t, o.RunRetune(context.Background()))
}

func TestGetStatus(t *testing.T) {
	guard := risk.NewPortfolioGuard(models.NewPortfolio(1000))
	o := newTestOrchestrator(testBotConfig(), Components{
		Markets:  &fakeMarkets{},
		Decider:  stubDecider{stake: 25},
		Exits:    stubExiter{},
		Learning: &stubRetuner{},
		Guard:    guard,
	})

	status := o.GetStatus()
	assert.False(t, status.Running)
	assert.Equal(t, StateClosed, status.CircuitState)
	assert.InDelta(t, 1000, status.Capital, 1e-9)
	assert.Equal(t, models.ModeNeutral, status.Mode)
}

func TestRecoverPortfolio(t *testing.T) {
	log := testLogger()
	repo := newMemoryPositionRepo()
	open := models.NewPosition("mkt-open", models.SideNo, 40, 0.50, time.Now())
	pf := models.NewPortfolio(1000)
	require.NoError(t, pf.Open(open))
	repo.pf = pf

	recovered, err := RecoverPortfolio(context.Background(), repo, 1000, logger.NewAuditLogger(log))
	require.NoError(t, err)
	assert.Len(t, recovered.ActiveTrades, 1)
	assert.InDelta(t, 960, recovered.Capital, 1e-9)

	repo.err = errors.New("connection refused")
	_, err = RecoverPortfolio(context.Background(), repo, 1000, logger.NewAuditLogger(log))
	assert.Error(t, err)
}
