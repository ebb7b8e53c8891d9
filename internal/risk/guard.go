package risk

import (
	"sync"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// PortfolioGuard owns the live portfolio pointer and lets a simulation swap
// in an isolated copy for its duration. Live trading reads through Current,
// so a swapped-in simulation portfolio absorbs every mutation until Restore
// puts the real one back.
type PortfolioGuard struct {
	mu   sync.RWMutex
	live *models.Portfolio
	held *models.Portfolio
}

// NewPortfolioGuard wraps the live portfolio.
func NewPortfolioGuard(pf *models.Portfolio) *PortfolioGuard {
	return &PortfolioGuard{live: pf}
}

// Current returns the portfolio all trading paths should use right now.
func (g *PortfolioGuard) Current() *models.Portfolio {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.live
}

// Swap installs a simulation portfolio and returns a restore function that
// reinstates the real one. Callers must defer the restore so the live
// portfolio survives a panicking simulation.
func (g *PortfolioGuard) Swap(sim *models.Portfolio) (restore func()) {
	g.mu.Lock()
	g.held = g.live
	g.live = sim
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.live = g.held
			g.held = nil
			g.mu.Unlock()
		})
	}
}

// Simulating reports whether a swap is currently in effect.
func (g *PortfolioGuard) Simulating() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.held != nil
}
