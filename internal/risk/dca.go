package risk

import (
	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// maybeAverageDown applies one DCA add-on when a high-conviction position is
// underwater past the trigger return. The add-on is a fixed fraction of the
// original stake so repeated averaging cannot compound the basis.
func (ee *ExitEngine) maybeAverageDown(pf *models.Portfolio, pos *models.Position, price float64) {
	if !ee.dcaEligible(pos, price) {
		return
	}

	addAmount := ee.cfg.DCAAddFraction * pos.OriginalStake
	if addAmount <= 0 {
		return
	}

	if err := pf.AddToPosition(pos, addAmount, price); err != nil {
		ee.logger.WithFields(logrus.Fields{
			"market_id": pos.MarketID,
			"error":     err.Error(),
		}).Debug("DCA add-on skipped")
		return
	}

	metrics.DCAAppliedTotal.Inc()
	ee.audit.LogDCAApplied(pos.ID.String(), pos.MarketID, addAmount, pos.EntryPrice, pos.DCACount)
}

// dcaEligible gates averaging-down: conviction at or above the floor, the
// position underwater past the trigger, and the per-position cap not hit.
func (ee *ExitEngine) dcaEligible(pos *models.Position, price float64) bool {
	if pos.DCACount >= models.MaxDCACount {
		return false
	}
	if float64(pos.ConvictionScore) < ee.cfg.DCAMinConviction {
		return false
	}
	return pos.CurrentReturn(price) <= ee.cfg.DCATriggerReturn
}
