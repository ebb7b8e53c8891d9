package backtest

import (
	"fmt"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// GateResult is the outcome of the overfit gate.
type GateResult struct {
	Overfit bool     `json:"overfit"`
	Reasons []string `json:"reasons,omitempty"`
}

// EvaluateOverfit compares train and test metrics against the configured
// thresholds. A deeply negative test ROI trips the gate on its own; otherwise
// at least two degradation conditions must hold.
func EvaluateOverfit(train, test models.PerformanceMetrics, cfg config.BacktestConfig) GateResult {
	var reasons []string

	roiBreached := test.ROIPct < cfg.OverfitTestROI
	if roiBreached {
		reasons = append(reasons, fmt.Sprintf("test ROI %.1f%% below %.1f%%", test.ROIPct, cfg.OverfitTestROI))
	}
	if train.SharpeRatio > 0 && test.SharpeRatio < cfg.OverfitSharpeRatio*train.SharpeRatio {
		reasons = append(reasons, fmt.Sprintf("test Sharpe %.2f below %.0f%% of train %.2f",
			test.SharpeRatio, cfg.OverfitSharpeRatio*100, train.SharpeRatio))
	}
	if train.WinRate > 0 && test.WinRate < cfg.OverfitWinRateRatio*train.WinRate {
		reasons = append(reasons, fmt.Sprintf("test win rate %.0f%% below %.0f%% of train %.0f%%",
			test.WinRate*100, cfg.OverfitWinRateRatio*100, train.WinRate*100))
	}

	return GateResult{
		Overfit: roiBreached || len(reasons) >= 2,
		Reasons: reasons,
	}
}
