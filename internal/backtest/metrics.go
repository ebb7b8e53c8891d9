package backtest

import (
	"math"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// CalculateMetrics summarizes a simulation ledger. The Sharpe ratio is the
// unannualized mean over standard deviation of per-trade returns; samples
// smaller than models.MinReliableSampleSize are flagged unreliable.
func CalculateMetrics(ledger *Ledger) models.PerformanceMetrics {
	metrics := models.PerformanceMetrics{}
	if ledger == nil || len(ledger.Trades) == 0 {
		return metrics
	}

	returns := make([]float64, 0, len(ledger.Trades))
	for _, trade := range ledger.Trades {
		returns = append(returns, trade.Return())
		if trade.Won {
			metrics.Wins++
		} else {
			metrics.Losses++
		}
	}

	metrics.SampleSize = len(ledger.Trades)
	metrics.IsReliable = metrics.SampleSize >= models.MinReliableSampleSize
	metrics.WinRate = float64(metrics.Wins) / float64(metrics.SampleSize)
	metrics.AvgReturnPerTrade = average(returns)
	metrics.StdDev = stddev(returns)
	if metrics.StdDev > 0 {
		metrics.SharpeRatio = metrics.AvgReturnPerTrade / metrics.StdDev
	}
	if ledger.InitialCapital > 0 {
		metrics.ROIPct = (ledger.FinalCapital() - ledger.InitialCapital) / ledger.InitialCapital * 100
	}
	metrics.MaxDrawdownPct = ledger.Curve.MaxDrawdown() * 100

	return metrics
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
