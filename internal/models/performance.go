package models

import "encoding/json"

// MinReliableSampleSize is the trade count below which metrics are flagged
// as unreliable
const MinReliableSampleSize = 50

// PerformanceMetrics summarizes a set of simulated trade results
type PerformanceMetrics struct {
	SharpeRatio       float64 `json:"sharpe_ratio"`
	MaxDrawdownPct    float64 `json:"max_drawdown_pct"`
	ROIPct            float64 `json:"roi_pct"`
	AvgReturnPerTrade float64 `json:"avg_return_per_trade"`
	StdDev            float64 `json:"std_dev"`
	WinRate           float64 `json:"win_rate"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	SampleSize        int     `json:"sample_size"`
	IsReliable        bool    `json:"is_reliable"`
}

// ToJSON exports metrics to JSON
func (m PerformanceMetrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}
