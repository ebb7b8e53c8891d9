package signals

import (
	"fmt"
	"time"
)

const (
	weekendMultiplier  = 0.7
	offHoursMultiplier = 0.8
	peakMultiplier     = 1.1
	monthEndMultiplier = 0.9

	minCalendarMultiplier = 0.5
	maxCalendarMultiplier = 1.2
)

// Calendar adjusts position size by time-of-week effects: thinner weekend
// and off-hours liquidity, peak-hours activity, month-end rebalancing.
type Calendar struct {
	now func() time.Time
}

// NewCalendar creates a calendar module on the real clock.
func NewCalendar() *Calendar {
	return &Calendar{now: time.Now}
}

// NewCalendarAt creates a calendar module on an injected clock, for tests.
func NewCalendarAt(now func() time.Time) *Calendar {
	return &Calendar{now: now}
}

// Evaluate returns the combined size multiplier for the current moment,
// clamped to [0.5, 1.2].
func (c *Calendar) Evaluate() SignalResult {
	t := c.now().UTC()
	mult := 1.0
	var reasons []string

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		mult *= weekendMultiplier
		reasons = append(reasons, "weekend")
	}

	hour := t.Hour()
	switch {
	case hour < 6:
		mult *= offHoursMultiplier
		reasons = append(reasons, "off-hours")
	case hour >= 13 && hour < 21:
		mult *= peakMultiplier
		reasons = append(reasons, "peak hours")
	}

	if isMonthEnd(t) {
		mult *= monthEndMultiplier
		reasons = append(reasons, "month-end")
	}

	if mult < minCalendarMultiplier {
		mult = minCalendarMultiplier
	}
	if mult > maxCalendarMultiplier {
		mult = maxCalendarMultiplier
	}

	reason := ""
	if len(reasons) > 0 {
		reason = fmt.Sprintf("calendar adjustment x%.2f (%s)", mult, joinReasons(reasons))
	}

	return SignalResult{Module: "calendar", SizeMultiplier: mult, Reason: reason}
}

// isMonthEnd reports whether t falls in the last two days of its month.
func isMonthEnd(t time.Time) bool {
	lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return t.Day() >= lastDay-1
}

func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += ", " + r
	}
	return out
}
