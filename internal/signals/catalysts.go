package signals

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

const (
	catalystWindow = 2 * time.Hour

	volumeSpikeFactor = 3.0

	directMarketBonus  = 8
	categoryMatchBonus = 5
	keywordMatchBonus  = 3
	maxCatalystBonus   = 12
)

// catalyst is one time-decayed market-moving event.
type catalyst struct {
	Category models.Category
	MarketID string
	Keywords map[string]struct{}
	Source   string
}

// CatalystTracker maintains a time-decayed list of catalysts from external
// trend text and observed volume spikes, awarding bonuses to markets they
// plausibly affect.
type CatalystTracker struct {
	entries *cache.Cache
	memory  *MarketMemory
	seq     uint64
}

// NewCatalystTracker creates a tracker with a 2-hour decay window.
func NewCatalystTracker(memory *MarketMemory) *CatalystTracker {
	return &CatalystTracker{
		entries: cache.New(catalystWindow, catalystWindow/2),
		memory:  memory,
	}
}

// AddTrendText ingests external trend headlines, classifying each into a
// category keyword bucket.
func (ctk *CatalystTracker) AddTrendText(texts []string) {
	for _, text := range texts {
		if text == "" {
			continue
		}
		ctk.seq++
		ctk.entries.Set(fmt.Sprintf("trend-%d", ctk.seq), catalyst{
			Category: models.ClassifyCategory(text),
			Keywords: significantKeywords(text),
			Source:   "trend",
		}, cache.DefaultExpiration)
	}
}

// ObserveVolumeSpike records a catalyst when a market's current volume is at
// least 3x its trailing average.
func (ctk *CatalystTracker) ObserveVolumeSpike(snapshot models.MarketSnapshot) {
	avg := ctk.memory.AverageVolume(snapshot.ID)
	if avg <= 0 || snapshot.Volume24h < avg*volumeSpikeFactor {
		return
	}

	ctk.entries.Set("spike-"+snapshot.ID, catalyst{
		Category: snapshot.Category,
		MarketID: snapshot.ID,
		Keywords: significantKeywords(snapshot.Question),
		Source:   "volume_spike",
	}, cache.DefaultExpiration)
}

// Evaluate awards catalyst bonuses to a candidate market: direct market
// match, category match, and keyword overlap, capped in total.
func (ctk *CatalystTracker) Evaluate(snapshot models.MarketSnapshot) SignalResult {
	marketKeywords := significantKeywords(snapshot.Question)
	bonus := 0
	var reason string

	for _, item := range ctk.entries.Items() {
		cat, ok := item.Object.(catalyst)
		if !ok {
			continue
		}

		switch {
		case cat.MarketID != "" && cat.MarketID == snapshot.ID:
			bonus += directMarketBonus
			reason = "direct catalyst on market (" + cat.Source + ")"
		case cat.Category == snapshot.Category && cat.Category != models.CategoryOther:
			bonus += categoryMatchBonus
			if reason == "" {
				reason = "category catalyst active (" + string(cat.Category) + ")"
			}
		case keywordOverlap(cat.Keywords, marketKeywords) >= 1:
			bonus += keywordMatchBonus
			if reason == "" {
				reason = "keyword catalyst overlap"
			}
		}

		if bonus >= maxCatalystBonus {
			bonus = maxCatalystBonus
			break
		}
	}

	return SignalResult{Module: "event_catalysts", Bonus: bonus, Reason: reason}
}

// ActiveCount returns the number of unexpired catalysts.
func (ctk *CatalystTracker) ActiveCount() int {
	return ctk.entries.ItemCount()
}

func keywordOverlap(a, b map[string]struct{}) int {
	n := 0
	for kw := range a {
		if _, ok := b[kw]; ok {
			n++
		}
	}
	return n
}
