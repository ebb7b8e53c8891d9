package signals

import (
	"strings"
	"sync"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

const laggingOpportunityBonus = 7

var stopwords = map[string]struct{}{
	"will": {}, "the": {}, "before": {}, "after": {}, "than": {}, "have": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "into": {}, "been": {},
	"does": {}, "what": {}, "when": {}, "2025": {}, "2026": {}, "2027": {},
}

// CorrelationTracker builds an adjacency map across the markets seen in one
// scan, linking markets that share significant question keywords or category.
type CorrelationTracker struct {
	mu       sync.RWMutex
	keywords map[string]map[string]struct{}
	category map[string]models.Category
	related  map[string][]string
	memory   *MarketMemory
}

// NewCorrelationTracker creates a tracker reading momentum from the shared
// market memory.
func NewCorrelationTracker(memory *MarketMemory) *CorrelationTracker {
	return &CorrelationTracker{
		keywords: make(map[string]map[string]struct{}),
		category: make(map[string]models.Category),
		related:  make(map[string][]string),
		memory:   memory,
	}
}

// Rebuild recomputes the adjacency map from the current scan's snapshots.
// Two markets correlate when they share at least two significant keywords, or
// share a category plus one keyword.
func (ct *CorrelationTracker) Rebuild(snapshots []models.MarketSnapshot) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.keywords = make(map[string]map[string]struct{}, len(snapshots))
	ct.category = make(map[string]models.Category, len(snapshots))
	ct.related = make(map[string][]string, len(snapshots))

	for _, s := range snapshots {
		ct.keywords[s.ID] = significantKeywords(s.Question)
		ct.category[s.ID] = s.Category
	}

	for i := range snapshots {
		for j := i + 1; j < len(snapshots); j++ {
			a, b := snapshots[i].ID, snapshots[j].ID
			if ct.correlated(a, b) {
				ct.related[a] = append(ct.related[a], b)
				ct.related[b] = append(ct.related[b], a)
			}
		}
	}
}

func (ct *CorrelationTracker) correlated(a, b string) bool {
	shared := 0
	for kw := range ct.keywords[a] {
		if _, ok := ct.keywords[b][kw]; ok {
			shared++
		}
	}
	if shared >= 2 {
		return true
	}
	return shared >= 1 && ct.category[a] == ct.category[b]
}

// Related returns the market ids correlated with the given market.
func (ct *CorrelationTracker) Related(marketID string) []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.related[marketID]
}

// Evaluate awards a lagging-opportunity bonus when a correlated market shows
// strong upward momentum while the candidate is flat. Applied once, first
// match only.
func (ct *CorrelationTracker) Evaluate(marketID string) SignalResult {
	candidateClass, _ := ct.memory.DetectMomentum(marketID)
	if candidateClass != MomentumFlat {
		return SignalResult{Module: "correlation"}
	}

	for _, other := range ct.Related(marketID) {
		otherClass, _ := ct.memory.DetectMomentum(other)
		if otherClass == MomentumAcceleratingUp {
			return SignalResult{
				Module: "correlation",
				Bonus:  laggingOpportunityBonus,
				Reason: "correlated market " + other + " moving up while candidate flat",
			}
		}
	}

	return SignalResult{Module: "correlation"}
}

// significantKeywords extracts lowercase keywords of 4+ characters from a
// market question, excluding common filler words.
func significantKeywords(question string) map[string]struct{} {
	kws := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, "?.,!:;\"'()")
		if len(word) < 4 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		kws[word] = struct{}{}
	}
	return kws
}
