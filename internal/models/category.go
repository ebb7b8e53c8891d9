package models

import "strings"

// Category classifies a market by its question keywords
type Category string

const (
	CategoryGeopolitical Category = "geopolitical"
	CategoryEconomic     Category = "economic"
	CategoryPolitical    Category = "political"
	CategoryTech         Category = "tech"
	CategorySports       Category = "sports"
	CategoryOther        Category = "other"
)

// categoryKeywords maps categories to the lowercase keywords that select them.
// Order of evaluation matters: the first category with a match wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryGeopolitical, []string{"war", "nuclear", "invasion", "missile", "nato", "ukraine", "taiwan", "iran", "israel", "ceasefire", "sanctions", "military"}},
	{CategoryEconomic, []string{"fed", "inflation", "recession", "gdp", "interest rate", "cpi", "unemployment", "tariff", "bitcoin", "stock", "s&p", "treasury"}},
	{CategoryPolitical, []string{"election", "president", "senate", "congress", "vote", "impeach", "candidate", "primary", "governor", "parliament"}},
	{CategoryTech, []string{"ai ", "openai", "spacex", "launch", "iphone", "tesla", "chip", "quantum", "gpt", "model release"}},
	{CategorySports, []string{"nba", "nfl", "super bowl", "world cup", "champions league", "olympics", "ufc", "grand slam", "playoffs", "mvp"}},
}

// ClassifyCategory derives a market category from its question text
func ClassifyCategory(question string) Category {
	q := strings.ToLower(question)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return entry.category
			}
		}
	}
	return CategoryOther
}
