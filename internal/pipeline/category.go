/**
 * Category Suggestion
 *
 * Keyword-count voting over an ordered taxonomy. The taxonomy is a plain
 * slice so category precedence on ties is explicit and stable.
 */

package pipeline

import "strings"

// CategoryOther is suggested when no taxonomy keyword appears in the text.
const CategoryOther = "Other"

// CategoryRule maps a spending category to its trigger keywords.
type CategoryRule struct {
	Name     string
	Keywords []string
}

// Categories is the taxonomy in precedence order; the first category wins a
// tied keyword count.
var Categories = []CategoryRule{
	{Name: "Groceries", Keywords: []string{
		"walmart", "target", "kroger", "safeway", "costco", "aldi", "supermarket",
		"grocery", "market", "produce", "banana", "milk", "bread", "eggs",
	}},
	{Name: "Restaurants", Keywords: []string{
		"restaurant", "cafe", "coffee", "pizza", "burger", "grill", "diner",
		"bakery", "bar", "bistro", "server", "tip",
	}},
	{Name: "Gas & Fuel", Keywords: []string{
		"gas", "fuel", "shell", "chevron", "exxon", "mobil", "bp", "gallon", "pump",
	}},
	{Name: "Healthcare", Keywords: []string{
		"pharmacy", "cvs", "walgreens", "clinic", "medical", "prescription", "rx",
	}},
	{Name: "Shopping", Keywords: []string{
		"clothing", "apparel", "shoes", "electronics", "best buy", "amazon",
		"department", "mall",
	}},
	{Name: "Entertainment", Keywords: []string{
		"cinema", "theater", "movie", "ticket", "arcade", "concert", "game",
	}},
	{Name: "Transportation", Keywords: []string{
		"uber", "lyft", "taxi", "parking", "transit", "metro", "toll", "fare",
	}},
}

// SuggestCategory counts keyword occurrences over the lower-cased merchant
// name and item names and returns the highest-scoring category, first category
// in table order on ties, or CategoryOther when nothing hits.
func SuggestCategory(fields ExtractedFields) string {
	parts := make([]string, 0, len(fields.Items)+1)
	if fields.StoreName != UnknownStore {
		parts = append(parts, fields.StoreName)
	}
	for _, item := range fields.Items {
		parts = append(parts, item.Name)
	}
	lower := strings.ToLower(strings.Join(parts, " "))

	best := CategoryOther
	bestCount := 0
	for _, rule := range Categories {
		count := 0
		for _, kw := range rule.Keywords {
			count += strings.Count(lower, kw)
		}
		if count > bestCount {
			best = rule.Name
			bestCount = count
		}
	}
	return best
}
