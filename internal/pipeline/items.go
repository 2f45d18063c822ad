/**
 * Line Item Extraction
 *
 * Walks the receipt line by line, skipping summary and footer lines, and tries
 * a fixed sequence of line shapes from most to least specific. Parsed items go
 * through name validation, bounds checks and case-insensitive deduplication.
 */

package pipeline

import (
	"regexp"
	"strings"
)

const (
	maxItemPrice    = 10000.0
	maxItemQuantity = 100
	minItemNameLen  = 2
	maxItemNameLen  = 100
)

// skipLineRes match summary, payment and footer lines that never carry items.
var skipLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:sub\s*total|total|tax|balance|change|cash|credit|debit|payment)\b`),
	regexp.MustCompile(`(?i)\b(?:thank\s*you|receipt)\b`),
	regexp.MustCompile(`(?i)\b(?:street|avenue|blvd|suite|tel|phone|fax|www\.|\.com|@)\b`),
}

// Line shapes, most specific first. The first three yield (name, quantity,
// line total); the single-price @ form carries the unit price directly.
var (
	qtyFirstRe  = regexp.MustCompile(`(?i)^(\d{1,3})\s*[xX]\s+(.+?)\s+\$?(\d+[.,]\d{2})$`)
	qtyAfterRe  = regexp.MustCompile(`(?i)^(.+?)\s+[xX]\s*(\d{1,3})\s+\$?(\d+[.,]\d{2})$`)
	qtyAtRe     = regexp.MustCompile(`(?i)^(.+?)\s+(\d{1,3})\s*@\s*\$?\d+[.,]\d{2}\s+\$?(\d+[.,]\d{2})$`)
	qtyAtUnitRe = regexp.MustCompile(`(?i)^(.+?)\s+(\d{1,3})\s*@\s*\$?(\d+[.,]\d{2})$`)
	namePriceRe = regexp.MustCompile(`^(.+?)\s+\$?(\d+[.,]\d{2})$`)
)

var nameRejectRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:street|avenue|road|blvd|suite|city|state|zip)\b`),
	regexp.MustCompile(`(?i)\b(?:tel|phone|fax|email)\b`),
	regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`(?i)\b(?:cashier|manager|server|clerk)\b`),
}

// ExtractItems parses purchasable line items out of the receipt body.
func ExtractItems(text string) []Item {
	var items []Item
	seen := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || shouldSkipLine(line) {
			continue
		}

		item, ok := parseItemLine(line)
		if !ok {
			continue
		}
		if !validItemName(item.Name) {
			continue
		}
		if item.UnitPrice <= 0 || item.UnitPrice > maxItemPrice {
			continue
		}
		if item.Quantity <= 0 || item.Quantity > maxItemQuantity {
			continue
		}

		key := strings.ToLower(item.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, item)
	}
	return items
}

func shouldSkipLine(line string) bool {
	for _, re := range skipLineRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// parseItemLine tries each line shape in order and returns the first parse.
// The unit price is the line total divided by the quantity.
func parseItemLine(line string) (Item, bool) {
	if m := qtyFirstRe.FindStringSubmatch(line); m != nil {
		return makeItem(m[2], atoi(m[1]), m[3])
	}
	if m := qtyAfterRe.FindStringSubmatch(line); m != nil {
		return makeItem(m[1], atoi(m[2]), m[3])
	}
	if m := qtyAtRe.FindStringSubmatch(line); m != nil {
		return makeItem(m[1], atoi(m[2]), m[3])
	}
	if m := qtyAtUnitRe.FindStringSubmatch(line); m != nil {
		unit, ok := parseAmount(m[3])
		qty := atoi(m[2])
		if !ok || qty <= 0 {
			return Item{}, false
		}
		return Item{Name: strings.TrimSpace(m[1]), UnitPrice: unit, Quantity: qty}, true
	}
	if m := namePriceRe.FindStringSubmatch(line); m != nil {
		return makeItem(m[1], 1, m[2])
	}
	return Item{}, false
}

func makeItem(name string, qty int, total string) (Item, bool) {
	lineTotal, ok := parseAmount(total)
	if !ok || qty <= 0 {
		return Item{}, false
	}
	return Item{
		Name:      strings.TrimSpace(name),
		UnitPrice: lineTotal / float64(qty),
		Quantity:  qty,
	}, true
}

func validItemName(name string) bool {
	if len(name) < minItemNameLen || len(name) > maxItemNameLen {
		return false
	}
	if digitFraction(name) > 0.7 {
		return false
	}
	if symbolFraction(name) > 0.3 {
		return false
	}
	for _, re := range nameRejectRes {
		if re.MatchString(name) {
			return false
		}
	}
	return true
}

// symbolFraction measures characters outside letters, digits and the small
// set of punctuation legitimate product names use.
func symbolFraction(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	symbols := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ' ', r == '-', r == '&', r == '\'', r == '.':
		default:
			symbols++
		}
	}
	return float64(symbols) / float64(len(s))
}
