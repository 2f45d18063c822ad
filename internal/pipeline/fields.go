/**
 * Field Extractor - heuristic parsers over the selected OCR text
 *
 * Every sub-extractor is an independent pure function; a failure in one never
 * blocks the others. Amount rules are first-class (pattern, weight) data with
 * explicit selection semantics: max weight, then max amount.
 */

package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// UnknownStore is reported when no plausible store-name line is found.
const UnknownStore = "Unknown Store"

// amountRule pairs a currency-bearing pattern with a static confidence weight.
type amountRule struct {
	re     *regexp.Regexp
	weight float64
}

var totalRules = []amountRule{
	{regexp.MustCompile(`(?i)(?:total|balance\s*due|amount\s*due)\s*:?\s*\$?\s*([\d,]+[.,]\d{2})`), 1.0},
	{regexp.MustCompile(`(?i)grand\s*total\s*:?\s*\$?\s*([\d,]+[.,]\d{2})`), 1.0},
	{regexp.MustCompile(`(?i)\$\s*([\d,]+[.,]\d{2})\s+total`), 0.9},
	{regexp.MustCompile(`(?i)(?:pay|due)\s*:?\s*\$?\s*([\d,]+[.,]\d{2})`), 0.8},
	{regexp.MustCompile(`(?i)sale\s*:?\s*\$?\s*([\d,]+[.,]\d{2})`), 0.7},
}

var subtotalRules = []amountRule{
	{regexp.MustCompile(`(?i)(?:sub\s*total|total\s*before\s*tax)\s*:?\s*\$?\s*([\d,]+[.,]\d{2})`), 1.0},
}

var taxRules = []amountRule{
	{regexp.MustCompile(`(?i)(?:sales\s*tax|tax|hst|gst|vat)\s*:?\s*\$?\s*([\d,]+[.,]\d{2})`), 1.0},
}

var currencyShapedRe = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})*[.,]\d{2}|\d+[.,]\d{2})`)

// ExtractFields runs every field parser over the selected text.
func ExtractFields(text string) ExtractedFields {
	return ExtractedFields{
		StoreName:    ExtractStoreName(text),
		TotalAmount:  ExtractTotalAmount(text),
		Subtotal:     extractFirstAmount(text, subtotalRules),
		TaxAmount:    extractFirstAmount(text, taxRules),
		PurchaseDate: ExtractPurchaseDate(text),
		Items:        ExtractItems(text),
	}
}

// ExtractTotalAmount collects all rule matches across the text and picks by
// (weight, amount) descending. Among equal-weight matches the larger amount
// wins: on typical receipts the grand total is the largest currency figure.
// Falls back to the maximum currency-shaped substring anywhere in the text.
func ExtractTotalAmount(text string) *float64 {
	type match struct {
		weight float64
		amount float64
	}
	var matches []match
	for _, rule := range totalRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			if amount, ok := parseAmount(m[1]); ok {
				matches = append(matches, match{weight: rule.weight, amount: amount})
			}
		}
	}

	if len(matches) > 0 {
		best := matches[0]
		for _, m := range matches[1:] {
			if m.weight > best.weight || (m.weight == best.weight && m.amount > best.amount) {
				best = m
			}
		}
		return &best.amount
	}

	// No keyword matched; take the largest currency-shaped figure.
	var largest float64
	found := false
	for _, m := range currencyShapedRe.FindAllStringSubmatch(text, -1) {
		if amount, ok := parseAmount(m[1]); ok && (!found || amount > largest) {
			largest = amount
			found = true
		}
	}
	if !found {
		return nil
	}
	return &largest
}

// extractFirstAmount returns the first rule match in text order; subtotal and
// tax lines appear once on real receipts, so no ensemble across matches.
func extractFirstAmount(text string, rules []amountRule) *float64 {
	for _, rule := range rules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			if amount, ok := parseAmount(m[1]); ok {
				return &amount
			}
		}
	}
	return nil
}

func parseAmount(s string) (float64, bool) {
	// Strip thousands separators; a trailing ",dd" is a decimal comma.
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 == 2 {
		s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

var (
	storeRejectRes = []*regexp.Regexp{
		regexp.MustCompile(`^\d+$`),                            // digits only
		regexp.MustCompile(`^[^\w]+$`),                         // pure punctuation
		regexp.MustCompile(`(?i)\b(?:receipt|invoice|order)\b`), // header words
		regexp.MustCompile(`\d{1,2}[:/-]\d{1,2}`),              // times and short dates
		regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`),
		regexp.MustCompile(`(?i)(?:\(\d{3}\)|\d{3}[.\-\s]\d{3}[.\-\s]\d{4}|tel|phone|fax|www\.|\.com|@)`),
	}
	storeNameCleanRe = regexp.MustCompile(`[^a-zA-Z0-9 &'\-]`)
)

const storeNameScanLines = 7

// ExtractStoreName scans the first few non-blank lines for the first
// plausible merchant line.
func ExtractStoreName(text string) string {
	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		candidates = append(candidates, line)
		if len(candidates) >= storeNameScanLines {
			break
		}
	}

candidateLoop:
	for _, candidate := range candidates {
		for _, re := range storeRejectRes {
			if re.MatchString(candidate) {
				continue candidateLoop
			}
		}
		cleaned := strings.TrimSpace(storeNameCleanRe.ReplaceAllString(candidate, ""))
		if len(cleaned) <= 3 || len(cleaned) >= 50 {
			continue
		}
		if len(strings.Fields(cleaned)) > 5 {
			continue
		}
		return cleaned
	}
	return UnknownStore
}

func digitFraction(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float64(digits) / float64(len(s))
}
