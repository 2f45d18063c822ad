/**
 * Candidate Scoring & Selection
 *
 * Scores each raw-text candidate on structural heuristics independent of the
 * recognizer's own confidence, then selects the best candidate by the product
 * of the two. Selection is a pure max-reduction; ties go to the
 * first-generated candidate so results are reproducible.
 */

package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	currencyLikeRe = regexp.MustCompile(`[$€£]\s*\d+[.,]\d{2}|\b\d+\.\d{2}\b`)
	dateLikeRe     = regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`)
)

var (
	receiptKeywords  = []string{"total", "subtotal", "tax", "receipt", "price", "amount"}
	merchantKeywords = []string{"store", "shop", "restaurant", "market", "pharmacy"}
)

const maxQualityScore = 2.0

// qualityScore rates raw OCR text on receipt-like structure, 0..2.
func qualityScore(text string) float64 {
	score := 1.0
	lower := strings.ToLower(text)

	if currencyLikeRe.MatchString(text) {
		score *= 1.2
	}
	if dateLikeRe.MatchString(text) {
		score *= 1.2
	}
	if containsAny(lower, receiptKeywords) {
		score *= 1.2
	}
	if containsAny(lower, merchantKeywords) {
		score *= 1.2
	}

	if alphanumericRatio(text) < 0.3 {
		// Mostly noise and symbols.
		score *= 0.5
	}
	if lines := nonBlankLineCount(text); lines >= 5 && lines <= 100 {
		score *= 1.1
	}

	if score > maxQualityScore {
		score = maxQualityScore
	}
	return score
}

// Select returns the candidate with the maximal combined score. Ties break
// toward the earliest-generated candidate. The boolean is false on an empty
// pool.
func Select(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.CombinedScore > best.CombinedScore ||
			(c.CombinedScore == best.CombinedScore && c.index < best.index) {
			best = c
		}
	}
	return best, true
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func alphanumericRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	var alnum, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

func nonBlankLineCount(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
