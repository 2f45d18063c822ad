/**
 * Purchase Date Extraction
 *
 * Tries date shapes in a fixed order and normalizes to YYYY-MM-DD. The
 * two-digit-year pivot and the day-first disambiguation threshold are
 * regional guesses kept as explicit named constants rather than buried
 * magic numbers.
 */

package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// TwoDigitYearPivot: a 2-digit year below the pivot is 20xx, else 19xx.
	TwoDigitYearPivot = 50

	// DayFirstThreshold: in an ambiguous numeric date, a leading value above
	// this cannot be a month, so the date is read day-first (DD/MM).
	DayFirstThreshold = 12
)

var (
	numericDateYear4Re = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})\b`)
	isoDateRe          = regexp.MustCompile(`\b(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})\b`)
	numericDateYear2Re = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})[/\-](\d{2})\b`)
	dottedDMYRe        = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{2,4})\b`)
	monthNameRe        = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\s*,?\s*(\d{4})`)
)

var monthsByPrefix = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ExtractPurchaseDate returns the first valid date found, normalized to
// YYYY-MM-DD, or "" when no pattern yields a valid calendar date.
func ExtractPurchaseDate(text string) string {
	if m := numericDateYear4Re.FindStringSubmatch(text); m != nil {
		if date, ok := resolveAmbiguousNumeric(m[1], m[2], m[3]); ok {
			return date
		}
	}
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if date, ok := normalizeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return date
		}
	}
	if m := numericDateYear2Re.FindStringSubmatch(text); m != nil {
		year := atoi(m[3])
		if year < TwoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
		if date, ok := resolveAmbiguousNumeric(m[1], m[2], strconv.Itoa(year)); ok {
			return date
		}
	}
	if m := dottedDMYRe.FindStringSubmatch(text); m != nil {
		// Dotted dates are conventionally day-first.
		year := atoi(m[3])
		if year < 100 {
			if year < TwoDigitYearPivot {
				year += 2000
			} else {
				year += 1900
			}
		}
		if date, ok := normalizeDate(year, atoi(m[2]), atoi(m[1])); ok {
			return date
		}
	}
	if m := monthNameRe.FindStringSubmatch(text); m != nil {
		month := monthsByPrefix[strings.ToLower(m[1])]
		if date, ok := normalizeDate(atoi(m[3]), month, atoi(m[2])); ok {
			return date
		}
	}
	return ""
}

// resolveAmbiguousNumeric reads an a/b/year triple, assuming month-first
// unless the leading value cannot be a month.
func resolveAmbiguousNumeric(a, b, year string) (string, bool) {
	first, second := atoi(a), atoi(b)
	month, day := first, second
	if first > DayFirstThreshold {
		day, month = first, second
	}
	return normalizeDate(atoi(year), month, day)
}

// normalizeDate validates the month/day ranges and formats YYYY-MM-DD.
func normalizeDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
