package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPurchaseDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"month first numeric", "Date: 11/25/2024", "2024-11-25"},
		{"day first when leading value too large", "25/11/2024", "2024-11-25"},
		{"two digit year below pivot", "11/25/24", "2024-11-25"},
		{"two digit year above pivot", "11/25/99", "1999-11-25"},
		{"iso date", "2024-11-25 14:32", "2024-11-25"},
		{"iso with slashes", "2024/11/25", "2024-11-25"},
		{"dotted day first", "25.11.2024", "2024-11-25"},
		{"month name", "Nov 25, 2024", "2024-11-25"},
		{"full month name", "November 25 2024", "2024-11-25"},
		{"invalid month and day", "13/40/2024", ""},
		{"no date at all", "TOTAL $14.79", ""},
		{"embedded in receipt", "WALMART\n11/25/2024\nTOTAL $14.79", "2024-11-25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPurchaseDate(tt.text))
		})
	}
}

func TestExtractPurchaseDateDashSeparators(t *testing.T) {
	assert.Equal(t, "2024-11-25", ExtractPurchaseDate("11-25-2024"))
}

func TestExtractPurchaseDateInvalidFirstMatchFallsThrough(t *testing.T) {
	// The bogus numeric date is rejected; the month-name date still parses.
	text := "99/99/2024 printed\nDec 01, 2023"
	assert.Equal(t, "2023-12-01", ExtractPurchaseDate(text))
}
