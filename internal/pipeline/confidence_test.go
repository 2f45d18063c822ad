package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func TestTotalConfidenceBoost(t *testing.T) {
	fields := ExtractedFields{
		TotalAmount: fptr(14.79),
		Subtotal:    fptr(13.95),
		TaxAmount:   fptr(0.84),
	}
	breakdown, _ := ScoreConfidence(fields, 0)
	assert.InDelta(t, 1.0, breakdown[ConfTotalAmount], 0.0001)
}

func TestTotalConfidenceWithoutCrossCheck(t *testing.T) {
	fields := ExtractedFields{TotalAmount: fptr(14.79)}
	breakdown, _ := ScoreConfidence(fields, 0)
	assert.InDelta(t, 0.9, breakdown[ConfTotalAmount], 0.0001)
}

func TestTotalConfidenceMismatchedArithmetic(t *testing.T) {
	fields := ExtractedFields{
		TotalAmount: fptr(20.00),
		Subtotal:    fptr(13.95),
		TaxAmount:   fptr(0.84),
	}
	breakdown, _ := ScoreConfidence(fields, 0)
	assert.InDelta(t, 0.9, breakdown[ConfTotalAmount], 0.0001)
}

func TestOCRQualityNormalized(t *testing.T) {
	breakdown, _ := ScoreConfidence(ExtractedFields{}, 85)
	assert.InDelta(t, 0.85, breakdown[ConfOCRQuality], 0.0001)

	breakdown, _ = ScoreConfidence(ExtractedFields{}, 250)
	assert.InDelta(t, 1.0, breakdown[ConfOCRQuality], 0.0001)
}

func TestStoreNameConfidence(t *testing.T) {
	assert.InDelta(t, 0.8, storeNameConfidence("WALMART SUPERCENTER"), 0.0001)
	assert.InDelta(t, 0.3, storeNameConfidence("BP"), 0.0001)
	assert.Zero(t, storeNameConfidence(UnknownStore))
	assert.Zero(t, storeNameConfidence(""))
}

func TestItemsConfidenceAgainstSubtotal(t *testing.T) {
	fields := ExtractedFields{
		Subtotal: fptr(10.00),
		Items: []Item{
			{Name: "A", UnitPrice: 5.00, Quantity: 1},
			{Name: "B", UnitPrice: 2.50, Quantity: 2},
		},
	}
	breakdown, _ := ScoreConfidence(fields, 0)
	assert.InDelta(t, 1.0, breakdown[ConfItems], 0.0001)
}

func TestItemsConfidenceAgainstTotalIsCapped(t *testing.T) {
	fields := ExtractedFields{
		TotalAmount: fptr(10.00),
		Items:       []Item{{Name: "A", UnitPrice: 10.00, Quantity: 1}},
	}
	breakdown, _ := ScoreConfidence(fields, 0)
	assert.InDelta(t, 0.8, breakdown[ConfItems], 0.0001)
}

func TestItemsConfidenceWithoutReference(t *testing.T) {
	fields := ExtractedFields{
		Items: []Item{{Name: "A", UnitPrice: 1.00, Quantity: 1}},
	}
	breakdown, _ := ScoreConfidence(fields, 0)
	assert.InDelta(t, 0.5, breakdown[ConfItems], 0.0001)
}

func TestOverallIsMeanOfAllComponents(t *testing.T) {
	fields := ExtractedFields{
		StoreName:    "WALMART SUPERCENTER",
		TotalAmount:  fptr(14.79),
		Subtotal:     fptr(13.95),
		TaxAmount:    fptr(0.84),
		PurchaseDate: "2024-11-25",
	}
	breakdown, overall := ScoreConfidence(fields, 90)

	assert.Len(t, breakdown, 6)
	var sum float64
	for _, v := range breakdown {
		sum += v
	}
	assert.InDelta(t, sum/6, overall, 0.0001)
	assert.Zero(t, breakdown[ConfItems]) // no items extracted
}
