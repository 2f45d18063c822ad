/**
 * Confidence Model
 *
 * Produces a per-field breakdown plus an overall score. Field scores come
 * from static priors adjusted by cross-field arithmetic consistency, with the
 * recognizer's own word confidence folded in as one component among six.
 */

package pipeline

import "math"

// Breakdown keys reported for every result, present fields or not.
const (
	ConfOCRQuality   = "ocr_quality"
	ConfStoreName    = "store_name"
	ConfTotalAmount  = "total_amount"
	ConfPurchaseDate = "purchase_date"
	ConfTaxAmount    = "tax_amount"
	ConfItems        = "items"
)

// Tolerance in dollars for subtotal + tax == total cross-checks.
const totalsTolerance = 0.10

// ScoreConfidence builds the per-field breakdown and the overall mean.
func ScoreConfidence(fields ExtractedFields, avgOCRConfidence float64) (map[string]float64, float64) {
	breakdown := map[string]float64{
		ConfOCRQuality:   math.Min(avgOCRConfidence/100.0, 1.0),
		ConfStoreName:    storeNameConfidence(fields.StoreName),
		ConfTotalAmount:  totalConfidence(fields),
		ConfPurchaseDate: presenceConfidence(fields.PurchaseDate != "", 0.85),
		ConfTaxAmount:    presenceConfidence(fields.TaxAmount != nil, 0.8),
		ConfItems:        itemsConfidence(fields),
	}

	var sum float64
	for _, v := range breakdown {
		sum += v
	}
	return breakdown, sum / float64(len(breakdown))
}

func storeNameConfidence(name string) float64 {
	if name == "" || name == UnknownStore {
		return 0
	}
	if len(name) > 2 {
		return 0.8
	}
	return 0.3
}

// totalConfidence starts from a strong prior and rewards arithmetic agreement
// between subtotal, tax and total.
func totalConfidence(fields ExtractedFields) float64 {
	if fields.TotalAmount == nil {
		return 0
	}
	score := 0.9
	if fields.Subtotal != nil && fields.TaxAmount != nil {
		if math.Abs(*fields.Subtotal+*fields.TaxAmount-*fields.TotalAmount) < totalsTolerance {
			score = 1.0
		}
	}
	return score
}

// itemsConfidence compares the sum of line items against subtotal when
// available, total otherwise. Item sums include tax-free prices so agreement
// with the subtotal is the stronger signal.
func itemsConfidence(fields ExtractedFields) float64 {
	if len(fields.Items) == 0 {
		return 0
	}
	var itemsSum float64
	for _, item := range fields.Items {
		itemsSum += item.UnitPrice * float64(item.Quantity)
	}

	switch {
	case fields.Subtotal != nil && *fields.Subtotal > 0:
		return math.Max(0, 1.0-relativeDiff(itemsSum, *fields.Subtotal))
	case fields.TotalAmount != nil && *fields.TotalAmount > 0:
		return math.Max(0, 0.8-relativeDiff(itemsSum, *fields.TotalAmount))
	default:
		return 0.5
	}
}

func presenceConfidence(present bool, prior float64) float64 {
	if present {
		return prior
	}
	return 0
}

func relativeDiff(a, b float64) float64 {
	return math.Abs(a-b) / b
}
