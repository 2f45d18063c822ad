/**
 * Pipeline Types - Shared data structures for receipt extraction
 *
 * Common types flowing through the preprocess -> recognize -> extract pipeline.
 */

package pipeline

import (
	"image"
)

// Method identifies a preprocessing transformation applied to the source image.
type Method string

const (
	MethodGrayscale        Method = "grayscale"
	MethodBilateralOtsu    Method = "bilateral-otsu"
	MethodCLAHEOtsu        Method = "clahe-otsu"
	MethodAdaptiveGaussian Method = "adaptive-gaussian"
	MethodDeskewed         Method = "deskewed"
)

// ImageVariant is one candidate preprocessed rendition of the source image.
// Variants are never mutated after creation.
type ImageVariant struct {
	Image  *image.Gray
	Method Method
}

// Candidate is one raw-text recognition attempt over a single
// (variant, recognizer config) pair.
type Candidate struct {
	Text          string
	Method        Method
	Config        string
	AvgConfidence float64 // mean word confidence reported by the recognizer, 0..100
	QualityScore  float64 // structural quality heuristic, 0..2
	CombinedScore float64 // always AvgConfidence * QualityScore

	index int // generation order, used for deterministic tie-breaking
}

// newCandidate is the only constructor; it enforces the combined-score invariant.
func newCandidate(index int, text string, method Method, config string, avgConfidence float64) Candidate {
	quality := qualityScore(text)
	return Candidate{
		Text:          text,
		Method:        method,
		Config:        config,
		AvgConfidence: avgConfidence,
		QualityScore:  quality,
		CombinedScore: avgConfidence * quality,
		index:         index,
	}
}

// Item is a single purchased line item.
type Item struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// ExtractedFields holds the structured data recovered from the selected text.
// Optional currency fields are nil when the corresponding parser found nothing.
type ExtractedFields struct {
	StoreName    string   `json:"store_name"`
	TotalAmount  *float64 `json:"total_amount"`
	Subtotal     *float64 `json:"subtotal"`
	TaxAmount    *float64 `json:"tax_amount"`
	PurchaseDate string   `json:"purchase_date,omitempty"` // normalized YYYY-MM-DD
	Items        []Item   `json:"items"`
}

// ExtractionResult is the sole externally visible output of the pipeline.
// It is immutable once constructed.
type ExtractionResult struct {
	Success             bool               `json:"success"`
	ExtractedText       string             `json:"extracted_text"`
	Fields              ExtractedFields    `json:"fields"`
	SuggestedCategory   string             `json:"suggested_category,omitempty"`
	ConfidenceBreakdown map[string]float64 `json:"confidence_breakdown"`
	OverallConfidence   float64            `json:"overall_confidence"`
	Method              Method             `json:"ocr_method,omitempty"` // preprocessing variant of the selected candidate
	OCRConfig           string             `json:"ocr_config,omitempty"` // recognizer config of the selected candidate
	ProcessingTimeMs    int64              `json:"processing_time_ms"`
	ErrorMessage        string             `json:"error_message,omitempty"`
}
