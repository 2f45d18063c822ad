/**
 * Extraction Pipeline - orchestrates preprocess -> recognize -> extract
 *
 * The processor never returns an error for extraction-level failures; those
 * are reported inside the result so callers always get a well-formed
 * ExtractionResult to persist and surface.
 */

package pipeline

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/receiptflow/receipt-worker/internal/errors"
	"github.com/receiptflow/receipt-worker/internal/logging"
	"github.com/receiptflow/receipt-worker/internal/ocr"
)

// Processor runs the full extraction pipeline over raw image bytes.
type Processor struct {
	ensemble *Ensemble
	log      *logging.Logger
}

// NewProcessor creates a pipeline processor around the given recognizer.
func NewProcessor(recognizer ocr.Recognizer) *Processor {
	return &Processor{
		ensemble: NewEnsemble(recognizer),
		log:      logging.NewLogger("pipeline"),
	}
}

// Process extracts structured receipt data from raw image bytes. enhance
// controls whether the expensive preprocessing variants are generated.
func (p *Processor) Process(ctx context.Context, data []byte, enhance bool) *ExtractionResult {
	start := time.Now()

	p.log.Info("Step 1: Preprocessing image", "bytes", len(data), "enhance", enhance)
	variants, err := Preprocess(data, enhance)
	if err != nil {
		p.log.Error("image decode failed", "error", err)
		return failedResult(apperrors.NewDecodeError(err).Error(), start)
	}
	p.log.Info("Step 2: Running recognition ensemble", "variants", len(variants))

	candidates := p.ensemble.Recognize(ctx, variants)
	best, ok := Select(candidates)
	if !ok || strings.TrimSpace(best.Text) == "" {
		p.log.Warn("no readable text extracted", "candidates", len(candidates))
		return failedResult(apperrors.NewNoTextExtractedError().Error(), start)
	}
	p.log.Info("Step 3: Selected best candidate",
		"method", best.Method, "config", best.Config, "score", best.CombinedScore)

	fields := p.extractFields(best.Text)
	breakdown, overall := ScoreConfidence(fields, best.AvgConfidence)
	category := SuggestCategory(fields)
	p.log.Info("Step 4: Extraction complete",
		"store", fields.StoreName, "items", len(fields.Items),
		"category", category, "confidence", overall)

	return &ExtractionResult{
		Success:             true,
		ExtractedText:       best.Text,
		Fields:              fields,
		SuggestedCategory:   category,
		ConfidenceBreakdown: breakdown,
		OverallConfidence:   overall,
		Method:              best.Method,
		OCRConfig:           best.Config,
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
	}
}

// extractFields isolates the heuristic parsers behind a recover barrier; a
// panic in one regex path degrades to partial fields instead of killing the
// job.
func (p *Processor) extractFields(text string) (fields ExtractedFields) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("field extraction panicked", "panic", r)
			if fields.StoreName == "" {
				fields.StoreName = UnknownStore
			}
		}
	}()
	return ExtractFields(text)
}

func failedResult(message string, start time.Time) *ExtractionResult {
	return &ExtractionResult{
		Success:             false,
		Fields:              ExtractedFields{StoreName: UnknownStore},
		ConfidenceBreakdown: map[string]float64{},
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		ErrorMessage:        message,
	}
}
