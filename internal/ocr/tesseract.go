/**
 * Tesseract Recognizer - production OCR backend
 *
 * Wraps gosseract. A fresh client is created per attempt: clients are cheap,
 * not goroutine-safe, and the ensemble runs attempts concurrently.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract performs OCR through the native Tesseract bindings.
type Tesseract struct {
	lang string
}

// NewTesseract creates a Tesseract-backed recognizer for the given language.
func NewTesseract(lang string) *Tesseract {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{lang: lang}
}

// Recognize runs one OCR attempt under the given configuration.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, cfg Config) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("failed to encode variant: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.lang); err != nil {
		return Result{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
		return Result{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if cfg.EngineMode >= 0 {
		if err := client.SetVariable("tessedit_ocr_engine_mode", strconv.Itoa(cfg.EngineMode)); err != nil {
			return Result{}, fmt.Errorf("failed to set engine mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	result := Result{Text: text}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil {
		result.WordConfidences = make([]float64, 0, len(boxes))
		for _, box := range boxes {
			result.WordConfidences = append(result.WordConfidences, box.Confidence)
		}
	}
	// Word confidences are best-effort; text alone is still a usable candidate.

	return result, nil
}

// Available reports whether the Tesseract runtime can be reached.
func (t *Tesseract) Available() bool {
	client := gosseract.NewClient()
	defer client.Close()
	langs, err := client.GetAvailableLanguages()
	return err == nil && len(langs) > 0
}
