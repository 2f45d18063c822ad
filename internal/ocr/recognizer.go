/**
 * Recognizer Contract - the external text-recognition capability
 *
 * The pipeline only depends on this interface; the production implementation
 * wraps Tesseract, and tests substitute a scripted fake.
 */

package ocr

import (
	"context"
	"image"
)

// Config names one set of layout assumptions handed to the recognizer.
// PSM is the Tesseract page segmentation mode; EngineMode below zero means
// the engine default (LSTM).
type Config struct {
	Name       string
	PSM        int
	EngineMode int
}

// DefaultConfigs is the fixed ensemble of segmentation assumptions tried
// against every preprocessed variant. Adding a strategy means appending here.
var DefaultConfigs = []Config{
	{Name: "single-column", PSM: 4, EngineMode: -1},
	{Name: "uniform-block", PSM: 6, EngineMode: -1},
	{Name: "auto", PSM: 3, EngineMode: -1},
	{Name: "legacy-single-column", PSM: 4, EngineMode: 0},
	{Name: "sparse-text", PSM: 11, EngineMode: -1},
}

// Result is the raw output of one recognition attempt.
type Result struct {
	Text string
	// WordConfidences holds the recognizer-reported confidence per word,
	// 0..100. Sentinel values (<= 0) mean the recognizer had no opinion.
	WordConfidences []float64
}

// Recognizer converts a pixel buffer into text under a given configuration.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, cfg Config) (Result, error)
}

// AvgConfidence returns the mean of all valid (positive, non-sentinel) word
// confidences, or 0 when none are valid.
func (r Result) AvgConfidence() float64 {
	var sum float64
	var n int
	for _, c := range r.WordConfidences {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
