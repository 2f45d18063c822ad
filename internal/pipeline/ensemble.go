/**
 * Recognition Ensemble
 *
 * Runs the recognizer against every preprocessed variant under every
 * configuration (up to 5x5 attempts) on a bounded worker pool. Attempts are
 * indexed before dispatch so candidate order stays stable regardless of
 * completion order. Individual failures are logged and skipped; a deadline
 * stops new dispatches and the pool drains with whatever completed.
 */

package pipeline

import (
	"context"
	"sync"

	apperrors "github.com/receiptflow/receipt-worker/internal/errors"
	"github.com/receiptflow/receipt-worker/internal/logging"
	"github.com/receiptflow/receipt-worker/internal/ocr"
)

const ensembleWorkers = 8

// Ensemble fans recognition attempts out over variants and configs.
type Ensemble struct {
	recognizer ocr.Recognizer
	configs    []ocr.Config
	log        *logging.Logger
}

// NewEnsemble creates an ensemble over the default recognizer configurations.
func NewEnsemble(recognizer ocr.Recognizer) *Ensemble {
	return &Ensemble{
		recognizer: recognizer,
		configs:    ocr.DefaultConfigs,
		log:        logging.NewLogger("ensemble"),
	}
}

type attempt struct {
	index   int
	variant ImageVariant
	config  ocr.Config
}

// Recognize produces one candidate per successful (variant, config) attempt,
// in generation order. An empty slice means every attempt failed or the
// deadline expired before any completed.
func (e *Ensemble) Recognize(ctx context.Context, variants []ImageVariant) []Candidate {
	attempts := make([]attempt, 0, len(variants)*len(e.configs))
	for _, variant := range variants {
		for _, cfg := range e.configs {
			attempts = append(attempts, attempt{index: len(attempts), variant: variant, config: cfg})
		}
	}

	results := make([]*Candidate, len(attempts))
	jobs := make(chan attempt)

	workers := ensembleWorkers
	if len(attempts) < workers {
		workers = len(attempts)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				if ctx.Err() != nil {
					return
				}
				res, err := e.recognizer.Recognize(ctx, a.variant.Image, a.config)
				if err != nil {
					attemptErr := apperrors.NewRecognitionAttemptError(string(a.variant.Method), a.config.Name, err)
					e.log.Warn("recognition attempt failed", "error", attemptErr)
					continue
				}
				c := newCandidate(a.index, res.Text, a.variant.Method, a.config.Name, res.AvgConfidence())
				results[a.index] = &c
			}
		}()
	}

dispatch:
	for _, a := range attempts {
		select {
		case jobs <- a:
		case <-ctx.Done():
			// Deadline expired: stop issuing attempts, keep what completed.
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	candidates := make([]Candidate, 0, len(attempts))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates
}
