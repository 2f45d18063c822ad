package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptflow/receipt-worker/internal/ocr"
)

// scriptedRecognizer returns canned text instead of running Tesseract.
type scriptedRecognizer struct {
	mu     sync.Mutex
	text   string
	conf   float64
	failOn map[string]bool
	calls  int
}

func (s *scriptedRecognizer) Recognize(ctx context.Context, img image.Image, cfg ocr.Config) (ocr.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	if s.failOn[cfg.Name] {
		return ocr.Result{}, errors.New("scripted failure")
	}
	return ocr.Result{Text: s.text, WordConfidences: []float64{s.conf}}, nil
}

func grayVariants(n int) []ImageVariant {
	variants := make([]ImageVariant, n)
	for i := range variants {
		variants[i] = ImageVariant{Image: image.NewGray(image.Rect(0, 0, 8, 8)), Method: MethodGrayscale}
	}
	return variants
}

func TestEnsembleProducesCandidatePerAttempt(t *testing.T) {
	rec := &scriptedRecognizer{text: "TOTAL $14.79", conf: 80}
	ensemble := NewEnsemble(rec)

	candidates := ensemble.Recognize(context.Background(), grayVariants(2))
	assert.Len(t, candidates, 2*len(ocr.DefaultConfigs))

	for _, c := range candidates {
		assert.Equal(t, "TOTAL $14.79", c.Text)
		assert.InDelta(t, 80, c.AvgConfidence, 0.0001)
	}
}

func TestEnsembleSkipsFailedAttempts(t *testing.T) {
	rec := &scriptedRecognizer{
		text:   "TOTAL $14.79",
		conf:   80,
		failOn: map[string]bool{"sparse-text": true},
	}
	ensemble := NewEnsemble(rec)

	candidates := ensemble.Recognize(context.Background(), grayVariants(2))
	assert.Len(t, candidates, 2*(len(ocr.DefaultConfigs)-1))
	for _, c := range candidates {
		assert.NotEqual(t, "sparse-text", c.Config)
	}
}

func TestEnsembleStopsOnCancelledContext(t *testing.T) {
	rec := &scriptedRecognizer{text: "x", conf: 10}
	ensemble := NewEnsemble(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates := ensemble.Recognize(ctx, grayVariants(3))
	assert.Empty(t, candidates)
}

// expiringRecognizer succeeds for the first limit calls, cancels the context
// on the last of those, and fails every call after.
type expiringRecognizer struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	limit  int
	calls  int
}

func (e *expiringRecognizer) Recognize(ctx context.Context, img image.Image, cfg ocr.Config) (ocr.Result, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	if n == e.limit {
		e.cancel()
	}
	e.mu.Unlock()

	if n > e.limit {
		return ocr.Result{}, context.DeadlineExceeded
	}
	return ocr.Result{Text: "TOTAL $14.79", WordConfidences: []float64{70}}, nil
}

func TestEnsembleKeepsCompletedCandidatesOnExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &expiringRecognizer{cancel: cancel, limit: 3}
	ensemble := NewEnsemble(rec)

	candidates := ensemble.Recognize(ctx, grayVariants(5))
	require.Len(t, candidates, 3)

	for i := 1; i < len(candidates); i++ {
		assert.Greater(t, candidates[i].index, candidates[i-1].index)
	}

	best, ok := Select(candidates)
	require.True(t, ok)
	assert.Equal(t, candidates[0], best)
	assert.Equal(t, "TOTAL $14.79", best.Text)
}

func TestEnsembleCandidateOrderIsStable(t *testing.T) {
	rec := &scriptedRecognizer{text: "TOTAL $14.79", conf: 80}
	ensemble := NewEnsemble(rec)

	candidates := ensemble.Recognize(context.Background(), grayVariants(1))
	require.Len(t, candidates, len(ocr.DefaultConfigs))
	for i, c := range candidates {
		assert.Equal(t, ocr.DefaultConfigs[i].Name, c.Config)
	}
}

func TestDefaultConfigNamesMatchSparseTextFixture(t *testing.T) {
	names := make(map[string]bool, len(ocr.DefaultConfigs))
	for _, cfg := range ocr.DefaultConfigs {
		names[cfg.Name] = true
	}
	require.True(t, names["sparse-text"])
}
